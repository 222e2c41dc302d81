package rsync

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeLongRoundTrip(t *testing.T) {
	cases := []struct {
		v        int64
		minBytes int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{200, 1},
		{0x7FFF, 2},
		{0xFFFF, 2},
		{0x800000, 3},
		{1 << 29, 3},
		{1<<32 - 1, 4},
		{0x0102030405060708, 1},
		{5, 3},
		{0, 8},
		{1<<62 - 1, 8},
	}
	for _, tc := range cases {
		enc := EncodeLong(tc.v, tc.minBytes)
		got, err := DecodeLong(bytes.NewReader(enc), tc.minBytes)
		if err != nil {
			t.Fatalf("DecodeLong(%x, %d): %v", enc, tc.minBytes, err)
		}
		if got != tc.v {
			t.Errorf("round-trip v=%d minBytes=%d: got %d, encoded %x", tc.v, tc.minBytes, got, enc)
		}
	}
}

func TestEncodeIntMatchesEncodeLongMinByte1(t *testing.T) {
	for _, v := range []int32{0, 1, 63, 127, 128, 1 << 20, 1<<31 - 1} {
		got := EncodeInt(v)
		want := EncodeLong(int64(v), 1)
		if !bytes.Equal(got, want) {
			t.Errorf("EncodeInt(%d) = %x, want %x", v, got, want)
		}
	}
}

func TestDecodeLongTruncated(t *testing.T) {
	// A marker byte promising extra bytes that never arrive.
	enc := EncodeLong(1<<40, 1)
	_, err := DecodeLong(bytes.NewReader(enc[:1]), 1)
	if err == nil {
		t.Fatal("expected error decoding truncated varint")
	}
}

func TestEncodeLongMinimalLength(t *testing.T) {
	// Small values with minBytes=1 should encode to exactly one byte.
	for _, v := range []int64{0, 1, 63, 100} {
		enc := EncodeLong(v, 1)
		if len(enc) != 1 {
			t.Errorf("EncodeLong(%d, 1) = %x, want 1 byte", v, enc)
		}
	}
}
