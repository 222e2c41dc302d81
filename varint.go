package rsync

import (
	"errors"
	"fmt"
)

// ErrMalformedInteger is returned by DecodeLong when the byte stream is
// truncated or otherwise cannot represent a valid variable-length integer
// (§4.A).
var ErrMalformedInteger = errors.New("rsync: malformed variable-length integer")

// EncodeLong produces the variable-length little-endian representation of
// v described in §4.A: if v fits in minBytes bytes with the top byte's high
// bit clear (and, when minBytes < 8, the first byte's high bit clear as
// well, since DecodeLong tells the two forms apart by that first byte),
// exactly minBytes bytes are emitted; otherwise a marker byte whose leading
// bits count the number of extra bytes is prepended, followed by up to 8
// little-endian data bytes.
func EncodeLong(v int64, minBytes int) []byte {
	if minBytes < 1 || minBytes > 8 {
		panic(fmt.Sprintf("rsync: EncodeLong: invalid minBytes %d", minBytes))
	}
	if v < 0 {
		panic("rsync: EncodeLong: negative value")
	}

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * uint(i)))
	}

	// Smallest n >= minBytes such that all bytes above index n-1 are zero.
	n := 8
	for n > minBytes && buf[n-1] == 0 {
		n--
	}

	if n == minBytes && buf[minBytes-1]&0x80 == 0 && (minBytes == 8 || buf[0]&0x80 == 0) {
		return append([]byte(nil), buf[:minBytes]...)
	}

	extra := n - minBytes
	if extra == 0 {
		// n == minBytes but the top or first byte has its high bit set:
		// bump n by one data byte so that a marker byte leads the encoding.
		extra = 1
		n++
		if n > 8 {
			panic("rsync: EncodeLong: value exceeds 8 bytes")
		}
	}

	// Marker byte: `extra` leading 1-bits, the rest clear. Its high bit is
	// always set, while a minBytes-only encoding (minBytes < 8) always
	// starts with a byte whose high bit is clear, so DecodeLong can tell
	// the two forms apart from the first byte alone.
	marker := byte(0xFF << uint(8-extra))
	out := make([]byte, 0, 1+n)
	out = append(out, marker)
	out = append(out, buf[:n]...)
	return out
}

// EncodeInt is EncodeLong(int64(v), 1), the common case used for ordinary
// wire integers.
func EncodeInt(v int32) []byte {
	return EncodeLong(int64(v), 1)
}

// byteReader is the minimal interface DecodeLong needs to pull bytes one
// at a time off a stream.
type byteReader interface {
	ReadByte() (byte, error)
}

// DecodeLong is the inverse of EncodeLong: it reads a minBytes-or-longer
// variable-length integer from r.
func DecodeLong(r byteReader, minBytes int) (int64, error) {
	if minBytes < 1 || minBytes > 8 {
		return 0, fmt.Errorf("rsync: DecodeLong: invalid minBytes %d", minBytes)
	}

	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	if minBytes == 8 || first&0x80 == 0 {
		// No marker byte: the value is exactly minBytes bytes, little-endian,
		// and we've already read the first of them.
		buf := make([]byte, minBytes)
		buf[0] = first
		for i := 1; i < minBytes; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return 0, errors.Join(ErrMalformedInteger, err)
			}
			buf[i] = b
		}
		var v int64
		for i := minBytes - 1; i >= 0; i-- {
			v = (v << 8) | int64(buf[i])
		}
		return v, nil
	}

	// Marker byte: count the leading 1-bits to find how many extra bytes
	// beyond minBytes follow.
	extra := 0
	for b := first; b&0x80 != 0 && extra < 8; b <<= 1 {
		extra++
	}
	n := minBytes + extra
	if n > 8 {
		return 0, ErrMalformedInteger
	}

	buf := make([]byte, 8)
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Join(ErrMalformedInteger, err)
		}
		buf[i] = b
	}

	var v int64
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | int64(buf[i])
	}
	return v, nil
}
