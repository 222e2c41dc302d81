package rsync

import (
	"math/rand"
	"testing"
)

func TestRollingChecksumComputeMatchesDefinition(t *testing.T) {
	buf := []byte("the quick brown fox jumps over the lazy dog")
	rc := Compute(buf, 5, 10)

	var a, b uint32
	for i := 0; i < 10; i++ {
		a += uint32(buf[5+i])
		b += uint32(10-i) * uint32(buf[5+i])
	}
	want := (a & 0xFFFF) | (b << 16)
	if got := rc.Value(); got != want {
		t.Errorf("Value() = %#x, want %#x", got, want)
	}
}

func TestRollingChecksumSlideMatchesRecompute(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	buf := make([]byte, 256)
	rnd.Read(buf)

	const windowLen = 16
	rc := Compute(buf, 0, windowLen)
	for start := 0; start+windowLen < len(buf); start++ {
		want := Compute(buf, start+1, windowLen)
		rc = rc.Slide(windowLen, buf[start], buf[start+windowLen])
		if rc.Value() != want.Value() {
			t.Fatalf("slide to start=%d: got %#x, want %#x", start+1, rc.Value(), want.Value())
		}
	}
}

func TestRollingChecksumAddSubtractInverse(t *testing.T) {
	buf := []byte("0123456789")
	rc := Compute(buf, 0, 5)
	added := rc.Add(buf[5])
	back := added.Subtract(6, buf[0])
	want := Compute(buf, 1, 5)
	if back.Value() != want.Value() {
		t.Errorf("add-then-subtract mismatch: got %#x, want %#x", back.Value(), want.Value())
	}
}
