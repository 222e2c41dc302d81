package rsync

// RollingChecksum is the Adler-style weak checksum used to cheaply screen
// candidate block positions before computing an expensive strong digest
// (§4.B, GLOSSARY "Weak sum"). The zero value is not meaningful; always
// construct via Compute.
type RollingChecksum struct {
	a, b uint32 // both accumulated modulo 2^32
	n    uint32 // current window length
}

// Compute returns the rolling checksum of buf[s : s+n], computed from
// scratch in O(n).
func Compute(buf []byte, s, n int) RollingChecksum {
	var a, b uint32
	for i := 0; i < n; i++ {
		v := uint32(buf[s+i])
		a += v
		b += uint32(n-i) * v
	}
	return RollingChecksum{a: a, b: b, n: uint32(n)}
}

// Value packs the two accumulators into the 32-bit wire representation:
// the low 16 bits of a, and the low 16 bits of b in the high half.
func (r RollingChecksum) Value() uint32 {
	return (r.a & 0xFFFF) | (r.b << 16)
}

// Add extends the window by one trailing byte (used together with
// Subtract to implement a one-byte slide without recomputing from
// scratch).
func (r RollingChecksum) Add(trailing byte) RollingChecksum {
	r.a += uint32(trailing)
	r.b += r.a
	r.n++
	return r
}

// Subtract shrinks the window by removing its current leading byte, given
// the window length prior to removal.
func (r RollingChecksum) Subtract(windowLen int, leaving byte) RollingChecksum {
	r.a -= uint32(leaving)
	r.b -= uint32(windowLen) * uint32(leaving)
	r.n--
	return r
}

// Slide applies Subtract(leaving) then Add(trailing) in one step, the
// operation performed at every byte position while scanning a file for
// block matches (§4.H step 3).
func (r RollingChecksum) Slide(windowLen int, leaving, trailing byte) RollingChecksum {
	return r.Subtract(windowLen, leaving).Add(trailing)
}
