package rsync

import (
	"crypto/md5"
	"encoding/binary"
	"hash"
)

// BlockDigest computes the strong checksum of a single block: MD5 over the
// block's bytes followed by the 4-byte little-endian checksum seed (§4.C:
// "MD5 over (block bytes ‖ checksum-seed)").
func BlockDigest(data []byte, seed int32) []byte {
	h := md5.New()
	h.Write(data)
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
	h.Write(seedBytes[:])
	return h.Sum(nil)
}

// NewFileDigest returns a plain MD5 hash.Hash for the whole-file digest
// (§4.C: "plain MD5 over concatenated literal-and-matched content"). No
// seed is mixed in; bytes are written to it in strict file order as they
// are emitted (literal runs and matched-block copies alike).
func NewFileDigest() hash.Hash {
	return md5.New()
}

// TruncatedSum returns the leading negotiatedLen bytes of h's digest, as
// required when the whole-file digest length is negotiated down from the
// full 16-byte MD5 output.
func TruncatedSum(h hash.Hash, negotiatedLen int) []byte {
	sum := h.Sum(nil)
	if negotiatedLen >= 0 && negotiatedLen < len(sum) {
		return sum[:negotiatedLen]
	}
	return sum
}
