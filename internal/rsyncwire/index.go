package rsyncwire

import "github.com/colinmarc/rsyncsend"

// Reserved index sentinels and the stub-directory offset (§4.D, §6
// "Index"). DONE marks the end of a phase; EOF marks the end of
// recursive directory expansion. OFFSET is a constant whose magnitude
// exceeds any index a file list will ever allocate, so that
// OFFSET-segmentIndex can never collide with a real (non-negative) file
// index or with DONE/EOF.
const (
	IndexDone int32 = -1
	IndexEOF  int32 = -2
	IndexOffset int32 = -(1 << 20)
)

// index value tags, distinguishing the two sentinels from a delta-coded
// positive (ordinary file) index or a delta-coded negative (stub
// directory reference) index. This lets the decoder know, before it has
// reconstructed the actual value, which of the two running "previous
// index" trackers the delta applies to (§4.D "encodeIndex / decodeIndex").
const (
	indexTagDone     = 0
	indexTagEOF      = 1
	indexTagPositive = 2
	indexTagNegative = 3
)

// IndexCoder maintains the per-direction state (previous positive index,
// previous negative index) that WriteIndex/ReadIndex delta-encode
// against. A sender and its peer each need one IndexCoder per direction
// of travel; they are not safe for concurrent use.
type IndexCoder struct {
	lastPositive int32
	lastNegative int32
}

// NewIndexCoder returns a coder with no prior index seen yet.
func NewIndexCoder() *IndexCoder {
	return &IndexCoder{lastPositive: -1, lastNegative: 1}
}

// WriteIndex writes idx, which must be IndexDone, IndexEOF, a
// non-negative file index, or a stub-directory reference
// (IndexOffset-segmentIndex).
func (ic *IndexCoder) WriteIndex(c *Conn, idx int32) error {
	switch idx {
	case IndexDone:
		return c.WriteByte(indexTagDone)
	case IndexEOF:
		return c.WriteByte(indexTagEOF)
	}
	if idx >= 0 {
		diff := int64(idx) - int64(ic.lastPositive)
		ic.lastPositive = idx
		if err := c.WriteByte(indexTagPositive); err != nil {
			return err
		}
		return c.WriteVarint(zigzag(diff), 1)
	}
	diff := int64(idx) - int64(ic.lastNegative)
	ic.lastNegative = idx
	if err := c.WriteByte(indexTagNegative); err != nil {
		return err
	}
	return c.WriteVarint(zigzag(diff), 1)
}

// ReadIndex reads back a value written by WriteIndex.
func (ic *IndexCoder) ReadIndex(c *Conn) (int32, error) {
	tag, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	switch tag {
	case indexTagDone:
		return IndexDone, nil
	case indexTagEOF:
		return IndexEOF, nil
	case indexTagPositive:
		zz, err := c.ReadVarint(1)
		if err != nil {
			return 0, err
		}
		idx := ic.lastPositive + int32(unzigzag(zz))
		ic.lastPositive = idx
		return idx, nil
	case indexTagNegative:
		zz, err := c.ReadVarint(1)
		if err != nil {
			return 0, err
		}
		idx := ic.lastNegative + int32(unzigzag(zz))
		ic.lastNegative = idx
		return idx, nil
	default:
		return 0, rsync.ErrMalformedInteger
	}
}

// zigzag maps a signed delta to an unsigned-friendly non-negative value
// so that small deltas in either direction stay small under the
// variable-length integer codec, which is defined over non-negative
// values (§4.A).
func zigzag(v int64) int64 {
	return (v << 1) ^ (v >> 63)
}

func unzigzag(v int64) int64 {
	return int64(uint64(v)>>1) ^ -(v & 1)
}
