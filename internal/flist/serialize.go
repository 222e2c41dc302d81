package flist

import (
	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

// Serializer writes FileInfo entries in the delta-encoded wire format of
// §4.G, tracking the single-entry cache the xflags scheme deltas
// against and, in non-recursive mode, the batch of uid→name mappings to
// flush after the initial segment.
type Serializer struct {
	cache        FileInfoCache
	preserveUser bool
	recursive    bool

	batchOrder []int32
	batchNames map[int32]string
}

// NewSerializer returns a Serializer for one connection's lifetime. It is
// not safe for concurrent use; entries must be written in the exact
// order they appear on the wire.
func NewSerializer(preserveUser, recursive bool) *Serializer {
	return &Serializer{
		preserveUser: preserveUser,
		recursive:    recursive,
		batchNames:   make(map[int32]string),
	}
}

// WriteEntry emits one FileInfo per §4.G steps 1-6. Step 7 (symlink
// target) is reserved and never emitted, matching the scope of this
// revision.
func (s *Serializer) WriteEntry(c *rsyncwire.Conn, fi *FileInfo) error {
	p := 0
	if s.cache.valid {
		p = lcp(s.cache.prevName(), fi.Name)
	}
	sameName := p > 0
	suffix := fi.Name[p:]
	longName := len(suffix) > 255

	sameMode := s.cache.sameMode(fi)
	sameUID := s.preserveUser && s.cache.sameUID(fi)
	sameTime := s.cache.sameTime(fi)

	userNameFollows := s.preserveUser && s.recursive && !sameUID && fi.UserName != ""

	var xflags uint32
	if fi.TopLevel {
		xflags |= rsync.FlistTopLevel
	}
	if sameMode {
		xflags |= rsync.FlistSameMode
	}
	if sameUID {
		xflags |= rsync.FlistSameUID
	}
	if sameName {
		xflags |= rsync.FlistSameName
	}
	if longName {
		xflags |= rsync.FlistLongName
	}
	if sameTime {
		xflags |= rsync.FlistSameTime
	}
	if userNameFollows {
		xflags |= rsync.FlistUserNameFollows
	}

	// The low byte is reserved for the terminator (a literal 0 byte means
	// "segment ends here"): any entry whose low-byte flags would
	// otherwise read as zero, or that needs a bit outside the low byte,
	// must use the 16-bit extended form (§4.G step 1).
	extended := xflags&^0xFF != 0 || xflags&0xFF == 0
	if extended {
		xflags |= rsync.FlistExtendedFlags
		if err := c.WriteChar16(uint16(xflags)); err != nil {
			return err
		}
	} else {
		if err := c.WriteByte(byte(xflags)); err != nil {
			return err
		}
	}

	if sameName {
		if err := c.WriteByte(byte(p)); err != nil {
			return err
		}
	}
	if longName {
		if err := c.WriteVarint(int64(len(suffix)), 1); err != nil {
			return err
		}
	} else {
		if err := c.WriteByte(byte(len(suffix))); err != nil {
			return err
		}
	}
	if err := c.Put([]byte(suffix), 0, len(suffix)); err != nil {
		return err
	}

	if err := c.WriteVarint(fi.Size, 3); err != nil {
		return err
	}
	if !sameTime {
		if err := c.WriteVarint(fi.ModTime, 4); err != nil {
			return err
		}
	}
	if !sameMode {
		if err := c.WriteInt32(int32(fi.Mode)); err != nil {
			return err
		}
	}
	if s.preserveUser && !sameUID {
		if err := c.WriteVarint(int64(fi.UID), 1); err != nil {
			return err
		}
		if userNameFollows {
			if err := c.WriteByte(byte(len(fi.UserName))); err != nil {
				return err
			}
			if err := c.Put([]byte(fi.UserName), 0, len(fi.UserName)); err != nil {
				return err
			}
		}
	}

	if s.preserveUser && !s.recursive {
		s.recordForBatch(fi)
	}

	s.cache.update(fi)
	return nil
}

// WriteSegmentEnd emits the 0-byte segment terminator, or the
// EXTENDED_FLAGS|IO_ERROR_ENDLIST marker when expansion of this
// segment's directory failed and safe file list mode is in effect
// (§4.G, final paragraph).
func (s *Serializer) WriteSegmentEnd(c *rsyncwire.Conn, ioError bool) error {
	if !ioError {
		return c.WriteByte(0)
	}
	if err := c.WriteChar16(uint16(rsync.FlistIoErrorEndList)); err != nil {
		return err
	}
	return c.WriteVarint(int64(rsync.IoErrorGeneral), 1)
}

func (s *Serializer) recordForBatch(fi *FileInfo) {
	if fi.UID == 0 || fi.UserName == "" {
		return
	}
	if _, ok := s.batchNames[fi.UID]; ok {
		return
	}
	s.batchNames[fi.UID] = fi.UserName
	s.batchOrder = append(s.batchOrder, fi.UID)
}

// WriteUserList flushes the accumulated uid→name mappings as a batch
// (§4.G "User list"), used only in non-recursive mode after the initial
// segment.
func (s *Serializer) WriteUserList(c *rsyncwire.Conn) error {
	for _, uid := range s.batchOrder {
		name := s.batchNames[uid]
		if err := c.WriteVarint(int64(uid), 1); err != nil {
			return err
		}
		if err := c.WriteByte(byte(len(name))); err != nil {
			return err
		}
		if err := c.Put([]byte(name), 0, len(name)); err != nil {
			return err
		}
	}
	return c.WriteVarint(0, 1)
}

func lcp(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	if i > 255 {
		i = 255
	}
	return i
}
