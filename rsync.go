// Package rsync contains types and constants shared between the sender,
// receiver and daemon implementations: the wire-level protocol version, the
// file-list status flags, and the checksum block header (SumHead).
package rsync

// ProtocolVersion is the rsync wire protocol version this module speaks.
// gokr-rsync (like openrsync) targets protocol 27, the last version before
// tridge rsync introduced incremental recursion on the wire by default.
const ProtocolVersion = 27

// File-list entry status flags (rsync/rsync.h: XMIT_*).
//
// These control which optional fields follow an entry in the file-list
// stream (§4.G). Bit 0x10 is not used by this implementation, and bit
// 0x200 appears only inside FlistIoErrorEndList, together with
// FlistExtendedFlags.
const (
	FlistTopLevel      = 1 << 0 // 0x01: top-level directory entry
	FlistSameMode      = 1 << 1 // 0x02: mode unchanged from previous entry
	FlistExtendedFlags = 1 << 2 // 0x04: flags field is 16 bits wide
	FlistSameUID       = 1 << 3 // 0x08: uid unchanged from previous entry
	FlistSameName      = 1 << 5 // 0x20: name shares a prefix with previous entry
	FlistLongName      = 1 << 6 // 0x40: suffix length is a variable-length int
	FlistSameTime      = 1 << 7 // 0x80: mtime unchanged from previous entry

	// FlistUserNameFollows indicates a uid→name mapping follows this entry
	// inline (recursive mode only; non-recursive mode instead batches all
	// mappings after the initial segment, see §4.G "User list").
	FlistUserNameFollows = 1 << 8

	// FlistIoErrorEndList replaces the ordinary 0-byte segment terminator
	// when expansion of the directory failed and SafeFileList is in effect.
	FlistIoErrorEndList = FlistExtendedFlags | (1 << 9)
)

// IoError is a bitset of recoverable per-entry failure reasons (§7),
// reported to the peer via an out-of-band IO_ERROR message and reflected
// in the sender's final success/failure return value.
type IoError int32

const (
	IoErrorVanished IoError = 1 << 0
	IoErrorGeneral  IoError = 1 << 1
)

// SumHead is the checksum-block header the receiver sends ahead of each
// file's rolling/strong checksum pairs, and the sender echoes back. See
// §6 "Checksum header".
type SumHead struct {
	ChecksumCount   int32 // number of chunks (blocks) described below
	BlockLength     int32 // block length in bytes, 0 means "send whole file"
	ChecksumLength  int32 // length in bytes of each block's strong checksum
	RemainderLength int32 // length of the final, possibly-short block
}

// ReadFrom reads a SumHead as four little-endian int32 values.
func (s *SumHead) ReadFrom(r Int32Reader) error {
	var err error
	if s.ChecksumCount, err = r.ReadInt32(); err != nil {
		return err
	}
	if s.BlockLength, err = r.ReadInt32(); err != nil {
		return err
	}
	if s.ChecksumLength, err = r.ReadInt32(); err != nil {
		return err
	}
	if s.RemainderLength, err = r.ReadInt32(); err != nil {
		return err
	}
	return nil
}

// WriteTo writes a SumHead as four little-endian int32 values.
func (s *SumHead) WriteTo(w Int32Writer) error {
	if err := w.WriteInt32(s.ChecksumCount); err != nil {
		return err
	}
	if err := w.WriteInt32(s.BlockLength); err != nil {
		return err
	}
	if err := w.WriteInt32(s.ChecksumLength); err != nil {
		return err
	}
	if err := w.WriteInt32(s.RemainderLength); err != nil {
		return err
	}
	return nil
}

// BlockLengthFor returns block k's length, accounting for a short final
// block (§4.H step 1, "smallestChunkSize").
func (s *SumHead) BlockLengthFor(k int32) int32 {
	if k == s.ChecksumCount-1 && s.RemainderLength != 0 {
		return s.RemainderLength
	}
	return s.BlockLength
}

// Int32Reader and Int32Writer are the minimal interfaces SumHead needs;
// *rsyncwire.Conn satisfies both without this package importing rsyncwire
// (which itself does not need to depend on this package's SumHead type).
type Int32Reader interface {
	ReadInt32() (int32, error)
}

type Int32Writer interface {
	WriteInt32(int32) error
}

// Kind classifies a FileInfo's filesystem entry type (§3).
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindOther
)
