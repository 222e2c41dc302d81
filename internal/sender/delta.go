package sender

import (
	"bytes"
	"hash"
	"io"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

// Chunk is one block checksum pair the receiver sent ahead of a file
// transfer (§6 "Per-chunk checksum").
type Chunk struct {
	Index  int32
	Weak   uint32
	Strong []byte
}

// ChunkIndex answers the §4.H "getCandidateChunks(weak, windowLen,
// preferredIndex)" query: the chunks whose weak sum matches a given
// window, ordered so chunks at or past preferredIndex come first (the
// locality optimisation — a file rarely shuffles its blocks far).
type ChunkIndex struct {
	chunks []Chunk
	byWeak map[uint32][]int32
}

// NewChunkIndex builds the weak-sum lookup table from the receiver's
// checksum list.
func NewChunkIndex(chunks []Chunk) *ChunkIndex {
	ci := &ChunkIndex{chunks: chunks, byWeak: make(map[uint32][]int32)}
	for _, ch := range chunks {
		ci.byWeak[ch.Weak] = append(ci.byWeak[ch.Weak], ch.Index)
	}
	return ci
}

// Candidates returns the indices of chunks whose weak sum equals weak,
// with indices >= preferredIndex ordered first.
func (ci *ChunkIndex) Candidates(weak uint32, preferredIndex int32) []int32 {
	all := ci.byWeak[weak]
	if len(all) == 0 {
		return nil
	}
	out := make([]int32, 0, len(all))
	for _, idx := range all {
		if idx >= preferredIndex {
			out = append(out, idx)
		}
	}
	for _, idx := range all {
		if idx < preferredIndex {
			out = append(out, idx)
		}
	}
	return out
}

// Strong returns chunk idx's strong digest.
func (ci *ChunkIndex) Strong(idx int32) []byte { return ci.chunks[idx].Strong }

const literalChunkSize = 8192

// emitLiteral writes data as a sequence of (positive-length, bytes)
// token frames no larger than literalChunkSize, feeding every byte into
// h in the same order it goes on the wire (§4.H "chunked by 8192").
func emitLiteral(c *rsyncwire.Conn, data []byte, h hash.Hash) (int64, error) {
	var n int64
	for len(data) > 0 {
		chunk := data
		if len(chunk) > literalChunkSize {
			chunk = chunk[:literalChunkSize]
		}
		if err := c.WriteInt32(int32(len(chunk))); err != nil {
			return n, err
		}
		if err := c.Put(chunk, 0, len(chunk)); err != nil {
			return n, err
		}
		h.Write(chunk)
		n += int64(len(chunk))
		data = data[len(chunk):]
	}
	return n, nil
}

// SendWhole implements §4.H "Case isNew": the receiver has no usable
// checksums (blockLength == 0), so the entire file is streamed as
// literal data and the whole-file digest is computed over it directly.
func SendWhole(c *rsyncwire.Conn, f io.Reader, negotiatedLen int) (digest []byte, literal int64, err error) {
	h := rsync.NewFileDigest()
	buf := make([]byte, literalChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := c.WriteInt32(int32(n)); err != nil {
				return nil, literal, err
			}
			if err := c.Put(buf, 0, n); err != nil {
				return nil, literal, err
			}
			h.Write(buf[:n])
			literal += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, literal, rerr
		}
	}
	if err := c.WriteInt32(0); err != nil {
		return nil, literal, err
	}
	return rsync.TruncatedSum(h, negotiatedLen), literal, nil
}

// RunDelta implements §4.H "Case matching": it scans fv's file content
// against the receiver's block checksums, writing the literal/match
// token stream to c, and returns the whole-file digest (truncated to
// negotiatedLen) plus the literal and matched byte counts for
// statistics. fv must not yet be initialised; RunDelta calls Init.
func RunDelta(c *rsyncwire.Conn, sh *rsync.SumHead, chunks []Chunk, fv *FileView, seed int32, negotiatedLen int) (digest []byte, literal, matched int64, err error) {
	if err := fv.Init(); err != nil {
		return nil, 0, 0, err
	}

	idx := NewChunkIndex(chunks)
	h := rsync.NewFileDigest()

	smallestChunkSize := sh.BlockLength
	if sh.RemainderLength != 0 && sh.RemainderLength < smallestChunkSize {
		smallestChunkSize = sh.RemainderLength
	}

	w := fv.Window()
	rolling := rsync.Compute(w, 0, len(w))
	var preferredIndex int32
	var cachedStrong []byte

	for smallestChunkSize > 0 && fv.Len() >= int64(smallestChunkSize) {
		for _, candIdx := range idx.Candidates(rolling.Value(), preferredIndex) {
			if int64(sh.BlockLengthFor(candIdx)) != fv.Len() {
				continue
			}
			if cachedStrong == nil {
				cachedStrong = rsync.BlockDigest(fv.Window(), seed)[:sh.ChecksumLength]
			}
			if !bytes.Equal(cachedStrong, idx.Strong(candIdx)) {
				continue
			}

			litLen, werr := emitLiteral(c, fv.Range(fv.Mark(), fv.Start()), h)
			if werr != nil {
				return nil, 0, 0, werr
			}
			literal += litLen

			if err := c.WriteInt32(-(candIdx + 1)); err != nil {
				return nil, 0, 0, err
			}
			block := fv.Window()
			h.Write(block)
			matched += int64(len(block))

			preferredIndex = candIdx + 1
			if err := fv.JumpAfterMatch(); err != nil {
				return nil, 0, 0, err
			}
			cachedStrong = nil
			nw := fv.Window()
			rolling = rsync.Compute(nw, 0, len(nw))
			// The new window starts one byte before the mark; the
			// one-byte slide below moves it onto the mark.
			break
		}

		if fv.NeedsCompaction() {
			litLen, werr := emitLiteral(c, fv.Range(fv.Mark(), fv.Start()), h)
			if werr != nil {
				return nil, 0, 0, werr
			}
			literal += litLen
			fv.SetMark(fv.Start())
		}

		windowLenBefore := int(fv.Len())
		leaving, trailing, grew, serr := fv.SlideOne()
		if serr != nil {
			return nil, 0, 0, serr
		}
		if grew {
			rolling = rolling.Slide(windowLenBefore, leaving, trailing)
		} else {
			rolling = rolling.Subtract(windowLenBefore, leaving)
		}
		cachedStrong = nil
	}

	litLen, werr := emitLiteral(c, fv.Range(fv.Mark(), fv.End()), h)
	if werr != nil {
		return nil, 0, 0, werr
	}
	literal += litLen

	if err := c.WriteInt32(0); err != nil {
		return nil, 0, 0, err
	}
	return rsync.TruncatedSum(h, negotiatedLen), literal, matched, nil
}
