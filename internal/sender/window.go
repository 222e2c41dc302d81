package sender

import (
	"io"
	"os"
)

// defaultMaxWindow bounds how much unflushed literal data a FileView
// holds buffered before the delta engine must flush it (§4.E: backing
// array capacity >= maxWindow + blockSize).
const defaultMaxWindow = 256 * 1024

// FileView is the bounded sliding window over a file described in §4.E.
// It buffers at most maxWindow+blockLength bytes at a time so the delta
// engine never needs to hold an entire file in memory to scan it.
type FileView struct {
	file *os.File
	r    io.ReaderAt
	size int64

	blockLength int64
	maxWindow   int64

	buf []byte // buf[i] holds file byte firstOffset+i

	firstOffset int64
	startOffset int64
	endOffset   int64
	markOffset  int64

	readErr error
}

// OpenFileView opens path and returns a FileView ready for Init, or a
// *OpenError distinguishing a vanished file from any other failure
// (§4.E "Opening fails with NOT_FOUND (distinct) or GENERAL_IO").
func OpenFileView(path string, size int64, blockLength int32) (*FileView, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Vanished: os.IsNotExist(err), Err: err}
	}
	return newFileView(f, f, size, blockLength), nil
}

func newFileView(file *os.File, r io.ReaderAt, size int64, blockLength int32) *FileView {
	bl := int64(blockLength)
	if bl <= 0 {
		bl = 1
	}
	return &FileView{
		file:        file,
		r:           r,
		size:        size,
		blockLength: bl,
		maxWindow:   defaultMaxWindow,
	}
}

// OpenError reports why opening a file for the delta engine failed.
type OpenError struct {
	Vanished bool
	Err      error
}

func (e *OpenError) Error() string { return e.Err.Error() }
func (e *OpenError) Unwrap() error { return e.Err }

// Init loads the file's first window: [0, min(blockLength, size)),
// the starting position for the §4.H scan.
func (v *FileView) Init() error {
	end := v.blockLength
	if end > v.size {
		end = v.size
	}
	if err := v.ensure(end); err != nil {
		return err
	}
	v.startOffset = 0
	v.endOffset = end
	v.markOffset = 0
	return nil
}

// ensure grows buf so it covers [firstOffset, firstOffset+n).
func (v *FileView) ensure(n int64) error {
	if int64(len(v.buf)) >= n {
		return nil
	}
	grown := make([]byte, n)
	copy(grown, v.buf)
	readAt := v.firstOffset + int64(len(v.buf))
	if _, err := v.r.ReadAt(grown[len(v.buf):], readAt); err != nil && err != io.EOF {
		v.readErr = err
		return err
	}
	v.buf = grown
	return nil
}

// compact drops buffered bytes before markOffset, the earliest position
// still reachable once the pending literal run has been flushed.
func (v *FileView) compact() {
	drop := v.markOffset - v.firstOffset
	if drop <= 0 {
		return
	}
	v.buf = append(v.buf[:0], v.buf[drop:]...)
	v.firstOffset = v.markOffset
}

// Start is the offset of the first byte in the current window.
func (v *FileView) Start() int64 { return v.startOffset }

// End is the offset one past the last byte in the current window.
func (v *FileView) End() int64 { return v.endOffset }

// Mark is the beginning of the current pending literal run.
func (v *FileView) Mark() int64 { return v.markOffset }

// Len is the current window's length; it never exceeds blockLength
// except for the final, possibly-short window at end of file.
func (v *FileView) Len() int64 { return v.endOffset - v.startOffset }

// SetMark moves the pending-literal-run start forward (the caller must
// have already flushed everything before the new mark) and compacts the
// buffer, releasing bytes that can no longer be referenced.
func (v *FileView) SetMark(o int64) {
	v.markOffset = o
	v.compact()
}

// Window returns the bytes currently in [Start, End).
func (v *FileView) Window() []byte {
	return v.buf[v.startOffset-v.firstOffset : v.endOffset-v.firstOffset]
}

// Range returns the buffered bytes in [lo, hi), both of which must lie
// within [firstOffset, endOffset].
func (v *FileView) Range(lo, hi int64) []byte {
	if hi <= lo {
		return nil
	}
	return v.buf[lo-v.firstOffset : hi-v.firstOffset]
}

// NeedsCompaction reports whether the unflushed prefix before the
// window's start has grown past maxWindow, meaning the caller should
// flush its pending literal run before sliding further (§4.H step 3,
// "if sliding would overflow the view's capacity").
func (v *FileView) NeedsCompaction() bool {
	return v.startOffset-v.firstOffset > v.maxWindow
}

// SlideOne advances the window by one byte. grew reports whether a new
// trailing byte entered the window (false once the window's end has
// reached the file's end, in which case the window merely shrinks from
// the left for its final, short position).
func (v *FileView) SlideOne() (leaving, trailing byte, grew bool, err error) {
	leaving = v.buf[v.startOffset-v.firstOffset]
	v.startOffset++

	if v.endOffset >= v.size {
		return leaving, 0, false, nil
	}
	newEnd := v.endOffset + 1
	if err := v.ensure(newEnd - v.firstOffset); err != nil {
		return 0, 0, false, err
	}
	v.endOffset = newEnd
	trailing = v.buf[v.endOffset-1-v.firstOffset]
	return leaving, trailing, true, nil
}

// JumpAfterMatch repositions the window after a successful block match:
// mark moves to the end of the matched block, and a new window of up to
// blockLength bytes begins one byte before that mark, ready for the
// rolling sum to be recomputed from scratch (§4.H step 3).
func (v *FileView) JumpAfterMatch() error {
	v.markOffset = v.endOffset

	newStart := v.endOffset - 1
	if newStart < 0 {
		newStart = 0
	}
	// Drop only the bytes before newStart: the byte at newStart lies
	// before the mark but is part of the new window.
	if drop := newStart - v.firstOffset; drop > 0 {
		v.buf = append(v.buf[:0], v.buf[drop:]...)
		v.firstOffset = newStart
	}
	newEnd := newStart + v.blockLength
	if newEnd > v.size {
		newEnd = v.size
	}
	if err := v.ensure(newEnd - v.firstOffset); err != nil {
		return err
	}
	v.startOffset = newStart
	v.endOffset = newEnd
	return nil
}

// Close releases the underlying file. It returns the buffered read
// error if one occurred, and otherwise the error from closing the file
// (§4.E "reading may fail with READ_ERROR (reported on close)").
func (v *FileView) Close() error {
	var closeErr error
	if v.file != nil {
		closeErr = v.file.Close()
	}
	if v.readErr != nil {
		return v.readErr
	}
	return closeErr
}

// Err returns the first read error encountered while growing the
// buffer, if any.
func (v *FileView) Err() error { return v.readErr }
