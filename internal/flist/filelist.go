package flist

import "fmt"

// FileList is the append-only, segment-ordered structure described in §3
// "FileList" and driven per §4.F/§4.I. Segments are only ever appended at
// the back and retired from the front once fully acknowledged.
type FileList struct {
	segments []*Segment
	next     int32

	stubs []stubRef
}

type stubRef struct {
	index int32
	info  *FileInfo
}

// New returns an empty FileList, ready to accept its initial segment.
func New() *FileList {
	return &FileList{}
}

// NewSegment installs a new segment holding entries in insertion order,
// assigning it the next available dense index range (§4.F
// "newSegment(builder)"). parent is the segment containing dirIndex's
// entry (nil for the initial segment); dirIndex is the global index of
// the directory this segment expands, or -1 if none (true only for the
// initial segment).
func (fl *FileList) NewSegment(parent *Segment, dirIndex int32, entries []*FileInfo) *Segment {
	seg := &Segment{
		firstIndex: fl.next,
		parent:     parent,
		dirIndex:   dirIndex,
		entries:    append([]*FileInfo(nil), entries...),
		live:       len(entries),
	}
	fl.next += int32(len(entries))
	fl.segments = append(fl.segments, seg)
	return seg
}

// EnqueueStub records that the directory entry at globalIdx (already
// installed in some segment) still needs its children expanded into a
// new segment (§4.F "isExpandable").
func (fl *FileList) EnqueueStub(globalIdx int32, info *FileInfo) {
	fl.stubs = append(fl.stubs, stubRef{index: globalIdx, info: info})
}

// IsExpandable reports whether any directory awaits expansion.
func (fl *FileList) IsExpandable() bool {
	return len(fl.stubs) > 0
}

// NextStub pops the oldest pending directory awaiting expansion, in the
// order its entry was enqueued (§4.F "getStubDirectoryOrNull").
func (fl *FileList) NextStub() (globalIdx int32, info *FileInfo, ok bool) {
	if len(fl.stubs) == 0 {
		return 0, nil, false
	}
	s := fl.stubs[0]
	fl.stubs = fl.stubs[1:]
	return s.index, s.info, true
}

// FirstSegment returns the oldest not-yet-retired segment.
func (fl *FileList) FirstSegment() (*Segment, bool) {
	if len(fl.segments) == 0 {
		return nil, false
	}
	return fl.segments[0], true
}

// NumSegments is the count of not-yet-retired segments.
func (fl *FileList) NumSegments() int {
	return len(fl.segments)
}

// GetSegmentWith returns the segment whose index range contains
// globalIdx.
func (fl *FileList) GetSegmentWith(globalIdx int32) (*Segment, bool) {
	for _, seg := range fl.segments {
		if seg.Contains(globalIdx) {
			return seg, true
		}
	}
	return nil, false
}

// Resolve is GetSegmentWith followed by Get, for the common case of
// looking an index straight up to its FileInfo (§9 design note on
// driver index resolution).
func (fl *FileList) Resolve(globalIdx int32) (*FileInfo, bool) {
	seg, ok := fl.GetSegmentWith(globalIdx)
	if !ok {
		return nil, false
	}
	return seg.Get(globalIdx)
}

// DeleteFirstSegment retires the oldest segment, which must be finished
// (§4.F "deleteFirstSegment"). Returns the removed segment so the driver
// can deduct its entries from the in-flight count.
func (fl *FileList) DeleteFirstSegment() (*Segment, error) {
	if len(fl.segments) == 0 {
		return nil, fmt.Errorf("flist: DeleteFirstSegment: no segments")
	}
	seg := fl.segments[0]
	if !seg.IsFinished() {
		return nil, fmt.Errorf("flist: DeleteFirstSegment: first segment not finished")
	}
	fl.segments = fl.segments[1:]
	return seg, nil
}

// InFlight returns the total number of live (non-removed) entries across
// every currently-held segment, the quantity the refill discipline of
// §4.I bounds against PartialFileListSize.
func (fl *FileList) InFlight() int {
	n := 0
	for _, seg := range fl.segments {
		n += seg.live
	}
	return n
}
