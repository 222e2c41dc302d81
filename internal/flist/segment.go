package flist

// Segment holds one contiguous, densely-indexed run of FileInfo entries
// (§3 "Segment"). The initial segment's Parent is nil; every subsequent
// segment is the result of expanding a directory that was itself an
// entry of an earlier segment, and DirIndex names that directory's
// global index so the driver can tell it apart from an ordinary child
// when deciding whether to remove() an acknowledged entry.
type Segment struct {
	firstIndex int32
	parent     *Segment
	dirIndex   int32 // global index of the directory this segment expands, or -1

	entries []*FileInfo // dense, entries[i] is global index firstIndex+i; nil once removed
	live    int
}

// FirstIndex is the global index of entries[0].
func (s *Segment) FirstIndex() int32 { return s.firstIndex }

// Len is the number of index slots this segment occupies, including any
// already-removed ones.
func (s *Segment) Len() int32 { return int32(len(s.entries)) }

// Parent is the segment containing the directory entry this segment
// expands, or nil for the initial segment.
func (s *Segment) Parent() *Segment { return s.parent }

// DirIndex is the global index of the directory entry this segment
// expands, or -1 if this segment has no such entry (the initial
// segment).
func (s *Segment) DirIndex() int32 { return s.dirIndex }

// Contains reports whether globalIdx falls inside this segment's index
// range, irrespective of whether that slot has been removed.
func (s *Segment) Contains(globalIdx int32) bool {
	return globalIdx >= s.firstIndex && globalIdx < s.firstIndex+int32(len(s.entries))
}

// Get returns the FileInfo at globalIdx, or false if the index is out of
// range or has already been removed.
func (s *Segment) Get(globalIdx int32) (*FileInfo, bool) {
	if !s.Contains(globalIdx) {
		return nil, false
	}
	fi := s.entries[globalIdx-s.firstIndex]
	return fi, fi != nil
}

// Entries returns the segment's entries in insertion (and thus wire)
// order, paired with their global indices. Already-removed slots are
// skipped.
func (s *Segment) Entries() []IndexedFileInfo {
	out := make([]IndexedFileInfo, 0, len(s.entries))
	for i, fi := range s.entries {
		if fi == nil {
			continue
		}
		out = append(out, IndexedFileInfo{Index: s.firstIndex + int32(i), FileInfo: fi})
	}
	return out
}

// IndexedFileInfo pairs a FileInfo with the global index it was assigned.
type IndexedFileInfo struct {
	Index int32
	FileInfo *FileInfo
}

// Remove marks globalIdx as done (the peer has fully acknowledged it),
// unless it is this segment's own directory index (§4.I: "Remove the
// entry from its segment (unless the index is the segment's own
// directory index)").
func (s *Segment) Remove(globalIdx int32) {
	if globalIdx == s.dirIndex {
		return
	}
	if !s.Contains(globalIdx) {
		return
	}
	i := globalIdx - s.firstIndex
	if s.entries[i] != nil {
		s.entries[i] = nil
		s.live--
	}
}

// IsFinished reports whether no live (non-removed) entries remain.
func (s *Segment) IsFinished() bool {
	return s.live == 0
}
