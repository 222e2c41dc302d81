package flist

// FileInfoCache memoises the previous entry's mode, uid, mtime and
// pathname bytes, used exclusively by the serialiser to pick which xflag
// bits to set (§3 "FileInfoCache").
type FileInfoCache struct {
	valid   bool
	mode    uint32
	uid     int32
	modTime int64
	name    string
}

func (c *FileInfoCache) sameMode(fi *FileInfo) bool {
	return c.valid && c.mode == fi.Mode
}

func (c *FileInfoCache) sameUID(fi *FileInfo) bool {
	return c.valid && c.uid == fi.UID
}

func (c *FileInfoCache) sameTime(fi *FileInfo) bool {
	return c.valid && c.modTime == fi.ModTime
}

func (c *FileInfoCache) prevName() string {
	return c.name
}

func (c *FileInfoCache) update(fi *FileInfo) {
	c.valid = true
	c.mode = fi.Mode
	c.uid = fi.UID
	c.modTime = fi.ModTime
	c.name = fi.Name
}

// TransmittedState is a monotonic bitset indexed by global file index,
// recording "at least one full content send completed" (§3
// "TransmittedState").
type TransmittedState struct {
	set []bool
}

// Set marks idx as transmitted. Once set it is never cleared.
func (t *TransmittedState) Set(idx int32) {
	t.grow(idx)
	t.set[idx] = true
}

// IsSet reports whether idx has been fully transmitted.
func (t *TransmittedState) IsSet(idx int32) bool {
	if idx < 0 || int(idx) >= len(t.set) {
		return false
	}
	return t.set[idx]
}

func (t *TransmittedState) grow(idx int32) {
	if int(idx) < len(t.set) {
		return
	}
	grown := make([]bool, idx+1)
	copy(grown, t.set)
	t.set = grown
}
