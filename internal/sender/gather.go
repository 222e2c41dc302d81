package sender

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/flist"
)

// gatherRoots implements §4.I startup step 2: stat each of the
// caller-supplied paths (relative to root) and build the FileInfo
// entries for the initial segment. A directory root is skipped (with a
// log message when verbose) in non-recursive mode, except a dot-dir root ("."),
// which is always expanded one level regardless of the recursion
// setting.
func (st *Transfer) gatherRoots(root string, paths []string, recursive bool) ([]*flist.FileInfo, error) {
	var entries []*flist.FileInfo

	for _, p := range paths {
		local := filepath.Join(root, p)
		fi, err := os.Lstat(local)
		if err != nil {
			st.Logger.Printf("skipping %s: %v", local, err)
			st.listOK = false
			continue
		}

		name := p
		if name == "." || name == "./" {
			name = "."
		}

		switch {
		case fi.IsDir() && name == ".":
			entries = append(entries, st.fileInfoFor(local, name, fi, true))
			children, derr := st.readDirEntries(local, ".", false)
			if derr != nil {
				st.Logger.Printf("reading %s: %v", local, derr)
				st.listOK = false
				continue
			}
			entries = append(entries, children...)

		case fi.IsDir() && !recursive:
			if st.Opts.Verbose() {
				st.Logger.Printf("skipping directory %s (non-recursive transfer)", local)
			}

		default:
			entries = append(entries, st.fileInfoFor(local, name, fi, true))
		}
	}

	return entries, nil
}

// readDirEntries lists localDir's immediate children, one level, naming
// each relative to parentName (the path already assigned to localDir in
// the file list).
func (st *Transfer) readDirEntries(localDir, parentName string, topLevel bool) ([]*flist.FileInfo, error) {
	des, err := os.ReadDir(localDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(des, func(i, j int) bool { return des[i].Name() < des[j].Name() })

	out := make([]*flist.FileInfo, 0, len(des))
	for _, de := range des {
		childLocal := filepath.Join(localDir, de.Name())
		fi, err := os.Lstat(childLocal)
		if err != nil {
			st.Logger.Printf("skipping %s: %v", childLocal, err)
			st.listOK = false
			continue
		}
		name := de.Name()
		if parentName != "." {
			name = parentName + "/" + de.Name()
		}
		out = append(out, st.fileInfoFor(childLocal, name, fi, topLevel))
	}
	return out, nil
}

// expandChildren lists the immediate children of a stub directory
// entry popped off the file list's expansion queue (§4.F "getStubDirectoryOrNull",
// §4.I refill discipline).
func (st *Transfer) expandChildren(info *flist.FileInfo) ([]*flist.FileInfo, error) {
	return st.readDirEntries(info.LocalPath, info.Name, false)
}

// enqueueStubs scans a freshly created segment for directory entries
// still needing expansion, skipping the root dot-dir entry (already
// expanded inline by gatherRoots) since recursing into it again would
// duplicate its children.
func (st *Transfer) enqueueStubs(seg *flist.Segment, recursive bool) {
	if !recursive {
		return
	}
	for _, ifi := range seg.Entries() {
		if ifi.FileInfo.Kind == rsync.KindDirectory && ifi.FileInfo.Name != "." {
			st.list.EnqueueStub(ifi.Index, ifi.FileInfo)
		}
	}
}

func (st *Transfer) fileInfoFor(local, name string, fi os.FileInfo, topLevel bool) *flist.FileInfo {
	var kind rsync.Kind
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		kind = rsync.KindSymlink
	case fi.IsDir():
		kind = rsync.KindDirectory
	case fi.Mode().IsRegular():
		kind = rsync.KindRegular
	default:
		kind = rsync.KindOther
	}

	uid, uname := uidAndUserName(fi, st.Opts.PreserveUser())

	return &flist.FileInfo{
		LocalPath: local,
		Name:      name,
		Kind:      kind,
		Size:      fi.Size(),
		ModTime:   fi.ModTime().Unix(),
		Mode:      modeOf(fi),
		UID:       uid,
		UserName:  uname,
		TopLevel:  topLevel,
	}
}

// modeOf approximates the POSIX mode bits (type nibble + permissions)
// rsync transmits from Go's portable os.FileMode, since the file-list
// wire format expects the former, not the latter's distinct bit layout.
func modeOf(fi os.FileInfo) uint32 {
	m := fi.Mode()
	var out uint32
	switch {
	case m&os.ModeSymlink != 0:
		out = 0120000
	case m.IsDir():
		out = 040000
	case m&os.ModeDevice != 0 && m&os.ModeCharDevice != 0:
		out = 020000
	case m&os.ModeDevice != 0:
		out = 060000
	case m&os.ModeNamedPipe != 0:
		out = 010000
	case m&os.ModeSocket != 0:
		out = 0140000
	default:
		out = 0100000
	}
	out |= uint32(m.Perm())
	return out
}
