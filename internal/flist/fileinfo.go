// Package flist implements the append-only file-list structure and its
// delta-encoded wire serialisation (§3 "FileList"/"Segment", §4.F, §4.G).
package flist

import "github.com/colinmarc/rsyncsend"

// FileInfo is an immutable record of one path the sender knows about (§3
// "FileInfo"). LocalPath is absolute and used only for opening the file;
// Name is the receiver-relative pathname, already encoded in the
// negotiated character set, and is what travels on the wire.
type FileInfo struct {
	LocalPath string
	Name      string

	Kind    rsync.Kind
	Size    int64
	ModTime int64 // whole seconds
	Mode    uint32

	UID      int32
	UserName string // empty if not preserved/unknown

	// TopLevel marks an entry as one of the user-supplied transfer roots,
	// set by the driver when it builds the initial segment (§4.G xflags
	// bit TOP_LEVEL).
	TopLevel bool
}

// IsDotDir reports whether this entry is the synthetic "." root emitted
// for an expanded dot-dir argument (§4.I step 2).
func (fi *FileInfo) IsDotDir() bool {
	return fi.Name == "."
}
