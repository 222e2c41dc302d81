// Package rsyncstats holds the running counters both the sender and
// receiver accumulate over the course of a transfer (§3 "Statistics").
package rsyncstats

import "time"

// TransferStats is returned to callers of Transfer.Do on both the sender
// and receiver side, and is also what gets serialized onto the wire (§4.I
// step "if sendStatistics").
type TransferStats struct {
	// Read is the total number of bytes read from the network connection.
	Read int64
	// Written is the total number of bytes written to the network
	// connection.
	Written int64
	// Size is the total size, in bytes, of the file set (as listed, not
	// as transferred).
	Size int64

	// NumFiles is the number of files in the file set.
	NumFiles int
	// NumTransferredFiles is the number of files for which at least one
	// full content send completed.
	NumTransferredFiles int
	// TotalTransferredSize is the sum of the sizes of transferred files.
	TotalTransferredSize int64

	// LiteralSize is the number of bytes sent as literal (non-matched)
	// data across all files.
	LiteralSize int64
	// MatchedSize is the number of bytes reconstructed from block matches
	// across all files.
	MatchedSize int64
	// FileListSize is the number of bytes the serialised file list
	// occupied on the wire.
	FileListSize int64

	// FileListBuildTime is how long it took to build (stat + encode) the
	// initial file list, clamped to at least 1ms (§4.I step 4).
	FileListBuildTime time.Duration
	// FileListTransferTime is how long sending the file list metadata
	// took, clamped to at least 0.
	FileListTransferTime time.Duration
}

// ClampFileListTimes enforces the §4.I step 4 invariant that build time is
// at least 1ms and transfer time is at least 0.
func (s *TransferStats) ClampFileListTimes() {
	if s.FileListBuildTime < time.Millisecond {
		s.FileListBuildTime = time.Millisecond
	}
	if s.FileListTransferTime < 0 {
		s.FileListTransferTime = 0
	}
}
