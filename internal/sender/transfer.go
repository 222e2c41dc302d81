// Package sender implements the sending side of the protocol: gathering
// the local file list, serialising it to the peer, and answering each
// content request with either a whole-file literal stream or a
// block-matched delta (§4.I).
package sender

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/flist"
	"github.com/colinmarc/rsyncsend/internal/log"
	"github.com/colinmarc/rsyncsend/internal/rsyncopts"
	"github.com/colinmarc/rsyncsend/internal/rsyncstats"
	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

// PartialFileListSize bounds how many file-list entries the driver lets
// accumulate in memory (emitted but not yet resolved off the front of
// the list) before it stops handing out new directory expansions (§4.F,
// §4.I refill discipline, §8 property "flow-control bound").
const PartialFileListSize = 1024

// phase tracks the driver's position in the teardown handshake (§3
// "ConnectionPhase"): TRANSFER while content requests are still being
// answered, TEARING_DOWN once the peer has signalled the end of one
// round of DONEs, DONE once both sides have finished.
type phase int

const (
	phaseTransfer phase = iota
	phaseTearingDown
	phaseDone
)

// Item flags accompanying a non-negative index (§4.D, §6 "Index"). Bit 0
// requests file content; every other bit is reserved by upstream rsync
// for attributes (hard-link grouping, the "basis file differs" hint)
// this revision neither emits nor understands.
const (
	iFlagTransfer   uint16 = 1 << 0
	iFlagsKnownMask        = iFlagTransfer
)

// Transfer drives one sending-side session (§4.I).
type Transfer struct {
	Logger log.Logger
	Opts   *rsyncopts.Options
	Conn   *rsyncwire.Conn
	Seed   int32

	// Ctx is checked for cancellation once per main-loop iteration, but
	// only when Opts.Interruptible() is set; a read or write already
	// blocked on the connection is not interrupted. nil behaves as
	// context.Background().
	Ctx context.Context

	list        *flist.FileList
	ser         *flist.Serializer
	writeIdx    *rsyncwire.IndexCoder
	readIdx     *rsyncwire.IndexCoder
	transmitted flist.TransmittedState

	phase   phase
	eofSent bool
	listOK  bool

	ioError rsync.IoError

	stats rsyncstats.TransferStats
}

func (st *Transfer) ctx() context.Context {
	if st.Ctx != nil {
		return st.Ctx
	}
	return context.Background()
}

func (st *Transfer) checkCancel() error {
	if !st.Opts.Interruptible() {
		return nil
	}
	select {
	case <-st.ctx().Done():
		return fmt.Errorf("rsync: interrupted: %w", st.ctx().Err())
	default:
		return nil
	}
}

// Do runs a full sending-side session: expanding root into the initial
// file list, serving the peer's content requests until both sides reach
// DONE, and the final teardown handshake. filters holds the filter
// rules the peer sent ahead of the transfer (nil when acting as a
// client); this revision does not evaluate them (§1 Non-goals) beyond
// what RecvFilterList already rejected.
func (st *Transfer) Do(crd *rsyncwire.CountingReader, cwr *rsyncwire.CountingWriter, root string, paths []string, filters *FilterList) (*rsyncstats.TransferStats, error) {
	st.list = flist.New()
	st.ser = flist.NewSerializer(st.Opts.PreserveUser(), st.Opts.FileSelection())
	st.writeIdx = rsyncwire.NewIndexCoder()
	st.readIdx = rsyncwire.NewIndexCoder()
	st.listOK = true

	recursive := st.Opts.FileSelection()

	buildStart := time.Now()
	entries, err := st.gatherRoots(root, paths, recursive)
	if err != nil {
		return nil, err
	}
	seg := st.list.NewSegment(nil, -1, entries)
	st.enqueueStubs(seg, recursive)
	buildElapsed := time.Since(buildStart)

	transferStart := time.Now()
	for _, ifi := range seg.Entries() {
		if err := st.ser.WriteEntry(st.Conn, ifi.FileInfo); err != nil {
			return nil, err
		}
		st.stats.NumFiles++
		st.stats.Size += ifi.FileInfo.Size
	}
	if err := st.ser.WriteSegmentEnd(st.Conn, false); err != nil {
		return nil, err
	}
	if !recursive && st.Opts.PreserveUser() {
		if err := st.ser.WriteUserList(st.Conn); err != nil {
			return nil, err
		}
	}
	transferElapsed := time.Since(transferStart)

	st.stats.FileListBuildTime = buildElapsed
	st.stats.FileListTransferTime = transferElapsed
	st.stats.ClampFileListTimes()

	if len(entries) == 0 && !st.list.IsExpandable() && st.Opts.ExitEarlyIfEmptyList() {
		st.stats.Read = crd.Count
		st.stats.Written = cwr.Count
		if err := st.drainIfClient(); err != nil {
			return nil, err
		}
		return &st.stats, nil
	}

	if err := st.mainLoop(); err != nil {
		return nil, err
	}

	st.stats.Read = crd.Count
	st.stats.Written = cwr.Count

	if err := st.teardown(); err != nil {
		return nil, err
	}
	return &st.stats, nil
}

func (st *Transfer) mainLoop() error {
	for st.phase != phaseDone {
		if err := st.checkCancel(); err != nil {
			return err
		}

		if err := st.refill(); err != nil {
			return err
		}

		if st.phase == phaseTransfer && st.Opts.FileSelection() && !st.list.IsExpandable() && !st.eofSent {
			if err := st.writeIdx.WriteIndex(st.Conn, rsyncwire.IndexEOF); err != nil {
				return err
			}
			st.eofSent = true
		}

		idx, err := st.readIdx.ReadIndex(st.Conn)
		if err != nil {
			return err
		}

		switch {
		case idx == rsyncwire.IndexDone:
			if err := st.handleDone(); err != nil {
				return err
			}
		case idx >= 0:
			if err := st.handlePositiveIndex(idx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("rsync: protocol error: unexpected index %d from peer", idx)
		}
	}
	return nil
}

// refill pops stub directories off the expansion queue and streams each
// one's children to the peer, stopping once the number of entries still
// outstanding (emitted but not yet resolved) has reached
// PartialFileListSize (§4.F). The count is checked before each
// expansion and a directory's children are emitted whole, so it can end
// above PartialFileListSize.
func (st *Transfer) refill() error {
	for st.list.IsExpandable() && st.list.InFlight() < PartialFileListSize {
		globalIdx, info, ok := st.list.NextStub()
		if !ok {
			break
		}

		children, err := st.expandChildren(info)
		ioErr := err != nil
		if ioErr {
			st.Logger.Printf("expanding %s: %v", info.LocalPath, err)
			st.ioError |= rsync.IoErrorGeneral
			st.listOK = false
		}

		if err := st.writeIdx.WriteIndex(st.Conn, rsyncwire.IndexOffset-globalIdx); err != nil {
			return err
		}

		parentSeg, _ := st.list.GetSegmentWith(globalIdx)
		childSeg := st.list.NewSegment(parentSeg, globalIdx, children)
		st.enqueueStubs(childSeg, true)

		for _, ifi := range childSeg.Entries() {
			if err := st.ser.WriteEntry(st.Conn, ifi.FileInfo); err != nil {
				return err
			}
			st.stats.NumFiles++
			st.stats.Size += ifi.FileInfo.Size
		}
		if err := st.ser.WriteSegmentEnd(st.Conn, ioErr && st.Opts.SafeFileList()); err != nil {
			return err
		}
	}
	return nil
}

// handleDone implements §3's ConnectionPhase advance: retire the file
// list's first segment once finished, echo DONE back while segments (or
// pending expansions) remain in recursive mode, and otherwise step the
// phase forward, echoing DONE again unless the new phase is terminal.
func (st *Transfer) handleDone() error {
	if seg, ok := st.list.FirstSegment(); ok && seg.IsFinished() {
		if _, err := st.list.DeleteFirstSegment(); err != nil {
			return err
		}
	}

	if st.Opts.FileSelection() && (st.list.NumSegments() > 0 || st.list.IsExpandable()) {
		return st.writeIdx.WriteIndex(st.Conn, rsyncwire.IndexDone)
	}

	switch st.phase {
	case phaseTransfer:
		st.phase = phaseTearingDown
	case phaseTearingDown:
		st.phase = phaseDone
	}
	if st.phase != phaseDone {
		return st.writeIdx.WriteIndex(st.Conn, rsyncwire.IndexDone)
	}
	return nil
}

func (st *Transfer) handlePositiveIndex(idx int32) error {
	iFlags, err := st.Conn.ReadChar16()
	if err != nil {
		return err
	}
	if iFlags&^iFlagsKnownMask != 0 {
		return fmt.Errorf("rsync: protocol error: unknown item flags %#x", iFlags)
	}

	if iFlags&iFlagTransfer == 0 {
		if seg, ok := st.list.GetSegmentWith(idx); ok {
			seg.Remove(idx)
		}
		if err := st.writeIdx.WriteIndex(st.Conn, idx); err != nil {
			return err
		}
		return st.Conn.WriteChar16(iFlags)
	}

	if st.phase != phaseTransfer {
		return fmt.Errorf("rsync: protocol error: content request %d received outside TRANSFER phase", idx)
	}

	info, ok := st.list.Resolve(idx)
	if !ok {
		return fmt.Errorf("rsync: protocol error: content request for unknown index %d", idx)
	}
	if info.Kind != rsync.KindRegular {
		return fmt.Errorf("rsync: protocol error: content request for non-regular entry %q", info.Name)
	}

	var sh rsync.SumHead
	if err := sh.ReadFrom(st.Conn); err != nil {
		return err
	}
	chunks := make([]Chunk, sh.ChecksumCount)
	for i := range chunks {
		weak, err := st.Conn.ReadInt32()
		if err != nil {
			return err
		}
		strong, err := st.Conn.Get(int(sh.ChecksumLength))
		if err != nil {
			return err
		}
		chunks[i] = Chunk{Index: int32(i), Weak: uint32(weak), Strong: strong}
	}

	if err := st.writeIdx.WriteIndex(st.Conn, idx); err != nil {
		return err
	}
	if err := st.Conn.WriteChar16(iFlags); err != nil {
		return err
	}
	if err := sh.WriteTo(st.Conn); err != nil {
		return err
	}

	if err := st.sendFile(idx, info, &sh, chunks); err != nil {
		return err
	}
	if seg, ok := st.list.GetSegmentWith(idx); ok {
		seg.Remove(idx)
	}
	return nil
}

// sendFile answers one content request (§4.H), choosing SendWhole or
// RunDelta depending on whether the receiver offered any checksums, and
// folds a local failure into the IoError accounting instead of failing
// the whole session (§7).
func (st *Transfer) sendFile(idx int32, info *flist.FileInfo, sh *rsync.SumHead, chunks []Chunk) error {
	f, err := os.Open(info.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			st.ioError |= rsync.IoErrorVanished
		} else {
			st.ioError |= rsync.IoErrorGeneral
		}
		st.listOK = false
		return st.sendNoSend(idx)
	}
	defer f.Close()

	var digest []byte
	var literal, matched int64
	if sh.BlockLength == 0 {
		digest, literal, err = SendWhole(st.Conn, f, int(sh.ChecksumLength))
	} else {
		fv := newFileView(f, f, info.Size, sh.BlockLength)
		digest, literal, matched, err = RunDelta(st.Conn, sh, chunks, fv, st.Seed, int(sh.ChecksumLength))
	}

	if err != nil {
		if errors.Is(err, rsyncwire.ErrChannelIO) || errors.Is(err, rsyncwire.ErrChannelEOF) {
			return err
		}
		// A local read failure partway through: corrupt the digest so the
		// receiver's verification fails and it can re-request, rather than
		// aborting the whole session over one unreadable file.
		st.Logger.Printf("reading %s: %v", info.LocalPath, err)
		st.ioError |= rsync.IoErrorGeneral
		st.listOK = false
		if digest == nil {
			digest = make([]byte, sh.ChecksumLength)
		} else {
			digest[0]++
		}
	}

	if _, err := st.Conn.Write(digest); err != nil {
		return err
	}

	st.transmitted.Set(idx)
	st.stats.NumTransferredFiles++
	st.stats.TotalTransferredSize += info.Size
	st.stats.LiteralSize += literal
	st.stats.MatchedSize += matched
	return nil
}

// sendNoSend notifies the peer out-of-band that idx will not be
// transferred, when the channel is multiplexed. Without a multiplexed
// writer (e.g. a bare pipe in a test) there is no side channel to use;
// the caller's IoError/listOK bookkeeping still records the failure.
func (st *Transfer) sendNoSend(idx int32) error {
	mw, ok := st.Conn.Writer.(*rsyncwire.MultiplexWriter)
	if !ok {
		return nil
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(idx))
	return mw.WriteMsg(rsyncwire.MsgNoSend, buf[:])
}

// teardown implements §4.I's final handshake: report accumulated
// IoErrors out-of-band, send the closing DONE, optionally a statistics
// block, require the peer's own closing DONE, and drain to EOF when
// acting as a client.
func (st *Transfer) teardown() error {
	if st.ioError != 0 {
		if mw, ok := st.Conn.Writer.(*rsyncwire.MultiplexWriter); ok {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(st.ioError))
			if err := mw.WriteMsg(rsyncwire.MsgIOError, buf[:]); err != nil {
				return err
			}
		}
	}

	if err := st.writeIdx.WriteIndex(st.Conn, rsyncwire.IndexDone); err != nil {
		return err
	}

	if st.Opts.SendStatistics() {
		vals := []int64{
			st.stats.Read,
			st.stats.Written,
			st.stats.Size,
			st.stats.FileListBuildTime.Milliseconds(),
			st.stats.FileListTransferTime.Milliseconds(),
		}
		for _, v := range vals {
			if err := st.Conn.WriteVarint(v, 3); err != nil {
				return err
			}
		}
	}

	idx, err := st.readIdx.ReadIndex(st.Conn)
	if err != nil {
		return err
	}
	if idx != rsyncwire.IndexDone {
		return fmt.Errorf("rsync: protocol error: expected closing DONE, got index %d", idx)
	}

	if err := st.drainIfClient(); err != nil {
		return err
	}

	if !st.listOK || st.ioError != 0 {
		return fmt.Errorf("rsync: transfer completed with errors (ioError=%#x, listOK=%v)", st.ioError, st.listOK)
	}
	return nil
}

func (st *Transfer) drainIfClient() error {
	if st.Opts.Server() {
		return nil
	}
	for {
		if _, err := st.Conn.ReadByte(); err != nil {
			if errors.Is(err, rsyncwire.ErrChannelEOF) {
				return nil
			}
			return err
		}
	}
}
