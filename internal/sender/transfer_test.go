package sender

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/log"
	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

// fakePeer stands in for the receiver side of the protocol: there is no
// receiver implementation in this tree yet to drive the test against, so
// this decodes just enough of the file-list wire format (a single
// top-level regular file, no preserved owner) to request its content and
// walk the driver through both DONE round-trips and the closing
// handshake.
type fakePeer struct {
	conn     *rsyncwire.Conn
	writeIdx *rsyncwire.IndexCoder
	readIdx  *rsyncwire.IndexCoder
}

func (p *fakePeer) recvEntry(wantName string) error {
	xflags, err := p.conn.ReadByte()
	if err != nil {
		return err
	}
	if xflags&rsync.FlistExtendedFlags != 0 {
		return errf("unexpected extended xflags %#x", xflags)
	}
	if xflags&rsync.FlistSameName != 0 {
		return errf("unexpected FlistSameName on the first entry")
	}

	suffixLen, err := p.conn.ReadByte()
	if err != nil {
		return err
	}
	suffix, err := p.conn.Get(int(suffixLen))
	if err != nil {
		return err
	}
	if string(suffix) != wantName {
		return errf("entry name = %q, want %q", suffix, wantName)
	}

	if _, err := p.conn.ReadVarint(3); err != nil { // size
		return err
	}
	if xflags&rsync.FlistSameTime == 0 {
		if _, err := p.conn.ReadVarint(4); err != nil { // mtime
			return err
		}
	}
	if xflags&rsync.FlistSameMode == 0 {
		if _, err := p.conn.ReadInt32(); err != nil { // mode
			return err
		}
	}

	term, err := p.conn.ReadByte()
	if err != nil {
		return err
	}
	if term != 0 {
		return errf("segment terminator = %#x, want 0", term)
	}
	return nil
}

// requestWhole drives one content request for idx with BlockLength 0,
// forcing the SendWhole path, and returns the literal bytes and the
// truncated digest the driver sent back.
func (p *fakePeer) requestWhole(idx int32, checksumLen int32) ([]byte, []byte, error) {
	if err := p.writeIdx.WriteIndex(p.conn, idx); err != nil {
		return nil, nil, err
	}
	if err := p.conn.WriteChar16(iFlagTransfer); err != nil {
		return nil, nil, err
	}
	sh := rsync.SumHead{ChecksumLength: checksumLen}
	if err := sh.WriteTo(p.conn); err != nil {
		return nil, nil, err
	}

	gotIdx, err := p.readIdx.ReadIndex(p.conn)
	if err != nil {
		return nil, nil, err
	}
	if gotIdx != idx {
		return nil, nil, errf("echoed index = %d, want %d", gotIdx, idx)
	}
	if _, err := p.conn.ReadChar16(); err != nil {
		return nil, nil, err
	}
	var echoed rsync.SumHead
	if err := echoed.ReadFrom(p.conn); err != nil {
		return nil, nil, err
	}

	var literal []byte
	for {
		n, err := p.conn.ReadInt32()
		if err != nil {
			return nil, nil, err
		}
		if n == 0 {
			break
		}
		chunk, err := p.conn.Get(int(n))
		if err != nil {
			return nil, nil, err
		}
		literal = append(literal, chunk...)
	}
	digest, err := p.conn.Get(int(checksumLen))
	if err != nil {
		return nil, nil, err
	}
	return literal, digest, nil
}

func (p *fakePeer) sendDone() error {
	return p.writeIdx.WriteIndex(p.conn, rsyncwire.IndexDone)
}

func (p *fakePeer) expectDone() error {
	idx, err := p.readIdx.ReadIndex(p.conn)
	if err != nil {
		return err
	}
	if idx != rsyncwire.IndexDone {
		return errf("index = %d, want IndexDone", idx)
	}
	return nil
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func TestTransferDoSendsWholeFileAndTearsDown(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello world")
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	opts := testOptions(t, "--server")

	r1, w1 := io.Pipe() // driver -> peer
	r2, w2 := io.Pipe() // peer -> driver

	crd, cwr := rsyncwire.CounterPair(r2, w1)
	var logBuf bytes.Buffer
	st := &Transfer{
		Logger: log.New(&logBuf),
		Opts:   opts,
		Conn:   &rsyncwire.Conn{Reader: crd, Writer: cwr},
	}

	peer := &fakePeer{
		conn:     &rsyncwire.Conn{Reader: r1, Writer: w2},
		writeIdx: rsyncwire.NewIndexCoder(),
		readIdx:  rsyncwire.NewIndexCoder(),
	}

	const checksumLen = int32(md5.Size)
	peerErrCh := make(chan error, 1)
	var gotLiteral, gotDigest []byte
	go func() {
		peerErrCh <- func() error {
			if err := peer.recvEntry("hello.txt"); err != nil {
				return err
			}

			literal, digest, err := peer.requestWhole(0, checksumLen)
			if err != nil {
				return err
			}
			gotLiteral, gotDigest = literal, digest

			if err := peer.sendDone(); err != nil {
				return err
			}
			if err := peer.expectDone(); err != nil {
				return err
			}

			if err := peer.sendDone(); err != nil {
				return err
			}

			if err := peer.expectDone(); err != nil { // closing DONE
				return err
			}
			return peer.sendDone() // closing DONE back
		}()
	}()

	stats, err := st.Do(crd, cwr, dir, []string{"hello.txt"}, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if err := <-peerErrCh; err != nil {
		t.Fatalf("fake peer error = %v", err)
	}

	if !bytes.Equal(gotLiteral, content) {
		t.Errorf("literal content = %q, want %q", gotLiteral, content)
	}
	want := md5.Sum(content)
	if !bytes.Equal(gotDigest, want[:]) {
		t.Errorf("digest = %x, want %x", gotDigest, want)
	}

	if stats.NumFiles != 1 {
		t.Errorf("NumFiles = %d, want 1", stats.NumFiles)
	}
	if stats.NumTransferredFiles != 1 {
		t.Errorf("NumTransferredFiles = %d, want 1", stats.NumTransferredFiles)
	}
	if stats.TotalTransferredSize != int64(len(content)) {
		t.Errorf("TotalTransferredSize = %d, want %d", stats.TotalTransferredSize, len(content))
	}
	if stats.LiteralSize != int64(len(content)) {
		t.Errorf("LiteralSize = %d, want %d", stats.LiteralSize, len(content))
	}
}
