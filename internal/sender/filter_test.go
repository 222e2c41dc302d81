package sender

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

func TestRecvFilterListAcceptsEmpty(t *testing.T) {
	c, _ := newSenderConn()
	if err := c.WriteInt32(0); err != nil {
		t.Fatal(err)
	}

	fl, err := RecvFilterList(c)
	if err != nil {
		t.Fatalf("RecvFilterList() error = %v", err)
	}
	if diff := cmp.Diff([]string(nil), fl.Filters); diff != "" {
		t.Errorf("Filters mismatch (-want +got):\n%s", diff)
	}
}

func TestRecvFilterListRejectsNonEmpty(t *testing.T) {
	var buf bytes.Buffer
	c := &rsyncwire.Conn{Reader: &buf, Writer: &buf}
	if err := c.WriteInt32(int32(len("- *.o"))); err != nil {
		t.Fatal(err)
	}
	if err := c.Put([]byte("- *.o"), 0, len("- *.o")); err != nil {
		t.Fatal(err)
	}

	if _, err := RecvFilterList(c); err == nil {
		t.Fatal("expected an error for a non-empty filter rule set")
	}
}

func TestRecvFilterListRejectsNegativeLength(t *testing.T) {
	c, _ := newSenderConn()
	if err := c.WriteInt32(-5); err != nil {
		t.Fatal(err)
	}

	if _, err := RecvFilterList(c); err == nil {
		t.Fatal("expected an error for a negative filter list length")
	}
}

func TestRecvFilterListWrapsChannelError(t *testing.T) {
	c, _ := newSenderConn() // empty buffer: reading the length hits EOF immediately

	_, err := RecvFilterList(c)
	if err == nil {
		t.Fatal("expected an error reading from an empty channel")
	}
	if !errors.Is(err, rsyncwire.ErrChannelEOF) {
		t.Errorf("error = %v, want wrapping ErrChannelEOF", err)
	}
}
