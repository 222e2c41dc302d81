package flist

import (
	"bytes"
	"testing"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

func newConn() (*rsyncwire.Conn, *bytes.Buffer) {
	var buf bytes.Buffer
	return &rsyncwire.Conn{Reader: &buf, Writer: &buf}, &buf
}

// readEntry is a minimal independent decoder mirroring §4.G, used only to
// check WriteEntry's output rather than re-using the production encoder.
// preserveUser must match the value the Serializer under test was built
// with, since the uid field's presence depends on it.
func readEntry(t *testing.T, c *rsyncwire.Conn, prevName string, preserveUser bool) (name string, fi partial) {
	t.Helper()

	first, err := c.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte (xflags low): %v", err)
	}
	var xflags uint32
	if first&rsync.FlistExtendedFlags != 0 {
		hi, err := c.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte (xflags high): %v", err)
		}
		xflags = uint32(first) | uint32(hi)<<8
	} else {
		xflags = uint32(first)
	}

	sameName := xflags&rsync.FlistSameName != 0
	longName := xflags&rsync.FlistLongName != 0

	prefixLen := 0
	if sameName {
		b, err := c.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte (prefix len): %v", err)
		}
		prefixLen = int(b)
	}

	var suffixLen int64
	if longName {
		suffixLen, err = c.ReadVarint(1)
		if err != nil {
			t.Fatalf("ReadVarint (suffix len): %v", err)
		}
	} else {
		b, err := c.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte (suffix len): %v", err)
		}
		suffixLen = int64(b)
	}
	suffix, err := c.Get(int(suffixLen))
	if err != nil {
		t.Fatalf("Get (suffix): %v", err)
	}
	name = prevName[:prefixLen] + string(suffix)

	size, err := c.ReadVarint(3)
	if err != nil {
		t.Fatalf("ReadVarint (size): %v", err)
	}
	fi.size = size

	if xflags&rsync.FlistSameTime == 0 {
		mtime, err := c.ReadVarint(4)
		if err != nil {
			t.Fatalf("ReadVarint (mtime): %v", err)
		}
		fi.modTime = mtime
	}
	if xflags&rsync.FlistSameMode == 0 {
		mode, err := c.ReadInt32()
		if err != nil {
			t.Fatalf("ReadInt32 (mode): %v", err)
		}
		fi.mode = uint32(mode)
	}
	if preserveUser && xflags&rsync.FlistSameUID == 0 {
		uid, err := c.ReadVarint(1)
		if err != nil {
			t.Fatalf("ReadVarint (uid): %v", err)
		}
		fi.uid = int32(uid)
		if xflags&rsync.FlistUserNameFollows != 0 {
			nameLen, err := c.ReadByte()
			if err != nil {
				t.Fatalf("ReadByte (user name len): %v", err)
			}
			userName, err := c.Get(int(nameLen))
			if err != nil {
				t.Fatalf("Get (user name): %v", err)
			}
			fi.userName = string(userName)
		}
	}
	return name, fi
}

type partial struct {
	size     int64
	modTime  int64
	mode     uint32
	uid      int32
	userName string
}

func TestSerializerWriteEntryRoundTripsNameDeltaAndFields(t *testing.T) {
	entries := []*FileInfo{
		{Name: ".", Kind: rsync.KindDirectory, Size: 0, ModTime: 1000, Mode: 0o040755, TopLevel: true},
		{Name: "dir/aaa.txt", Kind: rsync.KindRegular, Size: 42, ModTime: 1000, Mode: 0o100644},
		{Name: "dir/bbb.txt", Kind: rsync.KindRegular, Size: 99, ModTime: 2000, Mode: 0o100644},
	}

	c, _ := newConn()
	s := NewSerializer(false /* preserveUser */, true /* recursive */)
	for _, fi := range entries {
		if err := s.WriteEntry(c, fi); err != nil {
			t.Fatalf("WriteEntry(%q): %v", fi.Name, err)
		}
	}
	if err := s.WriteSegmentEnd(c, false); err != nil {
		t.Fatal(err)
	}

	prev := ""
	for _, want := range entries {
		name, got := readEntry(t, c, prev, false)
		if name != want.Name {
			t.Errorf("name = %q, want %q", name, want.Name)
		}
		if got.size != want.Size {
			t.Errorf("%s: size = %d, want %d", name, got.size, want.Size)
		}
		prev = name
	}

	end, err := c.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if end != 0 {
		t.Errorf("segment terminator = %#x, want 0", end)
	}
}

func TestSerializerSameModeTimeElideFields(t *testing.T) {
	a := &FileInfo{Name: "a", Size: 1, ModTime: 500, Mode: 0o100644}
	b := &FileInfo{Name: "b", Size: 2, ModTime: 500, Mode: 0o100644}

	c, _ := newConn()
	s := NewSerializer(false, true)
	if err := s.WriteEntry(c, a); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteEntry(c, b); err != nil {
		t.Fatal(err)
	}

	readEntry(t, c, "", false)
	name, got := readEntry(t, c, "a", false)
	if name != "b" {
		t.Fatalf("name = %q, want b", name)
	}
	if got.modTime != 0 {
		t.Errorf("SAME_TIME entry should not re-send mtime, got %d", got.modTime)
	}
	if got.mode != 0 {
		t.Errorf("SAME_MODE entry should not re-send mode, got %o", got.mode)
	}
}

func TestSerializerIoErrorEndList(t *testing.T) {
	c, _ := newConn()
	s := NewSerializer(false, true)
	if err := s.WriteSegmentEnd(c, true); err != nil {
		t.Fatal(err)
	}

	flags, err := c.ReadChar16()
	if err != nil {
		t.Fatal(err)
	}
	if uint32(flags) != rsync.FlistIoErrorEndList {
		t.Errorf("flags = %#x, want %#x", flags, rsync.FlistIoErrorEndList)
	}
	reason, err := c.ReadVarint(1)
	if err != nil {
		t.Fatal(err)
	}
	if reason != int64(rsync.IoErrorGeneral) {
		t.Errorf("reason = %d, want %d", reason, rsync.IoErrorGeneral)
	}
}

func TestSerializerUserListBatchNonRecursive(t *testing.T) {
	entries := []*FileInfo{
		{Name: "a", UID: 1000, UserName: "alice", Mode: 0o100644},
		{Name: "b", UID: 1000, UserName: "alice", Mode: 0o100644},
		{Name: "c", UID: 1001, UserName: "bob", Mode: 0o100644},
	}

	c, _ := newConn()
	s := NewSerializer(true /* preserveUser */, false /* recursive */)
	for _, fi := range entries {
		if err := s.WriteEntry(c, fi); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.WriteSegmentEnd(c, false); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteUserList(c); err != nil {
		t.Fatal(err)
	}

	// Drain the three entries and the terminator byte first.
	prev := ""
	for range entries {
		name, _ := readEntry(t, c, prev, true)
		prev = name
	}
	if _, err := c.ReadByte(); err != nil {
		t.Fatal(err)
	}

	uid, err := c.ReadVarint(1)
	if err != nil {
		t.Fatal(err)
	}
	if uid != 1000 {
		t.Fatalf("first batch uid = %d, want 1000", uid)
	}
	nameLen, err := c.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	name, err := c.Get(int(nameLen))
	if err != nil {
		t.Fatal(err)
	}
	if string(name) != "alice" {
		t.Fatalf("first batch name = %q, want alice", name)
	}

	uid2, err := c.ReadVarint(1)
	if err != nil {
		t.Fatal(err)
	}
	if uid2 != 1001 {
		t.Fatalf("second batch uid = %d, want 1001", uid2)
	}
	nameLen2, _ := c.ReadByte()
	name2, _ := c.Get(int(nameLen2))
	if string(name2) != "bob" {
		t.Fatalf("second batch name = %q, want bob", name2)
	}

	terminator, err := c.ReadVarint(1)
	if err != nil {
		t.Fatal(err)
	}
	if terminator != 0 {
		t.Fatalf("user list terminator = %d, want 0", terminator)
	}
}
