package sender

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/colinmarc/rsyncsend"
	"github.com/colinmarc/rsyncsend/internal/flist"
	"github.com/colinmarc/rsyncsend/internal/log"
	"github.com/colinmarc/rsyncsend/internal/rsyncopts"
	"github.com/colinmarc/rsyncsend/internal/rsyncos"
)

func testOptions(t *testing.T, args ...string) *rsyncopts.Options {
	t.Helper()
	env := &rsyncos.Env{
		Std:    rsyncos.Std{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}},
		Getenv: func(string) string { return "" },
	}
	pc, err := rsyncopts.ParseArguments(env, args)
	if err != nil {
		t.Fatalf("ParseArguments(%q) error = %v", args, err)
	}
	return pc.Options
}

func newTestTransfer(t *testing.T, opts *rsyncopts.Options) (*Transfer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &Transfer{
		Logger: log.New(&buf),
		Opts:   opts,
		listOK: true,
	}, &buf
}

func TestGatherRootsPlainFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t, "-r"))
	entries, err := st.gatherRoots(dir, []string{"f"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Kind != rsync.KindRegular || entries[0].Name != "f" || !entries[0].TopLevel {
		t.Errorf("entries[0] = %+v, want regular file %q, top-level", entries[0], "f")
	}
	if !st.listOK {
		t.Error("listOK = false, want true")
	}
}

func TestGatherRootsDirectoryNonRecursiveSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t))
	entries, err := st.gatherRoots(dir, []string{"sub"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none (non-recursive directory root is skipped)", entries)
	}
	if !st.listOK {
		t.Error("listOK = false, want true: skipping a directory is not an error")
	}
}

func TestGatherRootsDirectoryRecursiveIncluded(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t, "-r"))
	entries, err := st.gatherRoots(dir, []string{"sub"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != rsync.KindDirectory || entries[0].Name != "sub" {
		t.Fatalf("entries = %+v, want one directory entry named %q", entries, "sub")
	}
}

func TestGatherRootsDotDirExpandsOneLevel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t))
	entries, err := st.gatherRoots(dir, []string{"."}, false)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{".", "a", "b"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if !entries[0].IsDotDir() {
		t.Errorf("entries[0] = %+v, want the synthetic dot-dir entry", entries[0])
	}
}

func TestGatherRootsMissingPathMarksListNotOK(t *testing.T) {
	dir := t.TempDir()

	st, buf := newTestTransfer(t, testOptions(t))
	entries, err := st.gatherRoots(dir, []string{"does-not-exist"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
	if st.listOK {
		t.Error("listOK = true, want false after a missing root")
	}
	if buf.Len() == 0 {
		t.Error("expected a log line about the skipped path")
	}
}

func TestExpandChildrenListsImmediateChildrenOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "leaf"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t, "-r"))
	info := &flist.FileInfo{LocalPath: filepath.Join(dir, "sub"), Name: "sub", Kind: rsync.KindDirectory}
	children, err := st.expandChildren(info)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, c := range children {
		names = append(names, c.Name)
	}
	want := []string{"sub/leaf", "sub/nested"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestEnqueueStubsSkipsDotDirAndNonDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	st, _ := newTestTransfer(t, testOptions(t, "-r"))
	entries := []*flist.FileInfo{
		{Name: ".", Kind: rsync.KindDirectory},
		{Name: "f", Kind: rsync.KindRegular},
		{Name: "sub", Kind: rsync.KindDirectory, LocalPath: filepath.Join(dir, "sub")},
	}
	st.list = flist.New()
	seg := st.list.NewSegment(nil, -1, entries)

	st.enqueueStubs(seg, true)
	if !st.list.IsExpandable() {
		t.Fatal("IsExpandable() = false, want true: the \"sub\" entry should be queued")
	}
	idx, info, ok := st.list.NextStub()
	if !ok || info.Name != "sub" || idx != seg.FirstIndex()+2 {
		t.Errorf("NextStub() = %d, %+v, %v, want the \"sub\" entry at index %d", idx, info, ok, seg.FirstIndex()+2)
	}
	if st.list.IsExpandable() {
		t.Error("IsExpandable() = true after draining the only stub, want false")
	}
}

func TestEnqueueStubsNonRecursiveNoOp(t *testing.T) {
	st, _ := newTestTransfer(t, testOptions(t))
	entries := []*flist.FileInfo{{Name: "sub", Kind: rsync.KindDirectory}}
	st.list = flist.New()
	seg := st.list.NewSegment(nil, -1, entries)

	st.enqueueStubs(seg, false)
	if st.list.IsExpandable() {
		t.Error("IsExpandable() = true, want false: non-recursive transfers never queue stubs")
	}
}

func TestModeOfEncodesTypeAndPermissionBits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, nil, 0o640); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Lstat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := modeOf(fi), uint32(0100640); got != want {
		t.Errorf("modeOf() = %o, want %o", got, want)
	}

	dfi, err := os.Lstat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := modeOf(dfi); got&040000 == 0 {
		t.Errorf("modeOf(dir) = %o, want the directory type bit set", got)
	}
}
