package flist

import "testing"

func TestFileListAssignsDenseIndices(t *testing.T) {
	fl := New()
	root := fl.NewSegment(nil, -1, []*FileInfo{
		{Name: "."},
		{Name: "a"},
		{Name: "b"},
	})
	if root.FirstIndex() != 0 {
		t.Fatalf("FirstIndex() = %d, want 0", root.FirstIndex())
	}

	dir, _ := root.Get(1)
	fl.EnqueueStub(1, dir)
	if !fl.IsExpandable() {
		t.Fatal("expected a pending stub")
	}

	idx, info, ok := fl.NextStub()
	if !ok || idx != 1 || info != dir {
		t.Fatalf("NextStub() = %d, %v, %v", idx, info, ok)
	}
	if fl.IsExpandable() {
		t.Fatal("stub queue should be empty after NextStub")
	}

	children := fl.NewSegment(root, 1, []*FileInfo{
		{Name: "a/x"},
		{Name: "a/y"},
	})
	if children.FirstIndex() != 3 {
		t.Fatalf("FirstIndex() = %d, want 3 (after root's 3 entries)", children.FirstIndex())
	}

	seg, ok := fl.GetSegmentWith(4)
	if !ok || seg != children {
		t.Fatalf("GetSegmentWith(4) = %v, %v, want children segment", seg, ok)
	}
}

func TestSegmentRemoveAndIsFinished(t *testing.T) {
	fl := New()
	seg := fl.NewSegment(nil, -1, []*FileInfo{
		{Name: "a"},
		{Name: "b"},
	})
	if seg.IsFinished() {
		t.Fatal("segment with live entries should not be finished")
	}
	seg.Remove(0)
	if seg.IsFinished() {
		t.Fatal("one remaining live entry: should not be finished")
	}
	seg.Remove(1)
	if !seg.IsFinished() {
		t.Fatal("all entries removed: should be finished")
	}
}

func TestSegmentRemoveSkipsOwnDirIndex(t *testing.T) {
	fl := New()
	root := fl.NewSegment(nil, -1, []*FileInfo{{Name: "."}, {Name: "dir"}})
	dirIdx := int32(1)
	children := fl.NewSegment(root, dirIdx, []*FileInfo{{Name: "dir/x"}})

	// Removing the segment's own directory index must be a no-op: that
	// index belongs to the parent segment's accounting, not this one's.
	children.Remove(dirIdx)
	if children.IsFinished() {
		t.Fatal("removing the dir index should not finish an unrelated child segment")
	}
	children.Remove(children.FirstIndex())
	if !children.IsFinished() {
		t.Fatal("removing the real child entry should finish the segment")
	}
}

func TestFileListDeleteFirstSegmentRequiresFinished(t *testing.T) {
	fl := New()
	fl.NewSegment(nil, -1, []*FileInfo{{Name: "a"}})

	if _, err := fl.DeleteFirstSegment(); err == nil {
		t.Fatal("expected error deleting an unfinished segment")
	}

	seg, _ := fl.FirstSegment()
	seg.Remove(seg.FirstIndex())

	removed, err := fl.DeleteFirstSegment()
	if err != nil {
		t.Fatalf("DeleteFirstSegment: %v", err)
	}
	if removed != seg {
		t.Fatal("DeleteFirstSegment returned the wrong segment")
	}
	if fl.NumSegments() != 0 {
		t.Fatalf("NumSegments() = %d, want 0", fl.NumSegments())
	}
}

func TestFileListInFlight(t *testing.T) {
	fl := New()
	fl.NewSegment(nil, -1, []*FileInfo{{Name: "a"}, {Name: "b"}})
	fl.NewSegment(nil, -1, []*FileInfo{{Name: "c"}})
	if got := fl.InFlight(); got != 3 {
		t.Fatalf("InFlight() = %d, want 3", got)
	}

	seg, _ := fl.FirstSegment()
	seg.Remove(seg.FirstIndex())
	if got := fl.InFlight(); got != 2 {
		t.Fatalf("InFlight() after one removal = %d, want 2", got)
	}
}
