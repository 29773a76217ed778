package hardlink

import (
	"testing"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

func TestTableAddLookupDelete(t *testing.T) {
	tbl := New()
	src := fsstat.Info{Inode: 42, NLink: 3}

	if tbl.Lookup(42) != nil {
		t.Fatal("expected no entry before Add")
	}
	e := tbl.Add(src, "/dst/first")
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	if got := tbl.Lookup(42); got != e {
		t.Fatalf("Lookup(42) = %v, want %v", got, e)
	}
	if e.Remaining != 1 {
		t.Fatalf("Remaining = %d, want 1", e.Remaining)
	}

	e.SetDstInode(100)
	if !e.DstInodeKnown || e.DstInode != 100 {
		t.Fatal("SetDstInode did not record the destination inode")
	}

	if e.Sighted() {
		t.Fatal("Sighted() reported done after 2 of 3 expected sightings")
	}
	if !e.Sighted() {
		t.Fatal("Sighted() should report done on the 3rd of 3 expected sightings")
	}

	tbl.Delete(e)
	if tbl.Len() != 0 {
		t.Fatalf("Len() after Delete = %d, want 0", tbl.Len())
	}
	if tbl.Lookup(42) != nil {
		t.Fatal("expected entry to be gone after Delete")
	}
}

func TestTableBucketCollisionChaining(t *testing.T) {
	tbl := New()
	// Two inodes landing in the same bucket must both be independently
	// reachable and independently deletable.
	a := tbl.Add(fsstat.Info{Inode: 1, NLink: 2}, "/dst/a")
	b := tbl.Add(fsstat.Info{Inode: 1 + defaultBuckets, NLink: 2}, "/dst/b")

	if tbl.Lookup(1) != a {
		t.Fatal("lookup for inode 1 returned wrong entry")
	}
	if tbl.Lookup(1+defaultBuckets) != b {
		t.Fatal("lookup for colliding inode returned wrong entry")
	}

	tbl.Delete(a)
	if tbl.Lookup(1+defaultBuckets) != b {
		t.Fatal("deleting one chained entry corrupted the other")
	}
	if tbl.Lookup(1) != nil {
		t.Fatal("deleted entry is still reachable")
	}
}
