// Package hardlink implements HardlinkTable: the data structure that lets
// the replicator rebuild shared-inode topology at the destination instead of
// writing every hardlinked copy in full (spec.md §4.6).
package hardlink

import "github.com/stallmanifold/cpdup/internal/fsstat"

// Entry mirrors spec.md §3's HardlinkEntry. DstInode is populated once the
// first copy lands, so later sightings can tell "already correctly linked"
// apart from "linked to the wrong place" by comparing destination stats.
type Entry struct {
	SrcInode      uint64
	DstInode      uint64
	DstInodeKnown bool
	FirstDstPath  string
	Remaining     uint64 // sightings so far; the entry is done once this reaches nlink
	nlink         uint64 // the source's total link count, for the removal check
	prev, next    *Entry // intrusive doubly linked list for O(1) removal
}

// Table is a hash table keyed by source inode modulo a fixed power-of-two
// bucket count, with entries doubly linked per bucket for O(1) removal, per
// spec.md §4.6. It is shared across the entire traversal: hardlinks can span
// directories, so ownership lives with the Replicator, not a directory frame
// (spec.md §3 "Ownership").
type Table struct {
	buckets []*Entry
	mask    uint64
	size    int
}

const defaultBuckets = 1024 // power of two

// New returns an empty table sized to defaultBuckets.
func New() *Table {
	return &Table{
		buckets: make([]*Entry, defaultBuckets),
		mask:    defaultBuckets - 1,
	}
}

func (t *Table) bucket(inode uint64) int {
	return int(inode & t.mask)
}

// Lookup returns the entry for a source inode, or nil if not present.
func (t *Table) Lookup(srcInode uint64) *Entry {
	for e := t.buckets[t.bucket(srcInode)]; e != nil; e = e.next {
		if e.SrcInode == srcInode {
			return e
		}
	}
	return nil
}

// Add inserts a new entry for a first-sighted source inode, with
// Remaining starting at 1 (spec.md §3's invariant).
func (t *Table) Add(src fsstat.Info, dstPath string) *Entry {
	e := &Entry{
		SrcInode:     src.Inode,
		FirstDstPath: dstPath,
		Remaining:    1,
		nlink:        src.NLink,
	}
	b := t.bucket(src.Inode)
	e.next = t.buckets[b]
	if e.next != nil {
		e.next.prev = e
	}
	t.buckets[b] = e
	t.size++
	return e
}

// Sighted records another occurrence of the same source inode, returning
// true if the entry has now seen its expected count and should be deleted by
// the caller once processing (a possible link) completes.
func (e *Entry) Sighted() (done bool) {
	e.Remaining++
	return e.Remaining >= e.nlink
}

// SetDstInode records the destination inode once the first copy succeeds.
func (e *Entry) SetDstInode(inode uint64) {
	e.DstInode = inode
	e.DstInodeKnown = true
}

// Delete removes an entry from the table, per spec.md §3: "the entry is
// removed when the count reaches the source's nlink", and also when linking
// fails and the caller falls back to a normal copy.
func (t *Table) Delete(e *Entry) {
	b := t.bucket(e.SrcInode)
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		t.buckets[b] = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev, e.next = nil, nil
	t.size--
}

// Len reports the number of live entries; spec.md §8 requires this to be
// zero once a full run completes successfully.
func (t *Table) Len() int { return t.size }
