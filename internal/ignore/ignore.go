// Package ignore implements IgnoreList, the per-directory exclusion set
// described in spec.md §3/§4.7: a bag of literal and wildcard patterns
// stored in a two-level index (a dedicated wildcard bucket plus hash buckets
// of literals), each entry tagged with the origin that inserted it.
package ignore

import "hash/fnv"

// Tag distinguishes why a pattern is in the list: spec.md's directory-prune
// pass relies on this to tell "purely destination" entries from entries that
// also appeared in the source listing, all in one traversal.
type Tag int

const (
	// TagIgnoreFile marks a pattern authored in the directory's ignore file.
	TagIgnoreFile Tag = 1
	// TagSeenSource marks a name seen while enumerating the source directory.
	TagSeenSource Tag = 2
	// TagSeenDest marks a name seen while enumerating the destination
	// directory; spec.md §4.2: a final tag of 3 means "purely destination",
	// which the Pruner acts on.
	TagSeenDest Tag = 3
)

type entry struct {
	pattern string
	tag     Tag
	next    *entry
}

const literalBuckets = 256

// List is a single directory frame's IgnoreList: created empty on directory
// entry and discarded on exit (spec.md §3 "Ownership").
type List struct {
	wildcards *entry
	literals  [literalBuckets]*entry
}

// New returns an empty IgnoreList for one directory frame.
func New() *List {
	return &List{}
}

func literalBucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % literalBuckets)
}

// Add inserts pattern under tag, classifying it as wildcard or literal per
// IsWildcard. If an identical pattern is already present its tag is left
// alone (the first origin wins, matching "insert with the caller's tag" only
// when the pattern is new).
func (l *List) Add(pattern string, tag Tag) {
	if IsWildcard(pattern) {
		for e := l.wildcards; e != nil; e = e.next {
			if e.pattern == pattern {
				return
			}
		}
		l.wildcards = &entry{pattern: pattern, tag: tag, next: l.wildcards}
		return
	}
	b := literalBucket(pattern)
	for e := l.literals[b]; e != nil; e = e.next {
		if e.pattern == pattern {
			return
		}
	}
	l.literals[b] = &entry{pattern: pattern, tag: tag, next: l.literals[b]}
}

// Lookup implements spec.md §4.7's lookup semantics: exact-match patterns
// win first; otherwise any wildcard pattern matching name counts as a hit.
// It returns (tag, true) on a hit. If no entry matches and insertTag is
// non-zero, a new literal entry is inserted under insertTag and (insertTag,
// false) is returned — this is how the directory-traversal two-pass prune
// scheme (spec.md §4.2) builds up "seen in source"/"seen in destination"
// membership in a single walk.
func (l *List) Lookup(name string, insertTag Tag) (Tag, bool) {
	b := literalBucket(name)
	for e := l.literals[b]; e != nil; e = e.next {
		if e.pattern == name {
			return e.tag, true
		}
	}
	for e := l.wildcards; e != nil; e = e.next {
		if WildMatch(e.pattern, name) {
			return e.tag, true
		}
	}
	if insertTag != 0 {
		l.Add(name, insertTag)
	}
	return insertTag, false
}

// Matches reports whether name is excluded by any authored ignore-file
// pattern (literal or wildcard), without touching the list's contents. The
// directory walk itself does not call it: it filters on the tag Lookup
// returns.
func (l *List) Matches(name string) bool {
	b := literalBucket(name)
	for e := l.literals[b]; e != nil; e = e.next {
		if e.pattern == name && e.tag == TagIgnoreFile {
			return true
		}
	}
	for e := l.wildcards; e != nil; e = e.next {
		if e.tag == TagIgnoreFile && WildMatch(e.pattern, name) {
			return true
		}
	}
	return false
}
