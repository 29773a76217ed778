// Package identity implements ContentIdentity (spec.md §4.9): two
// independent optional channels the replicator consults as extra evidence
// that a file is unchanged despite metadata divergence — a digest check and
// a filesystem-content-id check, each returning a tri-state result.
package identity

// Result is the tri-state outcome spec.md §4.9 requires of both channels.
type Result int

const (
	Unknown Result = iota
	Equal
	Different
)

// Checker is satisfied by DigestCache: given a source path and destination
// path (or dstPath == "" to refresh only) it returns the tri-state result.
type Checker interface {
	Check(srcPath, dstPath string) (Result, error)
	Update(path string) error
	Close() error
}

// Identity combines the digest and fscid channels behind the single surface
// the replicator calls through, so it never has to know which (if either)
// channel is enabled. FSCID takes the source's content id directly (already
// available on the fsstat.Info the replicator is holding) rather than
// re-deriving it from a path, since deriving it is a stat the caller already
// paid for.
type Identity struct {
	Digest Checker     // nil when disabled
	FSCID  *FSCIDCache // nil when disabled
}

// None is an Identity with both channels disabled; the replicator's
// no-change fast path for regular files then relies purely on
// fsstat.SameRegularFile.
var None = Identity{}

// CheckFile runs whichever channels are enabled and folds their results: if
// either channel reports Different, the overall result is Different. If
// neither is enabled, the result is Equal (the caller only reaches here
// after fsstat's metadata fast path already agreed).
func (id Identity) CheckFile(srcPath, dstPath string, srcContentID uint64, hasContentID bool) (Result, error) {
	result := Equal
	if id.Digest != nil {
		r, err := id.Digest.Check(srcPath, dstPath)
		if err != nil {
			return Unknown, err
		}
		if r == Different {
			result = Different
		}
	}
	if id.FSCID != nil && hasContentID {
		r, err := id.FSCID.CheckID(srcContentID, dstPath)
		if err != nil {
			return Unknown, err
		}
		if r == Different {
			result = Different
		}
	}
	return result, nil
}

// UpdateFile refreshes every enabled channel after a successful copy.
func (id Identity) UpdateFile(path string, srcContentID uint64, hasContentID bool) error {
	if id.Digest != nil {
		if err := id.Digest.Update(path); err != nil {
			return err
		}
	}
	if id.FSCID != nil && hasContentID {
		if err := id.FSCID.UpdateID(path, srcContentID); err != nil {
			return err
		}
	}
	return nil
}

// Close releases both channels' backing caches.
func (id Identity) Close() error {
	var err error
	if id.Digest != nil {
		if e := id.Digest.Close(); e != nil {
			err = e
		}
	}
	if id.FSCID != nil {
		if e := id.FSCID.Close(); e != nil {
			err = e
		}
	}
	return err
}
