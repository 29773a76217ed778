// Package saferep implements SafeReplace (spec.md §4.5): the write-temp,
// atomic-rename pattern used for every destination mutation on a live
// filesystem, with a fallback that clears immutable/append-only flags when
// they would otherwise block the rename or link.
package saferep

import "github.com/stallmanifold/cpdup/internal/host"

// SafeReplace bundles the flag-aware Rename/Link helpers with the Host they
// operate against.
type SafeReplace struct {
	H host.Host
}

// New returns a SafeReplace bound to h.
func New(h host.Host) SafeReplace { return SafeReplace{H: h} }

// Rename attempts to rename src over dst. On failure it clears dst's flags
// and retries once; if the retry also fails it restores dst's flags before
// returning the retry's error, so a genuine non-flag failure doesn't leave
// the destination unexpectedly mutable.
func (s SafeReplace) Rename(src, dst string, dstFlags uint32) error {
	firstErr := s.H.Rename(src, dst)
	if firstErr == nil {
		return nil
	}
	if !dstFlagsMayBlock(dstFlags) {
		return firstErr
	}
	if err := s.H.Lchflags(dst, 0); err != nil && err != host.ErrUnsupported {
		return firstErr
	}
	retryErr := s.H.Rename(src, dst)
	if retryErr == nil {
		return nil
	}
	if dstFlags != 0 {
		_ = s.H.Lchflags(dst, dstFlags) // best effort, per spec.md §7
	}
	return retryErr
}

// Link attempts to hard link src to dst. On failure it clears src's flags,
// retries, then restores src's flags regardless of outcome; the returned
// error is the retried link's, unaffected by the flag restore, mirroring
// spec.md §4.5's "preserving errno" requirement.
func (s SafeReplace) Link(src, dst string, srcFlags uint32) error {
	if err := s.H.Link(src, dst); err == nil {
		return nil
	} else if !dstFlagsMayBlock(srcFlags) {
		return err
	}
	if err := s.H.Lchflags(src, 0); err != nil && err != host.ErrUnsupported {
		return err
	}
	err := s.H.Link(src, dst)
	if srcFlags != 0 {
		_ = s.H.Lchflags(src, srcFlags)
	}
	return err
}

// dstFlagsMayBlock reports whether flags includes bits that plausibly block
// rename/link (immutable/append-only). On platforms without chflags, flags
// is always 0, so the retry path is simply skipped.
func dstFlagsMayBlock(flags uint32) bool {
	return flags != 0
}
