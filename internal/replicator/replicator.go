// Package replicator implements the Replicator core (spec.md §4.1): the
// recursive diff-and-apply driver that makes a destination tree bit-for-bit
// equivalent to a source tree, dispatching on source kind and orchestrating
// the hardlink table, ignore lists, SafeReplace, ContentIdentity and the
// Pruner.
package replicator

import (
	"errors"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/stallmanifold/cpdup/internal/config"
	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/hardlink"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/identity"
	"github.com/stallmanifold/cpdup/internal/prune"
	"github.com/stallmanifold/cpdup/internal/rlog"
	"github.com/stallmanifold/cpdup/internal/saferep"
	"github.com/stallmanifold/cpdup/internal/stats"
)

const copyBlockSize = 64 * 1024

// Replicator holds the state that spans an entire run: the shared
// HardlinkTable and Counters (spec.md §3 "Ownership"), the source/destination
// host handles, and the optional ContentIdentity channels. It is the single
// RunContext the Design Notes (spec.md §9) ask for — constructed once and
// passed explicitly, never global.
type Replicator struct {
	Cfg      config.Config
	SrcHost  host.Host
	DstHost  host.Host
	Hardlinks *hardlink.Table
	Counters *stats.Counters
	Identity identity.Identity
	Pruner   *prune.Pruner
	Safe     saferep.SafeReplace

	// DstRoot is recorded by RunRoot so internal/replicator can compute a
	// path relative to the destination root for incremental-backup
	// hardlinking (spec.md §4.3).
	DstRoot string
}

// New constructs a Replicator bound to cfg and the given source/destination
// hosts. Callers that need content identity or a non-default confirmation
// stream should set the returned value's Identity/Pruner fields before use.
func New(cfg config.Config, srcHost, dstHost host.Host, counters *stats.Counters) *Replicator {
	r := &Replicator{
		Cfg:       cfg,
		SrcHost:   srcHost,
		DstHost:   dstHost,
		Hardlinks: hardlink.New(),
		Counters:  counters,
		Safe:      saferep.New(dstHost),
	}
	r.Pruner = prune.New(dstHost, cfg.AskConfirmation, cfg.NoRemove, counters)
	return r
}

// RunRoot replicates srcPath onto dstPath as the top-level entry point,
// recording DstRoot and deriving the initial device hints from each root's
// own stat (spec.md §4.1's device-boundary rule only applies below the
// root, so the root itself never counts as "crossing").
func (r *Replicator) RunRoot(srcPath, dstPath string) int {
	r.DstRoot = dstPath
	var srcDev, dstDev uint64
	if info, err := r.SrcHost.Lstat(srcPath); err == nil {
		srcDev = info.Dev
	}
	if info, err := r.DstHost.Lstat(dstPath); err == nil {
		dstDev = info.Dev
	}
	return r.Replicate(srcPath, dstPath, srcDev, dstDev)
}

// Replicate makes dstPath reflect srcPath (spec.md §4.1). It returns the
// number of non-fatal failures encountered in the subtree; zero means fully
// synced. Fatal errors are not represented here — they terminate the
// process before Replicate is ever called again (spec.md §7).
func (r *Replicator) Replicate(srcPath, dstPath string, srcDevHint, dstDevHint uint64) int {
	srcInfo, err := r.SrcHost.Lstat(srcPath)
	if err != nil {
		return 0 // vanished source: silently skipped per spec.md §7
	}

	r.Counters.AddSourceItems(1)
	if srcInfo.Kind() == fsstat.KindRegular {
		r.Counters.AddSourceBytes(srcInfo.Size)
	}

	dstInfo, dstErr := r.DstHost.Lstat(dstPath)
	dstValid := dstErr == nil
	var dstFlags uint32
	if dstValid && dstInfo.HasFlags {
		dstFlags = dstInfo.Flags
	}

	// Step 3: hardlink probe.
	if srcInfo.Kind() == fsstat.KindRegular && srcInfo.NLink > 1 {
		if failures, handled := r.hardlinkProbe(dstPath, srcInfo, dstInfo, dstValid); handled {
			return failures
		}
	}

	// Step 4: no-change fast path.
	if dstValid && fsstat.SameMetadata(srcInfo, dstInfo) {
		if done := r.checkNoChange(srcPath, dstPath, srcInfo, dstInfo); done {
			return 0
		}
	}

	// Step 5: file-over-directory conflict.
	failures := 0
	if srcInfo.Kind() != fsstat.KindDirectory && dstValid && dstInfo.Kind() == fsstat.KindDirectory {
		if r.Cfg.Safety {
			rlog.Errorf(dstPath, "refusing to replace directory with non-directory (safety enabled)")
			return failures + 1
		}
		failures += r.Pruner.Remove(dstPath, dstDevHint)
		dstValid = false
		dstFlags = 0
	}

	// Step 6: dispatch on source kind.
	switch srcInfo.Kind() {
	case fsstat.KindDirectory:
		failures += r.replicateDir(srcPath, dstPath, srcInfo, srcDevHint, dstDevHint)
	case fsstat.KindRegular:
		failures += r.replicateFile(srcPath, dstPath, srcInfo, dstValid, dstFlags)
	case fsstat.KindSymlink:
		failures += r.replicateSymlink(srcPath, dstPath, srcInfo, dstValid, dstFlags)
	case fsstat.KindBlockDev, fsstat.KindCharDev:
		failures += r.replicateDevice(srcPath, dstPath, srcInfo, dstValid, dstFlags)
	default:
		// other kinds are ignored; already counted as a source item.
	}
	return failures
}

// checkNoChange implements spec.md §4 step 4's per-kind evidence gathering.
// It returns true when the entry is confirmed unchanged and Replicate should
// return immediately.
func (r *Replicator) checkNoChange(srcPath, dstPath string, srcInfo, dstInfo fsstat.Info) bool {
	switch srcInfo.Kind() {
	case fsstat.KindSymlink, fsstat.KindDirectory:
		if r.Identity.FSCID != nil && srcInfo.HasContentID {
			result, err := r.Identity.FSCID.CheckID(srcInfo.ContentID, dstPath)
			if err == nil && result == identity.Equal {
				return true
			}
		}
		return false
	case fsstat.KindRegular:
		// spec.md §6: force means "do content comparison / copy even when
		// metadata agrees" — it must defeat this fast path outright, not just
		// the identity channels (which default to Equal when none is
		// enabled and would otherwise make Force a no-op).
		if r.Cfg.Force {
			return false
		}
		if !fsstat.SameRegularFile(srcInfo, dstInfo) {
			return false
		}
		result, err := r.Identity.CheckFile(srcPath, dstPath, srcInfo.ContentID, srcInfo.HasContentID)
		if err != nil || result != identity.Equal {
			return false
		}
		r.recordHardlinkDst(srcInfo, dstInfo)
		return true
	default:
		return false
	}
}

// recordHardlinkDst updates an in-flight HardlinkEntry's destination inode
// once a no-op or copy confirms the destination content, so later sightings
// of the same source inode can detect "already correctly linked" (spec.md §3).
//
// It must not call entry.Sighted(): every caller here is handling the same
// sighting hardlinkProbe already accounted for via Table.Add (handled=false
// falls straight through to this path), so counting it again would close
// out the entry after only the first of NLink members has been placed.
// Only hardlinkProbe's own "found" branches represent a genuinely new
// sighting and are the ones that advance Remaining.
func (r *Replicator) recordHardlinkDst(srcInfo, dstInfo fsstat.Info) {
	if srcInfo.NLink <= 1 {
		return
	}
	entry := r.Hardlinks.Lookup(srcInfo.Inode)
	if entry == nil {
		return
	}
	entry.SetDstInode(dstInfo.Inode)
}

// hardlinkProbe implements spec.md §4.1 step 3.
func (r *Replicator) hardlinkProbe(dstPath string, srcInfo, dstInfo fsstat.Info, dstValid bool) (failures int, handled bool) {
	entry := r.Hardlinks.Lookup(srcInfo.Inode)
	if entry == nil {
		r.Hardlinks.Add(srcInfo, dstPath)
		return 0, false
	}

	if dstValid && entry.DstInodeKnown && dstInfo.Inode == entry.DstInode {
		if entry.Sighted() {
			r.Hardlinks.Delete(entry)
		}
		return 0, true
	}

	if dstValid {
		if err := r.DstHost.Remove(dstPath); err != nil && !os.IsNotExist(err) {
			rlog.Errorf(dstPath, "remove before relink: %v", err)
			return 1, true
		}
	}

	var firstDstFlags uint32
	if srcInfo.HasFlags {
		// entry.FirstDstPath's flags mirror srcInfo's (copyFile applies them
		// after the initial copy), so that's what could block another link.
		firstDstFlags = srcInfo.Flags
	}
	if err := r.Safe.Link(entry.FirstDstPath, dstPath, firstDstFlags); err != nil {
		if isEMLINK(err) {
			// The filesystem rejected another link to the group; degrade to
			// an independent copy for this entry per spec.md §4.1 step 3.
			r.Hardlinks.Delete(entry)
			return 0, false
		}
		rlog.Errorf(dstPath, "hardlink: %v", err)
		return 1, true
	}

	if newInfo, err := r.DstHost.Lstat(dstPath); err == nil {
		entry.SetDstInode(newInfo.Inode)
	}
	if entry.Sighted() {
		r.Hardlinks.Delete(entry)
	}
	r.Counters.AddCopiedItems(1)
	return 0, true
}

func isEMLINK(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		err = linkErr.Err
	}
	return errors.Is(err, syscall.EMLINK)
}

func joinPath(dir, name string) string {
	return path.Join(dir, name)
}

func relativeTo(root, p string) string {
	rel := strings.TrimPrefix(p, root)
	return strings.TrimPrefix(rel, "/")
}
