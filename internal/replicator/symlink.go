package replicator

import (
	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/rlog"
)

// replicateSymlink implements spec.md §4.4: readlink both sides, and if
// Force is set or the targets differ, write a new symlink via temp+rename.
// Symlink mode and flags are never touched (no portable operation exists).
func (r *Replicator) replicateSymlink(srcPath, dstPath string, srcInfo fsstat.Info, dstValid bool, dstFlags uint32) int {
	srcTarget, err := r.SrcHost.Readlink(srcPath)
	if err != nil {
		rlog.Errorf(srcPath, "readlink: %v", err)
		return 1
	}

	needsWrite := r.Cfg.Force || !dstValid
	if !needsWrite {
		dstTarget, derr := r.DstHost.Readlink(dstPath)
		if derr != nil || dstTarget != srcTarget {
			needsWrite = true
		}
	}
	if !needsWrite {
		return 0
	}

	tmp := dstPath + ".tmp"
	_ = r.DstHost.Lchflags(tmp, 0)
	_ = r.DstHost.Remove(tmp)

	// Set umask to ~src.mode so the created link's recorded permission bits
	// come out matching the source (spec.md §4.4); restored to 0 after.
	r.DstHost.Umask(int(^srcInfo.Mode.Perm()) & 0o777)
	err = r.DstHost.Symlink(srcTarget, tmp)
	r.DstHost.Umask(0)
	if err != nil {
		rlog.Errorf(tmp, "symlink: %v", err)
		return 1
	}
	_ = r.DstHost.Lchown(tmp, int(srcInfo.UID), int(srcInfo.GID))

	if err := r.Safe.Rename(tmp, dstPath, dstFlags); err != nil {
		rlog.Errorf(dstPath, "rename symlink: %v", err)
		_ = r.DstHost.Remove(tmp)
		return 1
	}
	r.Counters.AddCopiedItems(1)
	return 0
}
