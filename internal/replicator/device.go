package replicator

import (
	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/rlog"
)

// replicateDevice implements spec.md §4.1's device-node dispatch: if any
// identifying attribute differs, create a new node via temp+rename. Remote
// destinations reject this outright (SPEC_FULL.md §7.1, resolving spec.md
// §9's open question on remote device-node semantics).
func (r *Replicator) replicateDevice(srcPath, dstPath string, srcInfo fsstat.Info, dstValid bool, dstFlags uint32) int {
	needsCreate := !dstValid
	if dstValid {
		dstInfo, err := r.DstHost.Lstat(dstPath)
		if err != nil || dstInfo.Kind() != srcInfo.Kind() || dstInfo.Rdev != srcInfo.Rdev ||
			dstInfo.Mode.Perm() != srcInfo.Mode.Perm() ||
			dstInfo.UID != srcInfo.UID || dstInfo.GID != srcInfo.GID {
			needsCreate = true
		}
	}
	if !needsCreate {
		return 0
	}

	tmp := dstPath + ".tmp"
	_ = r.DstHost.Lchflags(tmp, 0)
	_ = r.DstHost.Remove(tmp)

	mode := host.DeviceMode(srcInfo.Kind(), srcInfo.Mode)
	if err := r.DstHost.Mknod(tmp, mode, srcInfo.Rdev); err != nil {
		rlog.Errorf(tmp, "mknod: %v", err)
		return 1
	}
	_ = r.DstHost.Chown(tmp, int(srcInfo.UID), int(srcInfo.GID))

	if err := r.Safe.Rename(tmp, dstPath, dstFlags); err != nil {
		rlog.Errorf(dstPath, "rename device node: %v", err)
		_ = r.DstHost.Remove(tmp)
		return 1
	}
	r.Counters.AddCopiedItems(1)
	return 0
}
