//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package host

import (
	"os"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// statToInfo on platforms without a POSIX Stat_t (windows, plan9, js) falls
// back to what os.FileInfo exposes directly. NLink/Inode/Rdev/Dev stay zero,
// which disables hardlink and device-node handling there, matching the
// spec's "Host handle: opaque reference" contract rather than guessing.
func statToInfo(fi os.FileInfo) fsstat.Info {
	return fsstat.Info{
		Mode:  fi.Mode(),
		Size:  fi.Size(),
		MTime: fi.ModTime(),
	}
}

func sizeBlocksFor(os.FileInfo) int64 { return 0 }
