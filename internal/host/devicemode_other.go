//go:build !linux && !freebsd && !netbsd && !openbsd && !dragonfly && !darwin

package host

import (
	"os"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// DeviceMode on platforms without mknod(2) just returns the permission bits;
// Mknod itself returns ErrUnsupported there so this value is never used.
func DeviceMode(_ fsstat.Kind, perm os.FileMode) uint32 {
	return uint32(perm.Perm())
}
