//go:build linux || freebsd || netbsd || openbsd || dragonfly || darwin

package host

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// DeviceMode combines a device kind with permission bits into the mode
// argument mknod(2) expects (type bits | permission bits).
func DeviceMode(kind fsstat.Kind, perm os.FileMode) uint32 {
	m := uint32(perm.Perm())
	switch kind {
	case fsstat.KindBlockDev:
		m |= unix.S_IFBLK
	case fsstat.KindCharDev:
		m |= unix.S_IFCHR
	}
	return m
}
