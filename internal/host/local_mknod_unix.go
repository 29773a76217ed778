//go:build linux || freebsd || netbsd || openbsd || dragonfly || darwin

package host

import "golang.org/x/sys/unix"

func (Local) Mknod(path string, mode uint32, dev uint64) error {
	return unix.Mknod(path, mode, int(dev))
}
