//go:build freebsd || netbsd || openbsd || dragonfly || darwin

package host

import "golang.org/x/sys/unix"

func (Local) Chflags(path string, flags uint32) error {
	return unix.Chflags(path, int(flags))
}

func (Local) Lchflags(path string, flags uint32) error {
	return unix.Lchflags(path, int(flags))
}
