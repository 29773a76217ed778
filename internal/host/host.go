// Package host provides the uniform I/O shim the replicator dispatches every
// filesystem operation through (HostHandle in spec.md §6). A nil-free Local
// value routes to the OS; a Remote value routes to a peer process over a
// stream-oriented channel. The replicator core never branches on which one
// it was handed.
package host

import (
	"io"
	"time"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// Dir is an open directory handle positioned for sequential Readdir calls.
type Dir interface {
	// Readdirnames returns up to n entry names (or all remaining when n<=0),
	// mirroring os.File.Readdirnames's contract including io.EOF at the end.
	Readdirnames(n int) ([]string, error)
	Close() error
}

// File is an open regular-file handle.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// Host is the abstract filesystem endpoint every replicator operation is
// parameterized over. Every method mirrors a POSIX call per spec.md §6.
// Local returns the standard library's error as is (*os.PathError /
// *os.LinkError); Remote returns errors rebuilt from the peer's error text,
// so they carry the message but not the underlying error type.
type Host interface {
	// Name identifies the endpoint for logging ("local" or a remote tag).
	Name() string

	Stat(path string) (fsstat.Info, error)
	Lstat(path string) (fsstat.Info, error)

	Open(path string) (File, error)
	Create(path string, mode uint32) (File, error)

	Opendir(path string) (Dir, error)

	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Remove(path string) error
	Rename(oldpath, newpath string) error

	Link(oldpath, newpath string) error
	Symlink(target, linkpath string) error
	Readlink(path string) (string, error)

	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid int) error
	Lchown(path string, uid, gid int) error
	Chflags(path string, flags uint32) error
	Lchflags(path string, flags uint32) error
	Utimes(path string, atime, mtime time.Time) error
	Umask(mask int) int

	// Mknod creates a device node. Remote hosts that cannot support this
	// return ErrUnsupported per SPEC_FULL.md §7.1 (an explicit resolution of
	// spec.md §9's open question on remote device-node semantics).
	Mknod(path string, mode uint32, dev uint64) error
}

// ErrUnsupported is returned by operations a given Host implementation
// cannot perform (e.g. Mknod over a remote channel, or chflags on a
// platform without BSD file flags).
var ErrUnsupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "operation unsupported by this host" }
