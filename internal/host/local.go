package host

import (
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// Local routes every Host operation straight to the OS. The zero value is
// ready to use.
type Local struct{}

var _ Host = Local{}

func (Local) Name() string { return "local" }

func (Local) Stat(path string) (fsstat.Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fsstat.Info{}, err
	}
	return statToInfo(fi), nil
}

func (Local) Lstat(path string) (fsstat.Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return fsstat.Info{}, err
	}
	return statToInfo(fi), nil
}

type localFile struct{ f *os.File }

func (lf localFile) Read(p []byte) (int, error)  { return lf.f.Read(p) }
func (lf localFile) Write(p []byte) (int, error) { return lf.f.Write(p) }
func (lf localFile) Close() error                { return lf.f.Close() }

func (Local) Open(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return localFile{f}, nil
}

func (Local) Create(path string, mode uint32) (File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return nil, err
	}
	return localFile{f}, nil
}

type localDir struct{ f *os.File }

func (ld localDir) Readdirnames(n int) ([]string, error) { return ld.f.Readdirnames(n) }
func (ld localDir) Close() error                         { return ld.f.Close() }

func (Local) Opendir(path string) (Dir, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return localDir{f}, nil
}

func (Local) Mkdir(path string, mode uint32) error { return os.Mkdir(path, os.FileMode(mode)) }
func (Local) Rmdir(path string) error              { return os.Remove(path) }
func (Local) Remove(path string) error             { return os.Remove(path) }
func (Local) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (Local) Link(oldpath, newpath string) error       { return os.Link(oldpath, newpath) }
func (Local) Symlink(target, linkpath string) error    { return os.Symlink(target, linkpath) }
func (Local) Readlink(path string) (string, error)     { return os.Readlink(path) }
func (Local) Chmod(path string, mode uint32) error     { return os.Chmod(path, os.FileMode(mode)) }
func (Local) Chown(path string, uid, gid int) error    { return os.Chown(path, uid, gid) }
func (Local) Lchown(path string, uid, gid int) error   { return os.Lchown(path, uid, gid) }
func (Local) Utimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}

func (Local) Umask(mask int) int { return unix.Umask(mask) }

var _ io.Closer = localFile{}
