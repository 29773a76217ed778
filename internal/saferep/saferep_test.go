package saferep

import (
	"errors"
	"testing"
	"time"

	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/host"
)

// fakeHost is a minimal host.Host double that only implements what
// SafeReplace exercises (Rename, Link, Lchflags); anything else panics so a
// test that reaches it fails loudly instead of silently doing nothing.
type fakeHost struct {
	renameCalls int
	renameFail  int // fail this many calls before succeeding
	linkCalls   int
	linkFail    int
	flagsCalls  int
	flags       map[string]uint32
}

func newFakeHost() *fakeHost {
	return &fakeHost{flags: map[string]uint32{}}
}

func (f *fakeHost) Name() string { return "fake" }

func (f *fakeHost) Rename(oldpath, newpath string) error {
	f.renameCalls++
	if f.renameCalls <= f.renameFail {
		return errors.New("rename blocked")
	}
	return nil
}

func (f *fakeHost) Link(oldpath, newpath string) error {
	f.linkCalls++
	if f.linkCalls <= f.linkFail {
		return errors.New("link blocked")
	}
	return nil
}

func (f *fakeHost) Lchflags(path string, flags uint32) error {
	f.flagsCalls++
	f.flags[path] = flags
	return nil
}

func (f *fakeHost) Stat(string) (fsstat.Info, error)           { panic("not used") }
func (f *fakeHost) Lstat(string) (fsstat.Info, error)          { panic("not used") }
func (f *fakeHost) Open(string) (host.File, error)             { panic("not used") }
func (f *fakeHost) Create(string, uint32) (host.File, error)   { panic("not used") }
func (f *fakeHost) Opendir(string) (host.Dir, error)           { panic("not used") }
func (f *fakeHost) Mkdir(string, uint32) error                 { panic("not used") }
func (f *fakeHost) Rmdir(string) error                         { panic("not used") }
func (f *fakeHost) Remove(string) error                        { panic("not used") }
func (f *fakeHost) Symlink(string, string) error               { panic("not used") }
func (f *fakeHost) Readlink(string) (string, error)            { panic("not used") }
func (f *fakeHost) Chmod(string, uint32) error                 { panic("not used") }
func (f *fakeHost) Chown(string, int, int) error               { panic("not used") }
func (f *fakeHost) Lchown(string, int, int) error              { panic("not used") }
func (f *fakeHost) Chflags(string, uint32) error                { panic("not used") }
func (f *fakeHost) Utimes(string, time.Time, time.Time) error  { panic("not used") }
func (f *fakeHost) Umask(int) int                              { panic("not used") }
func (f *fakeHost) Mknod(string, uint32, uint64) error         { panic("not used") }

var _ host.Host = (*fakeHost)(nil)

func TestSafeReplaceRenameSucceedsDirectly(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	if err := s.Rename("a.tmp", "a", 0); err != nil {
		t.Fatalf("Rename() = %v, want nil", err)
	}
	if h.flagsCalls != 0 {
		t.Error("flags should not be touched when rename succeeds on the first try")
	}
}

func TestSafeReplaceRenameRetriesAfterClearingFlags(t *testing.T) {
	h := newFakeHost()
	h.renameFail = 1
	s := New(h)
	if err := s.Rename("a.tmp", "a", 1); err != nil {
		t.Fatalf("Rename() = %v, want nil after flag-clear retry", err)
	}
	if h.flagsCalls == 0 {
		t.Error("expected Lchflags to be called to clear blocking flags")
	}
}

func TestSafeReplaceLinkRetriesAfterClearingFlags(t *testing.T) {
	h := newFakeHost()
	h.linkFail = 1
	s := New(h)
	if err := s.Link("a", "b", 1); err != nil {
		t.Fatalf("Link() = %v, want nil after flag-clear retry", err)
	}
	if h.flagsCalls == 0 {
		t.Error("expected Lchflags to be called to clear blocking flags")
	}
}

func TestSafeReplaceSkipsRetryWhenNoFlags(t *testing.T) {
	h := newFakeHost()
	h.renameFail = 1
	s := New(h)
	if err := s.Rename("a.tmp", "a", 0); err == nil {
		t.Fatal("expected Rename to fail when there are no flags to clear")
	}
	if h.flagsCalls != 0 {
		t.Error("Lchflags should not be called when dstFlags == 0")
	}
}
