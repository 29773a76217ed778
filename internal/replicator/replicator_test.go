package replicator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stallmanifold/cpdup/internal/config"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/stats"
)

func newTestReplicator(cfg config.Config) (*Replicator, *stats.Counters) {
	var h host.Local
	counters := &stats.Counters{}
	return New(cfg, h, h, counters), counters
}

func mustWriteFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustExist(t *testing.T, path string) os.FileInfo {
	t.Helper()
	fi, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	return fi
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); err == nil {
		t.Fatalf("expected %s to be absent", path)
	}
}

// Scenario 1 (spec.md §8): empty destination mirrors a source tree
// containing a regular file, a hardlink to it, a symlink, and a
// subdirectory.
func TestReplicateEmptyDestinationMirrorsTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dst")

	mustWriteFile(t, filepath.Join(src, "a"), "hello", 0o644)
	if err := os.Link(filepath.Join(src, "a"), filepath.Join(src, "b")); err != nil {
		t.Fatalf("setup hardlink: %v", err)
	}
	if err := os.Symlink("a", filepath.Join(src, "c")); err != nil {
		t.Fatalf("setup symlink: %v", err)
	}
	if err := os.Mkdir(filepath.Join(src, "d"), 0o755); err != nil {
		t.Fatalf("setup dir: %v", err)
	}
	mustWriteFile(t, filepath.Join(src, "d", "e"), "inner", 0o600)

	rep, counters := newTestReplicator(config.Config{Safety: true})
	if failures := rep.RunRoot(src, dst); failures != 0 {
		t.Fatalf("RunRoot() failures = %d, want 0", failures)
	}

	mustExist(t, filepath.Join(dst, "a"))
	mustExist(t, filepath.Join(dst, "b"))
	mustExist(t, filepath.Join(dst, "d", "e"))

	aInfo := mustExist(t, filepath.Join(dst, "a"))
	bInfo := mustExist(t, filepath.Join(dst, "b"))
	if !os.SameFile(aInfo, bInfo) {
		t.Error("expected a and b to share one inode in the destination")
	}

	linkTarget, err := os.Readlink(filepath.Join(dst, "c"))
	if err != nil || linkTarget != "a" {
		t.Errorf("symlink c target = %q, err=%v, want \"a\"", linkTarget, err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a"))
	if err != nil || string(got) != "hello" {
		t.Errorf("dst/a content = %q, err=%v", got, err)
	}

	if rep.Hardlinks.Len() != 0 {
		t.Errorf("Hardlinks.Len() = %d, want 0 at end of run", rep.Hardlinks.Len())
	}
	if counters.CopiedItems == 0 {
		t.Error("expected at least one copied item")
	}
	if counters.RemovedItems != 0 {
		t.Errorf("RemovedItems = %d, want 0", counters.RemovedItems)
	}
}

// Scenario 2: a stale destination-only file is pruned.
func TestReplicateStaleDestinationFileIsPruned(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "a"), "hello", 0o644)
	mustWriteFile(t, filepath.Join(dst, "x"), "stale", 0o644)

	rep, counters := newTestReplicator(config.Config{Safety: true})
	if failures := rep.RunRoot(src, dst); failures != 0 {
		t.Fatalf("RunRoot() failures = %d, want 0", failures)
	}

	mustExist(t, filepath.Join(dst, "a"))
	mustNotExist(t, filepath.Join(dst, "x"))
	if counters.RemovedItems != 1 {
		t.Errorf("RemovedItems = %d, want 1", counters.RemovedItems)
	}
}

// Scenario 3: an ignore file suppresses both mirroring and pruning of
// matching entries.
func TestReplicateIgnoreFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, ".cpignore"), "skip.log\n*.tmp\n", 0o644)
	mustWriteFile(t, filepath.Join(src, "keep.txt"), "keep", 0o644)
	mustWriteFile(t, filepath.Join(src, "skip.log"), "skip", 0o644)
	mustWriteFile(t, filepath.Join(src, "foo.tmp"), "tmp", 0o644)
	mustWriteFile(t, filepath.Join(src, "bar.txt"), "bar", 0o644)

	rep, _ := newTestReplicator(config.Config{Safety: true, IgnoreFileName: ".cpignore"})
	if failures := rep.RunRoot(src, dst); failures != 0 {
		t.Fatalf("RunRoot() failures = %d, want 0", failures)
	}

	mustExist(t, filepath.Join(dst, "keep.txt"))
	mustExist(t, filepath.Join(dst, "bar.txt"))
	mustNotExist(t, filepath.Join(dst, ".cpignore"))
	mustNotExist(t, filepath.Join(dst, "skip.log"))
	mustNotExist(t, filepath.Join(dst, "foo.tmp"))
}

// Scenario 4: safety refuses to replace a destination directory with a
// source regular file.
func TestReplicateSafetyRefusesDirectoryReplace(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "target"), "file", 0o644)
	if err := os.MkdirAll(filepath.Join(dst, "target", "inner"), 0o755); err != nil {
		t.Fatalf("setup dst dir: %v", err)
	}

	rep, _ := newTestReplicator(config.Config{Safety: true})
	failures := rep.RunRoot(src, dst)
	if failures == 0 {
		t.Fatal("expected a failure to be reported when safety refuses the replace")
	}
	fi := mustExist(t, filepath.Join(dst, "target"))
	if !fi.IsDir() {
		t.Error("expected dst/target to remain a directory when safety is on")
	}
}

func TestReplicateSafetyOffReplacesDirectory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "target"), "file", 0o644)
	if err := os.MkdirAll(filepath.Join(dst, "target", "inner"), 0o755); err != nil {
		t.Fatalf("setup dst dir: %v", err)
	}

	rep, _ := newTestReplicator(config.Config{Safety: false})
	if failures := rep.RunRoot(src, dst); failures != 0 {
		t.Fatalf("RunRoot() failures = %d, want 0", failures)
	}
	fi := mustExist(t, filepath.Join(dst, "target"))
	if fi.IsDir() {
		t.Error("expected dst/target to become a regular file when safety is off")
	}
}

// Idempotence law (spec.md §8): a second run against an already-synced
// destination performs zero copies and zero removals.
func TestReplicateIdempotent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "a"), "hello", 0o644)
	if err := os.Mkdir(filepath.Join(src, "d"), 0o755); err != nil {
		t.Fatalf("setup dir: %v", err)
	}
	mustWriteFile(t, filepath.Join(src, "d", "e"), "inner", 0o600)

	rep1, _ := newTestReplicator(config.Config{Safety: true})
	if failures := rep1.RunRoot(src, dst); failures != 0 {
		t.Fatalf("first RunRoot() failures = %d, want 0", failures)
	}

	rep2, counters2 := newTestReplicator(config.Config{Safety: true})
	if failures := rep2.RunRoot(src, dst); failures != 0 {
		t.Fatalf("second RunRoot() failures = %d, want 0", failures)
	}
	if counters2.CopiedItems != 0 {
		t.Errorf("second run CopiedItems = %d, want 0", counters2.CopiedItems)
	}
	if counters2.RemovedItems != 0 {
		t.Errorf("second run RemovedItems = %d, want 0", counters2.RemovedItems)
	}
}

// Scenario 6: a metadata-only mtime change without Force set triggers no
// copy, since size/uid/gid still agree.
func TestReplicateMetadataOnlyChangeNoForce(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "a"), "hello", 0o644)
	rep1, _ := newTestReplicator(config.Config{Safety: true})
	if failures := rep1.RunRoot(src, dst); failures != 0 {
		t.Fatalf("first RunRoot() failures = %d, want 0", failures)
	}

	newTime := mustExist(t, filepath.Join(src, "a")).ModTime().Add(3600 * 1e9)
	if err := os.Chtimes(filepath.Join(src, "a"), newTime, newTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	rep2, counters2 := newTestReplicator(config.Config{Safety: true, Force: false})
	if failures := rep2.RunRoot(src, dst); failures != 0 {
		t.Fatalf("second RunRoot() failures = %d, want 0", failures)
	}
	if counters2.CopiedItems != 0 {
		t.Errorf("CopiedItems = %d, want 0 (metadata-only mtime change, force off)", counters2.CopiedItems)
	}
}

// Scenario 6b: with Force set, the replicator recopies a regular file even
// when every metadata field it would otherwise fast-path on (size, uid, gid)
// still agrees between source and destination (spec.md §6: force
// means "do content comparison / copy even when metadata agrees").
func TestReplicateForceRecopiesUnchangedMetadata(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "a"), "hello", 0o644)
	rep1, _ := newTestReplicator(config.Config{Safety: true})
	if failures := rep1.RunRoot(src, dst); failures != 0 {
		t.Fatalf("first RunRoot() failures = %d, want 0", failures)
	}

	rep2, counters2 := newTestReplicator(config.Config{Safety: true, Force: true})
	if failures := rep2.RunRoot(src, dst); failures != 0 {
		t.Fatalf("second RunRoot() failures = %d, want 0", failures)
	}
	if counters2.CopiedItems != 1 {
		t.Errorf("CopiedItems = %d, want 1 (force set, metadata unchanged)", counters2.CopiedItems)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a"))
	if err != nil {
		t.Fatalf("read dst/a: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("dst/a content = %q, want %q", got, "hello")
	}
}
