package replicator

import (
	"bufio"
	"io"
	"strings"

	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/ignore"
	"github.com/stallmanifold/cpdup/internal/rlog"
)

// replicateDir implements spec.md §4.2. srcDevHint/dstDevHint are the device
// ids observed at the parent, enforcing the device-boundary rule (spec.md
// §4.1): a source directory on a different device than its parent is stat'd
// but not descended into, and likewise the destination is never pruned
// across a mount point.
func (r *Replicator) replicateDir(srcPath, dstPath string, srcInfo fsstat.Info, srcDevHint, dstDevHint uint64) int {
	if srcDevHint != 0 && srcInfo.Dev != 0 && srcInfo.Dev != srcDevHint {
		rlog.Debugf(srcPath, "source device boundary crossed, not descending")
		return 0
	}

	failures := 0
	dstInfo, dstErr := r.DstHost.Lstat(dstPath)
	dstIsDir := dstErr == nil && dstInfo.Kind() == fsstat.KindDirectory

	if dstErr == nil && !dstIsDir {
		failures += r.Pruner.Remove(dstPath, dstDevHint)
		dstErr = errNotExistSentinel
	}

	if dstErr != nil {
		if err := r.DstHost.Mkdir(dstPath, uint32(srcInfo.Mode.Perm())|0o700); err != nil {
			rlog.Errorf(dstPath, "mkdir: %v", err)
			return failures + 1
		}
		dstInfo, _ = r.DstHost.Lstat(dstPath)
	} else if dstInfo.Mode.Perm()&0o700 != 0o700 {
		// Temporarily add owner-traversal bits so recursion can proceed;
		// the final mode is restored once the directory is fully processed.
		_ = r.DstHost.Chmod(dstPath, uint32(dstInfo.Mode.Perm())|0o700)
	}

	list := ignore.New()
	r.loadIgnoreList(list, srcPath)

	srcChildDev := srcInfo.Dev
	dstChildDev := dstInfo.Dev

	srcNames, err := readdirAll(r.SrcHost, srcPath)
	if err != nil {
		rlog.Errorf(srcPath, "opendir: %v", err)
		failures++
	}

	for _, name := range srcNames {
		if name == "." || name == ".." {
			continue
		}
		tag, found := list.Lookup(name, ignore.TagSeenSource)
		if found && tag == ignore.TagIgnoreFile {
			continue
		}
		failures += r.Replicate(joinPath(srcPath, name), joinPath(dstPath, name), srcChildDev, dstChildDev)
	}

	if dstDevHint == 0 || dstChildDev == 0 || dstDevHint == dstChildDev {
		dstNames, err := readdirAll(r.DstHost, dstPath)
		if err != nil {
			rlog.Errorf(dstPath, "opendir for prune: %v", err)
			failures++
		}
		for _, name := range dstNames {
			if name == "." || name == ".." {
				continue
			}
			if _, found := list.Lookup(name, ignore.TagSeenDest); found {
				continue
			}
			failures += r.Pruner.Remove(joinPath(dstPath, name), dstChildDev)
		}
	}

	_ = r.DstHost.Chown(dstPath, int(srcInfo.UID), int(srcInfo.GID))
	_ = r.DstHost.Chmod(dstPath, uint32(srcInfo.Mode.Perm()))
	if srcInfo.HasFlags {
		_ = r.DstHost.Chflags(dstPath, srcInfo.Flags)
	}
	return failures
}

// errNotExistSentinel marks "treat as if Lstat failed" after pruning a
// non-directory destination, without allocating a new error per call.
var errNotExistSentinel = &notExistError{}

type notExistError struct{}

func (*notExistError) Error() string { return "destination removed for directory replacement" }

// loadIgnoreList implements spec.md §4.2's ignore-file loading: the file's
// own basename is excluded, its non-empty non-comment lines become patterns,
// and the digest/fscid cache filenames are excluded when those channels are
// active.
func (r *Replicator) loadIgnoreList(list *ignore.List, srcDir string) {
	if r.Cfg.IgnoreFileName != "" {
		list.Add(r.Cfg.IgnoreFileName, ignore.TagIgnoreFile)

		if f, err := r.SrcHost.Open(joinPath(srcDir, r.Cfg.IgnoreFileName)); err == nil {
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				list.Add(line, ignore.TagIgnoreFile)
			}
			_ = f.Close()
		}
	}
	if r.Cfg.EnableDigest && r.Cfg.DigestCacheName != "" {
		list.Add(r.Cfg.DigestCacheName, ignore.TagIgnoreFile)
	}
	if r.Cfg.EnableFSCID && r.Cfg.FSCIDCacheName != "" {
		list.Add(r.Cfg.FSCIDCacheName, ignore.TagIgnoreFile)
	}
}

// readdirAll drains a directory handle's entries through the host's
// batching Readdirnames, used for both the source listing and the
// destination listing of the replicator's directory walk.
func readdirAll(h host.Host, path string) ([]string, error) {
	dir, err := h.Opendir(path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	var all []string
	for {
		names, err := dir.Readdirnames(256)
		all = append(all, names...)
		if err == io.EOF || len(names) == 0 {
			return all, nil
		}
		if err != nil {
			return all, err
		}
	}
}
