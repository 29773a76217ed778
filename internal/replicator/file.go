package replicator

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/rlog"
)

// replicateFile implements spec.md §4.3: either a prior-snapshot hardlink
// (incremental-backup mode) or a write-temp-then-rename copy.
func (r *Replicator) replicateFile(srcPath, dstPath string, srcInfo fsstat.Info, dstValid bool, dstFlags uint32) int {
	if r.Cfg.HardlinkBasePath != "" {
		if r.tryIncrementalLink(srcPath, dstPath, srcInfo) {
			return 0
		}
	}
	return r.copyFile(srcPath, dstPath, srcInfo, dstFlags)
}

// tryIncrementalLink implements spec.md §4.3's incremental-snapshot
// hardlink: if a same-sized, same-owned, same-mtime file exists at the
// mirrored path under HardlinkBasePath (and, when Force is set, its bytes
// match too), hard-link it in instead of copying. Any failure falls through
// to a regular copy.
func (r *Replicator) tryIncrementalLink(srcPath, dstPath string, srcInfo fsstat.Info) bool {
	rel := relativeTo(r.DstRoot, dstPath)
	hlPath := path.Join(r.Cfg.HardlinkBasePath, rel)

	hlInfo, err := r.DstHost.Lstat(hlPath)
	if err != nil {
		return false
	}
	if hlInfo.Size != srcInfo.Size || hlInfo.UID != srcInfo.UID ||
		hlInfo.GID != srcInfo.GID || !hlInfo.MTime.Equal(srcInfo.MTime) {
		return false
	}
	if r.Cfg.Force {
		same, err := filesByteEqual(r.SrcHost, srcPath, r.DstHost, hlPath)
		if err != nil || !same {
			return false
		}
	}
	// Safe.Link's flags argument guards hlPath, the file gaining another
	// name, not dstPath.
	var hlFlags uint32
	if hlInfo.HasFlags {
		hlFlags = hlInfo.Flags
	}
	if err := r.Safe.Link(hlPath, dstPath, hlFlags); err != nil {
		return false
	}
	rlog.Debugf(dstPath, "linked from snapshot %s", hlPath)
	r.Counters.AddCopiedItems(1)
	r.recordHardlinkDst(srcInfo, mustLstat(r.DstHost, dstPath))
	return true
}

func mustLstat(h host.Host, p string) fsstat.Info {
	info, _ := h.Lstat(p)
	return info
}

func filesByteEqual(srcHost host.Host, srcPath string, dstHost host.Host, dstPath string) (bool, error) {
	sf, err := srcHost.Open(srcPath)
	if err != nil {
		return false, err
	}
	defer sf.Close()
	df, err := dstHost.Open(dstPath)
	if err != nil {
		return false, err
	}
	defer df.Close()

	sbuf := make([]byte, copyBlockSize)
	dbuf := make([]byte, copyBlockSize)
	for {
		sn, serr := io.ReadFull(sf, sbuf)
		dn, derr := io.ReadFull(df, dbuf)
		if !bytes.Equal(sbuf[:sn], dbuf[:dn]) {
			return false, nil
		}
		sEOF := serr == io.EOF || serr == io.ErrUnexpectedEOF
		dEOF := derr == io.EOF || derr == io.ErrUnexpectedEOF
		if sEOF != dEOF {
			return false, nil
		}
		if sEOF {
			return true, nil
		}
		if serr != nil {
			return false, serr
		}
		if derr != nil {
			return false, derr
		}
	}
}

// copyFile streams srcPath to a temp file at dstPath+".tmp" in 64KiB blocks
// and atomically renames it into place (spec.md §4.3).
func (r *Replicator) copyFile(srcPath, dstPath string, srcInfo fsstat.Info, dstFlags uint32) int {
	tmp := dstPath + ".tmp"
	if _, err := r.DstHost.Lstat(tmp); err == nil {
		_ = r.DstHost.Lchflags(tmp, 0)
		_ = r.DstHost.Remove(tmp)
	}

	srcFile, err := r.SrcHost.Open(srcPath)
	if err != nil {
		rlog.Errorf(srcPath, "open: %v", err)
		return 1
	}
	defer srcFile.Close()

	dstFile, err := r.DstHost.Create(tmp, uint32(srcInfo.Mode.Perm()))
	if err != nil {
		rlog.Errorf(tmp, "create: %v", err)
		return 1
	}

	readTotal, writeTotal, copyErr := streamCopy(srcFile, dstFile)
	_ = dstFile.Close()
	r.Counters.AddReadBytes(readTotal)
	r.Counters.AddWrittenBytes(writeTotal)

	if copyErr != nil {
		rlog.Errorf(srcPath, "copy: %v", copyErr)
		_ = r.DstHost.Remove(tmp)
		return 1
	}

	_ = r.DstHost.Utimes(tmp, srcInfo.MTime, srcInfo.MTime)
	_ = r.DstHost.Chown(tmp, int(srcInfo.UID), int(srcInfo.GID))
	_ = r.DstHost.Chmod(tmp, uint32(srcInfo.Mode.Perm()))

	if err := r.Safe.Rename(tmp, dstPath, dstFlags); err != nil {
		rlog.Errorf(dstPath, "rename: %v", err)
		_ = r.DstHost.Remove(tmp)
		return 1
	}
	// Flags are restored only after the rename: an immutable flag set
	// beforehand would block the rename itself (spec.md §4.3).
	if srcInfo.HasFlags {
		_ = r.DstHost.Chflags(dstPath, srcInfo.Flags)
	}

	r.Counters.AddCopiedItems(1)
	if err := r.Identity.UpdateFile(dstPath, srcInfo.ContentID, srcInfo.HasContentID); err != nil {
		rlog.Debugf(dstPath, "identity update: %v", err)
	}
	r.recordHardlinkDst(srcInfo, mustLstat(r.DstHost, dstPath))
	return 0
}

// streamCopy mirrors the spec's "any short write or read error" rule: io.EOF
// is end-of-file, and any read returning fewer bytes than requested
// without EOF is still accumulated (io.Reader is allowed short reads); the
// only failure modes are a non-nil, non-EOF error or a short write.
func streamCopy(src io.Reader, dst io.Writer) (readTotal, writeTotal int64, err error) {
	buf := make([]byte, copyBlockSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			readTotal += int64(n)
			w, werr := dst.Write(buf[:n])
			writeTotal += int64(w)
			if werr != nil {
				return readTotal, writeTotal, werr
			}
			if w != n {
				return readTotal, writeTotal, fmt.Errorf("short write: wrote %d of %d bytes", w, n)
			}
		}
		if rerr == io.EOF {
			return readTotal, writeTotal, nil
		}
		if rerr != nil {
			return readTotal, writeTotal, rerr
		}
	}
}
