//go:build darwin

package host

import (
	"os"
	"syscall"
	"time"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

func statToInfo(fi os.FileInfo) fsstat.Info {
	info := fsstat.Info{
		Mode:  fi.Mode(),
		Size:  fi.Size(),
		MTime: fi.ModTime(),
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return info
	}
	info.UID = st.Uid
	info.GID = st.Gid
	info.NLink = uint64(st.Nlink)
	info.Inode = st.Ino
	info.Rdev = uint64(st.Rdev)
	info.Dev = uint64(st.Dev)
	info.MTime = time.Unix(st.Mtimespec.Sec, st.Mtimespec.Nsec)
	info.HasFlags = true
	info.Flags = uint32(st.Flags)
	return info
}

func sizeBlocksFor(fi os.FileInfo) int64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return fsstat.SizeBlocks(st.Blocks)
}
