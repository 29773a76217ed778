// Package prune implements the Pruner (spec.md §4.8): recursive destination
// removal, invoked when a destination entry has no corresponding source
// entry, or when a file must overwrite a directory.
package prune

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/stallmanifold/cpdup/internal/fsstat"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/rlog"
	"github.com/stallmanifold/cpdup/internal/stats"
)

// Pruner removes destination subtrees, bounded by the device-id observed at
// the call site so it never crosses a mount point (spec.md §4.8).
type Pruner struct {
	H               host.Host
	AskConfirmation bool
	NoRemove        bool
	Counters        *stats.Counters

	// Stdin/Stderr back the interactive confirmation prompt; defaulted to
	// os.Stdin/os.Stderr by New, overridable for tests.
	Stdin  io.Reader
	Stderr io.Writer
}

// New returns a Pruner wired to the real terminal.
func New(h host.Host, askConfirmation, noRemove bool, counters *stats.Counters) *Pruner {
	return &Pruner{
		H:               h,
		AskConfirmation: askConfirmation,
		NoRemove:        noRemove,
		Counters:        counters,
		Stdin:           os.Stdin,
		Stderr:          os.Stderr,
	}
}

// Remove recursively removes path, which is known to be at device dstDev.
// It returns the number of non-fatal failures encountered, matching the
// Replicator's own failure-counting convention (spec.md §4.1).
func (p *Pruner) Remove(path string, dstDev uint64) int {
	info, err := p.H.Lstat(path)
	if err != nil {
		return 0 // already gone
	}

	if info.Kind() == fsstat.KindDirectory {
		if info.Dev != 0 && dstDev != 0 && info.Dev != dstDev {
			rlog.Debugf(path, "not crossing destination mount point, skipping prune")
			return 0
		}
		return p.removeDir(path, info)
	}
	return p.removeFile(path)
}

func (p *Pruner) removeDir(path string, info fsstat.Info) int {
	failures := 0
	dir, err := p.H.Opendir(path)
	if err != nil {
		rlog.Errorf(path, "opendir for prune: %v", err)
		return failures + 1
	}
	names, err := readAllNames(dir)
	_ = dir.Close()
	if err != nil {
		rlog.Errorf(path, "readdir for prune: %v", err)
		return failures + 1
	}
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		failures += p.Remove(joinPath(path, name), info.Dev)
	}

	if p.NoRemove {
		rlog.Logf(path, "would remove directory (no-remove set)")
		return failures
	}
	if !p.confirm(path) {
		return failures
	}
	if err := p.H.Rmdir(path); err != nil {
		rlog.Errorf(path, "rmdir: %v", err)
		return failures + 1
	}
	p.Counters.AddRemovedItems(1)
	return failures
}

func (p *Pruner) removeFile(path string) int {
	if p.NoRemove {
		rlog.Logf(path, "would remove (no-remove set)")
		return 0
	}
	if !p.confirm(path) {
		return 0
	}
	if err := p.H.Remove(path); err != nil {
		rlog.Errorf(path, "remove: %v", err)
		return 1
	}
	p.Counters.AddRemovedItems(1)
	return 0
}

// confirm implements spec.md §4.8's interactive prompt: "remove <path>
// (Yes/No) [No]?" on standard error, accepting only y/Y. When stdin isn't a
// terminal it still reads a line with bufio (so scripted tests can drive it
// without a real tty), per SPEC_FULL.md §7.6.
func (p *Pruner) confirm(path string) bool {
	if !p.AskConfirmation {
		return true
	}
	fmt.Fprintf(p.Stderr, "remove %s (Yes/No) [No]? ", path)

	if f, ok := p.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return readSingleByteAnswer(f)
	}
	line, _ := bufio.NewReader(p.Stdin).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

// readSingleByteAnswer puts the real terminal in raw mode to read exactly
// one character, matching spec.md §4.8's "read a single character from
// standard input" (a buffered read would otherwise wait for Enter).
func readSingleByteAnswer(f *os.File) bool {
	fd := int(f.Fd())
	prev, err := term.MakeRaw(fd)
	if err != nil {
		line, _ := bufio.NewReader(f).ReadString('\n')
		answer := strings.TrimSpace(line)
		return answer == "y" || answer == "Y"
	}
	defer term.Restore(fd, prev)

	var buf [1]byte
	if _, err := f.Read(buf[:]); err != nil {
		return false
	}
	return buf[0] == 'y' || buf[0] == 'Y'
}

func readAllNames(d host.Dir) ([]string, error) {
	var all []string
	for {
		names, err := d.Readdirnames(128)
		all = append(all, names...)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
		if len(names) == 0 {
			return all, nil
		}
	}
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
