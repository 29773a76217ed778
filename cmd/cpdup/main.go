// Command cpdup mirrors a source directory tree onto a destination tree,
// preserving content, metadata, hardlinks and symlinks, pruning anything at
// the destination the source no longer has.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stallmanifold/cpdup/internal/config"
	"github.com/stallmanifold/cpdup/internal/host"
	"github.com/stallmanifold/cpdup/internal/identity"
	"github.com/stallmanifold/cpdup/internal/replicator"
	"github.com/stallmanifold/cpdup/internal/rlog"
	"github.com/stallmanifold/cpdup/internal/stats"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	cmd := &cobra.Command{
		Use:   "cpdup <source> <destination>",
		Short: "Recursively replicate a filesystem tree",
		Long: `cpdup makes a destination tree bit-for-bit equivalent to a source tree.

Unchanged objects are skipped cheaply, changed objects are replaced
atomically, and objects absent at the source are pruned at the
destination.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rlog.SetVerbosity(cfg.VerboseLevel, cfg.Quiet)

			if cfg.SlaveMode {
				return runSlave()
			}
			if len(args) != 2 {
				return fmt.Errorf("cpdup: exactly one source and one destination are required")
			}
			return runReplicate(cfg, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&cfg.Force, "force", false, "compare/copy content even when metadata agrees")
	flags.BoolVar(&cfg.Safety, "safety", true, "refuse to replace a destination directory with a source file")
	flags.BoolVarP(&cfg.AskConfirmation, "ask", "i", false, "prompt before deletions")
	flags.BoolVarP(&cfg.NoRemove, "no-remove", "x", false, "never delete at the destination")
	flags.CountVarP(&cfg.VerboseLevel, "verbose", "v", "increase per-file logging verbosity")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&cfg.IgnoreFileName, "ignore-file", ".cpignore", "per-directory exclusion file name (empty disables)")
	flags.BoolVar(&cfg.EnableDigest, "enable-digest", false, "enable digest-based content identity")
	flags.StringVar(&cfg.DigestCacheName, "digest-cache", ".cpdup-digest.db", "digest cache file name")
	flags.BoolVar(&cfg.EnableFSCID, "enable-fscid", false, "enable filesystem-content-id identity")
	flags.StringVar(&cfg.FSCIDCacheName, "fscid-cache", ".cpdup-fscid.db", "filesystem-content-id cache file name")
	flags.StringVar(&cfg.HardlinkBasePath, "hardlink-base", "", "prior snapshot root for incremental backups")
	flags.BoolVar(&cfg.SlaveMode, "slave", false, "serve the remote protocol on stdio instead of replicating")

	return cmd
}

func runReplicate(cfg config.Config, srcPath, dstPath string) error {
	var localHost host.Local

	id := identity.None
	if cfg.EnableDigest {
		dc, err := identity.OpenDigestCache(cfg.DigestCacheName)
		if err != nil {
			return fmt.Errorf("cpdup: open digest cache: %w", err)
		}
		defer dc.Close()
		id.Digest = dc
	}
	if cfg.EnableFSCID {
		fc, err := identity.OpenFSCIDCache(cfg.FSCIDCacheName)
		if err != nil {
			return fmt.Errorf("cpdup: open fscid cache: %w", err)
		}
		defer fc.Close()
		id.FSCID = fc
	}

	counters := &stats.Counters{}
	rep := replicator.New(cfg, localHost, localHost, counters)
	rep.Identity = id

	failures := rep.RunRoot(srcPath, dstPath)

	if !cfg.Quiet {
		rlog.Logf(nil, "%s", counters.Summary())
	}
	if failures != 0 {
		return fmt.Errorf("cpdup: %d failures during replication", failures)
	}
	return nil
}

// runSlave serves the remote protocol on stdio (spec.md §1/§6): the wire
// format itself is out of scope for the distilled spec, but a complete
// repository still needs a concrete slave loop for internal/host.Remote to
// talk to, so --slave wires straight into internal/host.ServeSlave.
func runSlave() error {
	return host.ServeSlave(stdioReadWriteCloser{})
}

// stdioReadWriteCloser pairs os.Stdin/os.Stdout into the single
// io.ReadWriteCloser ServeSlave and NewRemote expect; Close is a no-op since
// neither stream is ours to close.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error                { return nil }
