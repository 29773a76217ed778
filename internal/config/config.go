// Package config defines the single RunContext the Design Notes (spec.md
// §9) call for: every mode flag the original treated as process-wide global
// state is a field here, constructed once by cmd/cpdup and passed explicitly
// into internal/replicator.
package config

// Config is the run's configuration surface, matching spec.md §6's
// "Configuration recognized by the core" list one field per flag.
type Config struct {
	// Force does content comparison/copy even when metadata agrees.
	Force bool
	// Safety refuses to replace a destination directory with a source
	// non-directory.
	Safety bool
	// AskConfirmation prompts before deletions.
	AskConfirmation bool
	// NoRemove never deletes at the destination.
	NoRemove bool
	// VerboseLevel is the per-file logging threshold (0..N).
	VerboseLevel int
	// Quiet suppresses non-error output.
	Quiet bool
	// IgnoreFileName is the optional per-directory exclusion file name; when
	// empty, no ignore list is loaded.
	IgnoreFileName string
	// EnableDigest turns on digest-based content identity.
	EnableDigest bool
	// DigestCacheName is the digest cache's backing file.
	DigestCacheName string
	// EnableFSCID turns on filesystem-content-id identity.
	EnableFSCID bool
	// FSCIDCacheName is the fscid cache's backing file.
	FSCIDCacheName string
	// HardlinkBasePath is the optional prior-snapshot root used for
	// incremental backups (§4.3).
	HardlinkBasePath string
	// SlaveMode serves the remote protocol on stdio instead of replicating;
	// belongs to the external collaborator per spec.md §1, wired here only
	// so the CLI has a flag to route to it.
	SlaveMode bool
}
