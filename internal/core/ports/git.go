package ports

import "context"

// GitAvailability reports whether the git client can be used. Absence is an
// expected condition: callers degrade gracefully instead of failing startup.
type GitAvailability struct {
	Available    bool
	Version      string
	MeetsMinimum bool
	Message      string
}

// NameStatus is one row of an upstream comparison.
type NameStatus struct {
	Path      string
	Status    string // single-letter name-status indicator: A, M, D, R...
	PriorPath string // set for renames
}

// GitClient abstracts the version-control client used for all remote and
// local repository operations. The exec-based implementation lives in
// infrastructure/gitremote; tests substitute fakes.
type GitClient interface {
	// CheckAvailability probes for the git binary and its version.
	CheckAvailability(ctx context.Context) GitAvailability

	// Clone removes any pre-existing destination and performs an
	// authenticated clone, reporting progress to sink.
	Clone(ctx context.Context, remoteURL, token, dest string, sink ProgressSink) error

	// Pull fetches and merges upstream changes into an existing clone.
	// The credential is embedded in the remote URL only for the duration
	// of the call and removed afterward even on failure.
	Pull(ctx context.Context, repoDir, token string) error

	// Fetch updates remote tracking refs without merging.
	Fetch(ctx context.Context, repoDir, token string) error

	// DefaultBranch resolves the upstream branch an update compares against.
	DefaultBranch(ctx context.Context, repoDir string) (string, error)

	// ChangedFiles lists paths differing between local HEAD and the
	// upstream branch tip, with their name-status classification.
	ChangedFiles(ctx context.Context, repoDir, branch string) ([]NameStatus, error)

	// IsDirty reports whether a path has uncommitted working tree changes.
	IsDirty(ctx context.Context, repoDir, path string) (bool, error)

	// ShowFile returns the content of a path at a ref such as
	// "origin/main" or "HEAD". Missing paths return an error.
	ShowFile(ctx context.Context, repoDir, ref, path string) ([]byte, error)

	// DiffFile returns a unified diff of one path between local HEAD and
	// the upstream branch tip.
	DiffFile(ctx context.Context, repoDir, branch, path string) (string, error)
}
