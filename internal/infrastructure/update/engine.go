package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
	"github.com/plugsmith/plugsmith/internal/core/ports"
	"github.com/plugsmith/plugsmith/internal/infrastructure/fsutil"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

// Engine computes what changed upstream for a remote-backed plugin. It is
// a stateless service: every check runs against the registry's and the
// filesystem's current truth and persists nothing.
type Engine struct {
	registry *registry.Service
	git      ports.GitClient
	rules    []CategoryRule
	logger   hclog.Logger
}

// NewEngine creates an update engine using the default category rules.
func NewEngine(reg *registry.Service, git ports.GitClient, logger hclog.Logger) *Engine {
	return &Engine{
		registry: reg,
		git:      git,
		rules:    DefaultRules(),
		logger:   logger.Named("update"),
	}
}

// CheckForUpdates runs one full check for a plugin. Unknown ids return an
// error; a non-remote source terminates in a not-eligible report with an
// explanatory message rather than an error.
func (e *Engine) CheckForUpdates(ctx context.Context, pluginID, token string) (updatedomain.Report, error) {
	lp, err := e.registry.Get(pluginID)
	if err != nil {
		return updatedomain.Report{State: updatedomain.StateFailed}, err
	}
	entry := lp.Entry
	report := updatedomain.Report{CurrentVersion: entry.Version}

	if !entry.IsRemote() {
		report.State = updatedomain.StateNotEligible
		report.Error = fmt.Sprintf("plugin %s is installed from a local source and has no update mechanism", entry.ID)
		return report, nil
	}

	unlock := e.registry.LockPlugin(pluginID)
	defer unlock()

	report.State = updatedomain.StateFetching
	if err := e.git.Fetch(ctx, entry.Path, token); err != nil {
		report.State = updatedomain.StateFailed
		report.Error = err.Error()
		return report, nil
	}
	branch, err := e.git.DefaultBranch(ctx, entry.Path)
	if err != nil {
		report.State = updatedomain.StateFailed
		report.Error = err.Error()
		return report, nil
	}

	changes, err := e.git.ChangedFiles(ctx, entry.Path, branch)
	if err != nil {
		report.State = updatedomain.StateFailed
		report.Error = err.Error()
		return report, nil
	}
	if len(changes) == 0 {
		report.State = updatedomain.StateNoChanges
		return report, nil
	}
	report.State = updatedomain.StateChangesFound
	files := make([]updatedomain.File, 0, len(changes))
	for _, change := range changes {
		files = append(files, updatedomain.File{
			Path:      change.Path,
			Kind:      classify(change.Status),
			PriorPath: change.PriorPath,
		})
	}

	report.State = updatedomain.StateConflictScanning
	for i := range files {
		f := &files[i]
		conflict, err := e.detectConflict(ctx, entry.Path, f.Path)
		if err != nil {
			e.logger.Warn("conflict detection failed", "plugin", entry.ID, "path", f.Path, "error", err)
		}
		f.HasConflict = conflict

		if f.HasConflict || f.Kind == updatedomain.ChangeModified || f.Kind == updatedomain.ChangeRenamed {
			if diff, err := e.git.DiffFile(ctx, entry.Path, branch, f.Path); err == nil {
				f.Diff = diff
			}
		}
	}

	report.Categories = Categorize(e.rules, files)
	report.Summary = updatedomain.Summarize(files)
	report.HasUpdate = true
	report.State = updatedomain.StateCategorized
	report.LatestVersion = e.upstreamVersion(ctx, entry.Path, branch)
	return report, nil
}

// detectConflict reports whether a path has independently diverged from
// the last synchronized state: either uncommitted working-tree changes or
// on-disk content whose hash differs from the content at local HEAD.
func (e *Engine) detectConflict(ctx context.Context, repoDir, relPath string) (bool, error) {
	dirty, err := e.git.IsDirty(ctx, repoDir, relPath)
	if err != nil {
		return false, err
	}
	if dirty {
		return true, nil
	}

	localPath := filepath.Join(repoDir, filepath.FromSlash(relPath))
	if _, err := os.Stat(localPath); err != nil {
		// Locally absent files cannot carry a local edit.
		return false, nil
	}
	headContent, err := e.git.ShowFile(ctx, repoDir, "HEAD", relPath)
	if err != nil {
		// Not tracked at HEAD: a locally created file counts as divergence.
		return true, nil
	}
	localHash, err := fsutil.HashFile(localPath)
	if err != nil {
		return false, err
	}
	return localHash != fsutil.HashBytes(headContent), nil
}

// upstreamVersion reads the descriptor at the upstream branch tip, if present.
func (e *Engine) upstreamVersion(ctx context.Context, repoDir, branch string) string {
	data, err := e.git.ShowFile(ctx, repoDir, "origin/"+branch, plugindomain.DescriptorFileName)
	if err != nil {
		return ""
	}
	desc, err := plugindomain.ParseDescriptor(data)
	if err != nil {
		return ""
	}
	return desc.Version
}

func classify(status string) updatedomain.ChangeKind {
	switch status {
	case "A":
		return updatedomain.ChangeAdded
	case "D":
		return updatedomain.ChangeDeleted
	case "R":
		return updatedomain.ChangeRenamed
	default:
		return updatedomain.ChangeModified
	}
}
