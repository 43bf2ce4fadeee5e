package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/plugsmith/plugsmith/internal/core/ports"
	"github.com/plugsmith/plugsmith/internal/infrastructure/backup"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

// Result is the outcome of an apply or rollback operation. A per-file
// failure lands in SkippedFiles instead of failing the whole operation.
type Result struct {
	Success      bool     `json:"success"`
	AppliedFiles []string `json:"appliedFiles"`
	SkippedFiles []string `json:"skippedFiles"`
	BackupPath   string   `json:"backupPath,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Executor materializes upstream file versions into local plugin trees and
// restores trees from backups. It holds the per-plugin lock for the full
// duration of every mutating operation.
type Executor struct {
	registry *registry.Service
	git      ports.GitClient
	backups  *backup.Manager
	logger   hclog.Logger
}

// NewExecutor creates an apply/rollback executor.
func NewExecutor(reg *registry.Service, git ports.GitClient, backups *backup.Manager, logger hclog.Logger) *Executor {
	return &Executor{registry: reg, git: git, backups: backups, logger: logger.Named("apply")}
}

// ApplySelected materializes the upstream branch-tip version of each
// selected path into the local tree, optionally after a backup. A
// requested backup that fails aborts the operation: proceeding without the
// safety net would be a silent-success condition.
func (x *Executor) ApplySelected(ctx context.Context, pluginID string, selected []string, createBackup bool, token string) Result {
	lp, err := x.registry.Get(pluginID)
	if err != nil {
		return failure("%v", err)
	}
	entry := lp.Entry
	if !entry.IsRemote() {
		return failure("plugin %s is not remote-backed; nothing to apply", pluginID)
	}
	if len(selected) == 0 {
		return failure("no files selected")
	}

	unlock := x.registry.LockPlugin(pluginID)
	defer unlock()

	result := Result{AppliedFiles: []string{}, SkippedFiles: []string{}}
	if createBackup {
		record, err := x.backups.CreateBackup(ctx, entry)
		if err != nil {
			return failure("backup before apply failed: %v", err)
		}
		result.BackupPath = record.Path
	}

	if err := x.git.Fetch(ctx, entry.Path, token); err != nil {
		result.Error = err.Error()
		return result
	}
	branch, err := x.git.DefaultBranch(ctx, entry.Path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	deleted := x.deletedUpstream(ctx, entry.Path, branch)
	for _, rel := range selected {
		if err := x.applyOne(ctx, entry.Path, branch, rel, deleted[rel]); err != nil {
			x.logger.Warn("failed to apply file", "plugin", pluginID, "path", rel, "error", err)
			result.SkippedFiles = append(result.SkippedFiles, rel)
			continue
		}
		result.AppliedFiles = append(result.AppliedFiles, rel)
	}

	x.refreshAfterMutation(ctx, pluginID)

	result.Success = len(result.SkippedFiles) == 0
	if !result.Success {
		result.Error = fmt.Sprintf("%d of %d selected files could not be applied", len(result.SkippedFiles), len(selected))
	}
	return result
}

// applyOne brings one relative path in line with the upstream branch tip.
func (x *Executor) applyOne(ctx context.Context, repoDir, branch, rel string, deletedUpstream bool) error {
	localPath := filepath.Join(repoDir, filepath.FromSlash(rel))
	if deletedUpstream {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file deleted upstream: %w", err)
		}
		return nil
	}
	content, err := x.git.ShowFile(ctx, repoDir, "origin/"+branch, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(localPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// deletedUpstream maps the paths the upstream tip no longer carries.
func (x *Executor) deletedUpstream(ctx context.Context, repoDir, branch string) map[string]bool {
	out := map[string]bool{}
	changes, err := x.git.ChangedFiles(ctx, repoDir, branch)
	if err != nil {
		return out
	}
	for _, c := range changes {
		if c.Status == "D" {
			out[c.Path] = true
		}
	}
	return out
}

// Rollback restores a plugin tree from a previously captured backup,
// taking a new safety backup of the current state first so the rollback
// itself is undoable. BackupPath in the result refers to that safety
// snapshot, not the restored-from backup.
func (x *Executor) Rollback(ctx context.Context, pluginID, backupPath string) Result {
	lp, err := x.registry.Get(pluginID)
	if err != nil {
		return failure("%v", err)
	}
	entry := lp.Entry

	record, err := backup.ReadRecord(backupPath)
	if err != nil {
		return failure("backup is not usable: %v", err)
	}
	if record.PluginID != pluginID {
		return failure("backup at %s belongs to plugin %s, not %s", backupPath, record.PluginID, pluginID)
	}

	unlock := x.registry.LockPlugin(pluginID)
	defer unlock()

	safety, err := x.backups.CreateBackup(ctx, entry)
	if err != nil {
		return failure("safety backup before rollback failed: %v", err)
	}

	result := Result{BackupPath: safety.Path, AppliedFiles: []string{}, SkippedFiles: []string{}}
	for _, rel := range record.Files {
		src := filepath.Join(backupPath, filepath.FromSlash(rel))
		dst := filepath.Join(entry.Path, filepath.FromSlash(rel))
		if err := restoreFile(src, dst); err != nil {
			x.logger.Warn("failed to restore file", "plugin", pluginID, "path", rel, "error", err)
			result.SkippedFiles = append(result.SkippedFiles, rel)
			continue
		}
		result.AppliedFiles = append(result.AppliedFiles, rel)
	}

	if err := x.registry.Refresh(ctx); err != nil {
		x.logger.Warn("registry refresh after rollback failed", "error", err)
	}
	if err := x.registry.Touch(pluginID, record.Version); err != nil {
		x.logger.Warn("failed to record rollback version", "error", err)
	}

	result.Success = len(result.SkippedFiles) == 0
	if !result.Success {
		result.Error = fmt.Sprintf("%d of %d files could not be restored", len(result.SkippedFiles), len(record.Files))
	}
	return result
}

// FileDiff returns a unified diff of one path against the upstream branch
// tip. The second return is false when the diff is unavailable for any
// reason: unknown plugin, non-remote source, or diff computation failure.
func (x *Executor) FileDiff(ctx context.Context, pluginID, rel string) (string, bool) {
	lp, err := x.registry.Get(pluginID)
	if err != nil || !lp.Entry.IsRemote() {
		return "", false
	}
	branch, err := x.git.DefaultBranch(ctx, lp.Entry.Path)
	if err != nil {
		return "", false
	}
	diff, err := x.git.DiffFile(ctx, lp.Entry.Path, branch, rel)
	if err != nil {
		return "", false
	}
	return diff, true
}

// refreshAfterMutation reloads the registry and stamps the entry with the
// version the tree's own manifest now carries. The upstream descriptor is
// deliberately not consulted: after a partial apply the entry must never
// claim a version the local manifest does not.
func (x *Executor) refreshAfterMutation(ctx context.Context, pluginID string) {
	if err := x.registry.Refresh(ctx); err != nil {
		x.logger.Warn("registry refresh after apply failed", "error", err)
	}
	version := ""
	if lp, err := x.registry.Get(pluginID); err == nil && lp.Descriptor != nil {
		version = lp.Descriptor.Version
	}
	if err := x.registry.Touch(pluginID, version); err != nil {
		x.logger.Warn("failed to record update timestamp", "error", err)
	}
}

// restoreFile copies backup content back over the live tree, creating
// intermediate directories as needed.
func restoreFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read backup copy: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write restored file: %w", err)
	}
	return nil
}
