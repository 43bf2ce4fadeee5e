package services

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	backupdomain "github.com/plugsmith/plugsmith/internal/core/domain/backup"
	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
	"github.com/plugsmith/plugsmith/internal/core/ports"
	"github.com/plugsmith/plugsmith/internal/infrastructure/apply"
	"github.com/plugsmith/plugsmith/internal/infrastructure/backup"
	"github.com/plugsmith/plugsmith/internal/infrastructure/gitremote"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
	"github.com/plugsmith/plugsmith/internal/infrastructure/update"
)

// InstallRequest describes one install operation.
type InstallRequest struct {
	Source   string
	Kind     plugindomain.SourceKind
	LinkMode plugindomain.LinkMode
	Token    string
}

// InstallResult is the uniform envelope for install outcomes: routine
// failures are carried inside the result, not raised as errors.
type InstallResult struct {
	Success bool                `json:"success"`
	Plugin  *plugindomain.Entry `json:"plugin,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// PluginService is the operation surface the host application consumes.
// It owns nothing itself; every call delegates to the explicit service
// objects injected at construction.
type PluginService struct {
	registry *registry.Service
	engine   *update.Engine
	executor *apply.Executor
	backups  *backup.Manager
	git      ports.GitClient
	api      *gitremote.APIClient
	creds    ports.CredentialStore
	logger   hclog.Logger
}

// NewPluginService wires the service facade.
func NewPluginService(
	reg *registry.Service,
	engine *update.Engine,
	executor *apply.Executor,
	backups *backup.Manager,
	git ports.GitClient,
	api *gitremote.APIClient,
	creds ports.CredentialStore,
	logger hclog.Logger,
) *PluginService {
	return &PluginService{
		registry: reg,
		engine:   engine,
		executor: executor,
		backups:  backups,
		git:      git,
		api:      api,
		creds:    creds,
		logger:   logger.Named("service"),
	}
}

// Initialize prepares the registry. Idempotent.
func (s *PluginService) Initialize(ctx context.Context) error {
	return s.registry.Initialize(ctx)
}

// ListInstalled returns every loaded plugin.
func (s *PluginService) ListInstalled() []registry.LoadedPlugin {
	return s.registry.ListInstalled()
}

// Get returns one installed plugin.
func (s *PluginService) Get(id string) (registry.LoadedPlugin, error) {
	return s.registry.Get(id)
}

// Install acquires and registers a plugin from a local directory or a
// remote repository. A failed remote install leaves no partial tree.
func (s *PluginService) Install(ctx context.Context, req InstallRequest, sink ports.ProgressSink) InstallResult {
	switch req.Kind {
	case plugindomain.SourceLocal:
		entry, err := s.registry.InstallFromLocal(ctx, req.Source, req.LinkMode)
		if err != nil {
			return InstallResult{Error: err.Error()}
		}
		return InstallResult{Success: true, Plugin: &entry}
	case plugindomain.SourceRemote:
		return s.installRemote(ctx, req, sink)
	default:
		return InstallResult{Error: fmt.Sprintf("unknown source kind %q", req.Kind)}
	}
}

func (s *PluginService) installRemote(ctx context.Context, req InstallRequest, sink ports.ProgressSink) InstallResult {
	locator, ok := gitremote.ParseLocator(req.Source)
	if !ok {
		return InstallResult{Error: fmt.Sprintf("unrecognized repository locator: %s", req.Source)}
	}
	if avail := s.git.CheckAvailability(ctx); !avail.Available || !avail.MeetsMinimum {
		return InstallResult{Error: avail.Message}
	}

	token := s.tokenOrStored(req.Token)
	acquireDir, err := os.MkdirTemp(s.registry.Root(), ".acquire-*")
	if err != nil {
		return InstallResult{Error: fmt.Sprintf("failed to allocate staging directory: %v", err)}
	}
	if err := s.git.Clone(ctx, locator.CloneURL(), token, acquireDir, sink); err != nil {
		os.RemoveAll(acquireDir)
		return InstallResult{Error: err.Error()}
	}

	entry, err := s.registry.InstallFromAcquired(ctx, acquireDir, locator.CloneURL(), plugindomain.SourceRemote)
	if err != nil {
		return InstallResult{Error: err.Error()}
	}
	return InstallResult{Success: true, Plugin: &entry}
}

// Uninstall removes a plugin. False means the id was unknown.
func (s *PluginService) Uninstall(ctx context.Context, id string) (bool, error) {
	return s.registry.Uninstall(ctx, id)
}

// CheckForUpdates runs one update check for a remote-backed plugin.
func (s *PluginService) CheckForUpdates(ctx context.Context, id, token string) (updatedomain.Report, error) {
	return s.engine.CheckForUpdates(ctx, id, s.tokenOrStored(token))
}

// ApplyUpdates materializes selected upstream files into the local tree.
func (s *PluginService) ApplyUpdates(ctx context.Context, id string, files []string, createBackup bool, token string) apply.Result {
	return s.executor.ApplySelected(ctx, id, files, createBackup, s.tokenOrStored(token))
}

// FileDiff returns a unified diff of one path against the upstream tip.
func (s *PluginService) FileDiff(ctx context.Context, id, path string) (string, bool) {
	return s.executor.FileDiff(ctx, id, path)
}

// ListBackups returns all backup records for a plugin, newest first.
func (s *PluginService) ListBackups(id string) []backupdomain.Record {
	return s.backups.ListBackups(id)
}

// Rollback restores a plugin tree from a backup.
func (s *PluginService) Rollback(ctx context.Context, id, backupPath string) apply.Result {
	return s.executor.Rollback(ctx, id, backupPath)
}

// ValidateCredential checks a token against the identity endpoint.
func (s *PluginService) ValidateCredential(ctx context.Context, token string) (gitremote.CredentialCheck, error) {
	return s.api.ValidateCredential(ctx, s.tokenOrStored(token))
}

// CheckRepositoryAccess probes reachability and visibility of a repository.
func (s *PluginService) CheckRepositoryAccess(ctx context.Context, token, owner, repo string) (gitremote.RepositoryAccess, error) {
	return s.api.CheckRepositoryAccess(ctx, s.tokenOrStored(token), owner, repo)
}

// CheckGitAvailability reports whether the git client is usable.
func (s *PluginService) CheckGitAvailability(ctx context.Context) ports.GitAvailability {
	return s.git.CheckAvailability(ctx)
}

// StoreCredential validates and persists a token in the encrypted store.
func (s *PluginService) StoreCredential(ctx context.Context, token string) (gitremote.CredentialCheck, error) {
	check, err := s.api.ValidateCredential(ctx, token)
	if err != nil {
		return check, err
	}
	if !check.Valid {
		return check, nil
	}
	if err := s.creds.Set(token); err != nil {
		return check, fmt.Errorf("credential validated but could not be stored: %w", err)
	}
	return check, nil
}

// ClearCredential removes the stored token.
func (s *PluginService) ClearCredential() error {
	return s.creds.Clear()
}

// tokenOrStored prefers an explicitly supplied credential, falling back to
// the encrypted store. The credential is held only for the operation.
func (s *PluginService) tokenOrStored(token string) string {
	if token != "" {
		return token
	}
	stored, err := s.creds.Get()
	if err != nil {
		s.logger.Warn("failed to read stored credential", "error", err)
		return ""
	}
	return stored
}
