package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	"github.com/plugsmith/plugsmith/internal/infrastructure/fsutil"
)

// RegistryFileName is the persisted registry under the installation root.
const RegistryFileName = "registry.json"

// LoadedPlugin pairs an installation record with the descriptor read from
// its tree. Descriptor is nil when the tree was unreadable at load time.
type LoadedPlugin struct {
	Entry      plugindomain.Entry
	Descriptor *plugindomain.Descriptor
}

// Service is the single source of truth for what is installed. All
// mutations rewrite the persisted file atomically before the in-memory
// index is considered authoritative.
type Service struct {
	root   string
	logger hclog.Logger

	mu      sync.RWMutex
	index   map[string]*LoadedPlugin
	skipped []plugindomain.Entry // trees missing at load; retained in the file for manual recovery
	loaded  bool
	idLocks sync.Map // plugin id -> *sync.Mutex
}

// NewService creates a registry over the given installation root.
func NewService(root string, logger hclog.Logger) *Service {
	return &Service{
		root:   fsutil.ExpandPath(root),
		logger: logger.Named("registry"),
		index:  map[string]*LoadedPlugin{},
	}
}

// Root returns the installation root directory.
func (s *Service) Root() string {
	return s.root
}

// PluginDir returns the directory a plugin id installs into.
func (s *Service) PluginDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Service) registryPath() string {
	return filepath.Join(s.root, RegistryFileName)
}

// LockPlugin serializes operations touching one plugin's tree. The
// returned func releases the lock. Remote and apply/rollback operations
// hold this for their full duration.
func (s *Service) LockPlugin(id string) func() {
	v, _ := s.idLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Initialize is idempotent. It ensures the root exists, loads the
// persisted registry (substituting an empty default for corrupt or
// structurally invalid files), and loads every listed entry. A single
// entry's load failure is logged and skipped, never aborting the rest.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create installation root: %w", err)
	}
	file, err := s.readRegistryFile()
	if err != nil {
		// Corruption must never abort startup. The corrupt state is
		// discarded for a known-good empty registry, which is persisted
		// so the fallback is visible on disk.
		s.logger.Warn("registry file unreadable, falling back to empty registry", "error", err)
		file = &plugindomain.RegistryFile{SchemaVersion: plugindomain.RegistrySchemaVersion}
		if werr := s.persistLocked(file.Plugins); werr != nil {
			return fmt.Errorf("failed to persist fallback registry: %w", werr)
		}
	}
	s.index = map[string]*LoadedPlugin{}
	s.skipped = nil
	for _, entry := range file.Plugins {
		if _, err := os.Stat(entry.Path); err != nil {
			// Skipped, not deleted: the entry stays in the file so a
			// manually restored tree becomes loadable again. It must also
			// survive later persists, so it is carried on the side.
			s.logger.Warn("plugin path missing, skipping", "id", entry.ID, "path", entry.Path)
			s.skipped = append(s.skipped, entry)
			continue
		}
		lp := &LoadedPlugin{Entry: entry}
		desc, err := plugindomain.LoadDescriptor(entry.Path)
		if err != nil {
			s.logger.Warn("plugin descriptor unreadable", "id", entry.ID, "error", err)
		} else {
			lp.Descriptor = desc
		}
		s.index[entry.ID] = lp
	}
	s.loaded = true
	return nil
}

func (s *Service) readRegistryFile() (*plugindomain.RegistryFile, error) {
	data, err := os.ReadFile(s.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &plugindomain.RegistryFile{SchemaVersion: plugindomain.RegistrySchemaVersion}, nil
		}
		return nil, err
	}
	file, err := decodeRegistryFile(data)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ListInstalled returns all currently loaded plugins, ordered by id.
func (s *Service) ListInstalled() []LoadedPlugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LoadedPlugin, 0, len(s.index))
	for _, lp := range s.index {
		out = append(out, *lp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.ID < out[j].Entry.ID })
	return out
}

// Get returns one plugin by id.
func (s *Service) Get(id string) (LoadedPlugin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lp, ok := s.index[id]
	if !ok {
		return LoadedPlugin{}, fmt.Errorf("%w: %s", plugindomain.ErrPluginNotFound, id)
	}
	return *lp, nil
}

// InstallFromLocal validates a local source tree and installs it under the
// root, copying by default or symlinking when mode says so.
func (s *Service) InstallFromLocal(ctx context.Context, sourcePath string, mode plugindomain.LinkMode) (plugindomain.Entry, error) {
	sourcePath = fsutil.ExpandPath(sourcePath)
	if _, err := os.Stat(sourcePath); err != nil {
		return plugindomain.Entry{}, fmt.Errorf("%w: %s", plugindomain.ErrSourceMissing, sourcePath)
	}
	desc, err := plugindomain.LoadDescriptor(sourcePath)
	if err != nil {
		return plugindomain.Entry{}, err
	}

	unlock := s.LockPlugin(desc.ID)
	defer unlock()
	if s.isInstalled(desc.ID) {
		return plugindomain.Entry{}, fmt.Errorf("%w: %s", plugindomain.ErrAlreadyInstalled, desc.ID)
	}

	dest := s.PluginDir(desc.ID)
	switch mode {
	case plugindomain.LinkModeSymlink:
		abs, err := filepath.Abs(sourcePath)
		if err != nil {
			return plugindomain.Entry{}, fmt.Errorf("failed to resolve source path: %w", err)
		}
		if err := os.Symlink(abs, dest); err != nil {
			return plugindomain.Entry{}, fmt.Errorf("failed to link plugin: %w", err)
		}
	default:
		mode = plugindomain.LinkModeCopy
		if _, err := fsutil.CopyTree(sourcePath, dest, ".git", ".backups"); err != nil {
			os.RemoveAll(dest)
			return plugindomain.Entry{}, fmt.Errorf("failed to copy plugin: %w", err)
		}
	}

	now := time.Now().UTC()
	entry := plugindomain.Entry{
		ID:          desc.ID,
		Name:        desc.Name,
		Version:     desc.Version,
		SourceKind:  plugindomain.SourceLocal,
		Source:      sourcePath,
		Path:        dest,
		LinkMode:    mode,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if err := s.appendEntry(entry, desc); err != nil {
		fsutil.RemoveInstalled(dest)
		return plugindomain.Entry{}, err
	}
	return entry, nil
}

// InstallFromAcquired registers content the remote layer already placed on
// disk. On duplicate, the acquired tree is deleted so no orphaned
// directory is left behind.
func (s *Service) InstallFromAcquired(ctx context.Context, acquiredPath, source string, kind plugindomain.SourceKind) (plugindomain.Entry, error) {
	desc, err := plugindomain.LoadDescriptor(acquiredPath)
	if err != nil {
		os.RemoveAll(acquiredPath)
		return plugindomain.Entry{}, err
	}

	unlock := s.LockPlugin(desc.ID)
	defer unlock()
	if s.isInstalled(desc.ID) {
		os.RemoveAll(acquiredPath)
		return plugindomain.Entry{}, fmt.Errorf("%w: %s", plugindomain.ErrAlreadyInstalled, desc.ID)
	}

	dest := s.PluginDir(desc.ID)
	if acquiredPath != dest {
		if err := os.Rename(acquiredPath, dest); err != nil {
			os.RemoveAll(acquiredPath)
			return plugindomain.Entry{}, fmt.Errorf("failed to move acquired plugin: %w", err)
		}
	}

	now := time.Now().UTC()
	entry := plugindomain.Entry{
		ID:          desc.ID,
		Name:        desc.Name,
		Version:     desc.Version,
		SourceKind:  kind,
		Source:      source,
		Path:        dest,
		LinkMode:    plugindomain.LinkModeCopy,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if err := s.appendEntry(entry, desc); err != nil {
		os.RemoveAll(dest)
		return plugindomain.Entry{}, err
	}
	return entry, nil
}

// Uninstall removes the plugin tree and its registry entry. Unknown ids
// return false rather than an error.
func (s *Service) Uninstall(ctx context.Context, id string) (bool, error) {
	unlock := s.LockPlugin(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	lp, ok := s.index[id]
	if !ok {
		// An entry whose tree went missing has nothing on disk to remove,
		// but the user asked for it to be gone from the registry.
		if s.dropSkippedLocked(id) {
			if err := s.persistLocked(s.entriesLocked()); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}
	if err := fsutil.RemoveInstalled(lp.Entry.Path); err != nil {
		return false, fmt.Errorf("failed to remove plugin tree: %w", err)
	}
	delete(s.index, id)
	if err := s.persistLocked(s.entriesLocked()); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh clears and reloads the in-memory index from the persisted file.
// Used after an update or rollback changed trees out-of-band.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return s.Initialize(ctx)
}

// Touch records a new last-update timestamp and version for a plugin after
// an apply refreshed its tree.
func (s *Service) Touch(id, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lp, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", plugindomain.ErrPluginNotFound, id)
	}
	lp.Entry.UpdatedAt = time.Now().UTC()
	if version != "" {
		lp.Entry.Version = version
	}
	return s.persistLocked(s.entriesLocked())
}

func (s *Service) isInstalled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *Service) appendEntry(entry plugindomain.Entry, desc *plugindomain.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A fresh install supersedes a same-id entry whose tree went missing.
	s.dropSkippedLocked(entry.ID)
	s.index[entry.ID] = &LoadedPlugin{Entry: entry, Descriptor: desc}
	if err := s.persistLocked(s.entriesLocked()); err != nil {
		delete(s.index, entry.ID)
		return err
	}
	return nil
}

func (s *Service) dropSkippedLocked(id string) bool {
	for i, e := range s.skipped {
		if e.ID == id {
			s.skipped = append(s.skipped[:i], s.skipped[i+1:]...)
			return true
		}
	}
	return false
}

// entriesLocked is the full persisted plugin list: every loaded entry plus
// the entries skipped at load, so a mutation never erases a recoverable one.
func (s *Service) entriesLocked() []plugindomain.Entry {
	entries := make([]plugindomain.Entry, 0, len(s.index)+len(s.skipped))
	entries = append(entries, s.skipped...)
	for _, lp := range s.index {
		entries = append(entries, lp.Entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (s *Service) persistLocked(entries []plugindomain.Entry) error {
	file := plugindomain.RegistryFile{
		SchemaVersion: plugindomain.RegistrySchemaVersion,
		Plugins:       entries,
		UpdatedAt:     time.Now().UTC(),
	}
	if file.Plugins == nil {
		file.Plugins = []plugindomain.Entry{}
	}
	return fsutil.WriteJSONAtomic(s.registryPath(), file)
}
