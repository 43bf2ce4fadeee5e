package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	backupdomain "github.com/plugsmith/plugsmith/internal/core/domain/backup"
	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	"github.com/plugsmith/plugsmith/internal/infrastructure/fsutil"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

// BackupsDirName holds timestamp-named backup directories inside each
// plugin tree. It is excluded from captures to avoid recursive growth.
const BackupsDirName = ".backups"

// DefaultRetention is the per-plugin cap on kept backups.
const DefaultRetention = 5

// Manager captures full, timestamped copies of plugin trees before
// destructive operations. It is stateless beyond the records it writes
// alongside each backup directory.
type Manager struct {
	registry  *registry.Service
	retention int
	logger    hclog.Logger
}

// NewManager creates a backup manager with the given retention cap;
// values below one fall back to the default.
func NewManager(reg *registry.Service, retention int, logger hclog.Logger) *Manager {
	if retention < 1 {
		retention = DefaultRetention
	}
	return &Manager{registry: reg, retention: retention, logger: logger.Named("backup")}
}

// CreateBackup copies a plugin's entire tree into a new timestamped
// directory under its backups directory, writes the record metadata, and
// evicts the oldest backups beyond the retention cap.
func (m *Manager) CreateBackup(ctx context.Context, entry plugindomain.Entry) (*backupdomain.Record, error) {
	if _, err := os.Stat(entry.Path); err != nil {
		return nil, fmt.Errorf("plugin tree unreadable: %w", err)
	}

	backupsDir := filepath.Join(entry.Path, BackupsDirName)
	now := time.Now().UTC()
	dest := filepath.Join(backupsDir, now.Format("20060102T150405.000000000Z"))
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	files, err := fsutil.CopyTree(entry.Path, dest, ".git", BackupsDirName)
	if err != nil {
		os.RemoveAll(dest)
		return nil, fmt.Errorf("failed to copy plugin tree: %w", err)
	}

	record := &backupdomain.Record{
		PluginID:   entry.ID,
		CapturedAt: now,
		Version:    entry.Version,
		Path:       dest,
		Files:      files,
	}
	if err := fsutil.WriteJSONAtomic(filepath.Join(dest, backupdomain.MetadataFileName), record); err != nil {
		os.RemoveAll(dest)
		return nil, err
	}

	m.evict(entry)
	return record, nil
}

// ListBackups returns all records for a plugin, newest first. Unknown ids
// and plugins without backups produce an empty list, never an error.
func (m *Manager) ListBackups(pluginID string) []backupdomain.Record {
	lp, err := m.registry.Get(pluginID)
	if err != nil {
		return nil
	}
	return m.listForPath(lp.Entry.Path)
}

func (m *Manager) listForPath(pluginPath string) []backupdomain.Record {
	backupsDir := filepath.Join(pluginPath, BackupsDirName)
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		return nil
	}
	var records []backupdomain.Record
	for _, dirEntry := range entries {
		if !dirEntry.IsDir() {
			continue
		}
		record, err := ReadRecord(filepath.Join(backupsDir, dirEntry.Name()))
		if err != nil {
			m.logger.Warn("skipping backup with unreadable metadata", "dir", dirEntry.Name(), "error", err)
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CapturedAt.After(records[j].CapturedAt)
	})
	return records
}

// evict removes, oldest first, every backup beyond the retention cap.
func (m *Manager) evict(entry plugindomain.Entry) {
	records := m.listForPath(entry.Path)
	for i := m.retention; i < len(records); i++ {
		if err := os.RemoveAll(records[i].Path); err != nil {
			m.logger.Warn("failed to evict backup", "path", records[i].Path, "error", err)
		}
	}
}

// ReadRecord loads the metadata file inside one backup directory.
func ReadRecord(backupDir string) (*backupdomain.Record, error) {
	data, err := os.ReadFile(filepath.Join(backupDir, backupdomain.MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup metadata: %w", err)
	}
	var record backupdomain.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("backup metadata is malformed: %w", err)
	}
	record.Path = backupDir
	return &record, nil
}
