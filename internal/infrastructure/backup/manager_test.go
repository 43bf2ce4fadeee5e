package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

// installPlugin sets up an initialized registry with one copied-in plugin
// and returns the registry and its installed entry.
func installPlugin(t *testing.T, files map[string]string) (*registry.Service, plugindomain.Entry) {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, plugindomain.DescriptorFileName), []byte("id: snap\nname: Snap\nversion: 1.0.0\n"), 0644))
	for rel, content := range files {
		path := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	reg := registry.NewService(t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, reg.Initialize(context.Background()))
	entry, err := reg.InstallFromLocal(context.Background(), src, plugindomain.LinkModeCopy)
	require.NoError(t, err)
	return reg, entry
}

func TestCreateBackup_CapturesFullTree(t *testing.T) {
	reg, entry := installPlugin(t, map[string]string{
		"skills/review/SKILL.md": "review",
		"README.md":              "docs",
	})
	m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())

	record, err := m.CreateBackup(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, "snap", record.PluginID)
	assert.Equal(t, "1.0.0", record.Version)
	assert.False(t, record.CapturedAt.IsZero())
	assert.Len(t, record.Files, 3) // descriptor plus the two content files

	for _, rel := range record.Files {
		orig, err := os.ReadFile(filepath.Join(entry.Path, filepath.FromSlash(rel)))
		require.NoError(t, err)
		copied, err := os.ReadFile(filepath.Join(record.Path, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, orig, copied, "backup copy of %s must match the tree", rel)
	}

	// Metadata is readable back from the backup directory itself.
	reread, err := ReadRecord(record.Path)
	require.NoError(t, err)
	assert.Equal(t, record.PluginID, reread.PluginID)
	assert.Equal(t, record.Files, reread.Files)
}

func TestCreateBackup_ExcludesBackupsAndGit(t *testing.T) {
	reg, entry := installPlugin(t, map[string]string{"a.md": "a"})
	m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())

	_, err := m.CreateBackup(context.Background(), entry)
	require.NoError(t, err)

	// A second capture must not recurse into the first one.
	record, err := m.CreateBackup(context.Background(), entry)
	require.NoError(t, err)
	for _, rel := range record.Files {
		assert.NotContains(t, rel, BackupsDirName)
		assert.NotContains(t, rel, ".git/")
	}
	_, statErr := os.Stat(filepath.Join(record.Path, BackupsDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateBackup_MissingTree(t *testing.T) {
	reg, entry := installPlugin(t, nil)
	m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())
	entry.Path = filepath.Join(entry.Path, "does-not-exist")

	_, err := m.CreateBackup(context.Background(), entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable")
}

func TestRetention_KeepsOnlyNewest(t *testing.T) {
	const retention = 3
	reg, entry := installPlugin(t, map[string]string{"a.md": "a"})
	m := NewManager(reg, retention, hclog.NewNullLogger())

	var newest []string
	for i := 0; i < retention+3; i++ {
		// Mutate the tree so the capture order is observable in content.
		require.NoError(t, os.WriteFile(filepath.Join(entry.Path, "a.md"), []byte(fmt.Sprintf("rev %d", i)), 0644))
		record, err := m.CreateBackup(context.Background(), entry)
		require.NoError(t, err)
		newest = append(newest, record.Path)
		if len(newest) > retention {
			newest = newest[1:]
		}
	}

	records := m.ListBackups("snap")
	require.Len(t, records, retention)

	// Newest first, matching the last captures in reverse order.
	for i, record := range records {
		assert.Equal(t, newest[len(newest)-1-i], record.Path)
	}

	// The newest surviving backup carries the last revision.
	content, err := os.ReadFile(filepath.Join(records[0].Path, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "rev 5", string(content))
}

func TestListBackups(t *testing.T) {
	t.Run("UnknownPlugin", func(t *testing.T) {
		reg, _ := installPlugin(t, nil)
		m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())
		assert.Empty(t, m.ListBackups("nobody"))
	})

	t.Run("NoBackupsYet", func(t *testing.T) {
		reg, _ := installPlugin(t, nil)
		m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())
		assert.Empty(t, m.ListBackups("snap"))
	})

	t.Run("SkipsDirsWithoutMetadata", func(t *testing.T) {
		reg, entry := installPlugin(t, nil)
		m := NewManager(reg, DefaultRetention, hclog.NewNullLogger())
		_, err := m.CreateBackup(context.Background(), entry)
		require.NoError(t, err)

		stray := filepath.Join(entry.Path, BackupsDirName, "not-a-backup")
		require.NoError(t, os.MkdirAll(stray, 0755))

		records := m.ListBackups("snap")
		require.Len(t, records, 1)
	})
}
