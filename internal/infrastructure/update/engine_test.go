package update

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
	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
	"github.com/plugsmith/plugsmith/internal/core/ports"
	"github.com/plugsmith/plugsmith/internal/infrastructure/fsutil"
	"github.com/plugsmith/plugsmith/internal/infrastructure/registry"
)

// fakeGit implements ports.GitClient over in-memory maps so engine tests
// never shell out.
type fakeGit struct {
	fetchErr      error
	branch        string
	changes       []ports.NameStatus
	dirty         map[string]bool
	headFiles     map[string][]byte
	upstreamFiles map[string][]byte
	diffs         map[string]string
}

func (f *fakeGit) CheckAvailability(ctx context.Context) ports.GitAvailability {
	return ports.GitAvailability{Available: true, Version: "2.40.0", MeetsMinimum: true}
}

func (f *fakeGit) Clone(ctx context.Context, remoteURL, token, dest string, sink ports.ProgressSink) error {
	return fmt.Errorf("not supported by fake")
}

func (f *fakeGit) Pull(ctx context.Context, repoDir, token string) error { return nil }

func (f *fakeGit) Fetch(ctx context.Context, repoDir, token string) error { return f.fetchErr }

func (f *fakeGit) DefaultBranch(ctx context.Context, repoDir string) (string, error) {
	if f.branch == "" {
		return "main", nil
	}
	return f.branch, nil
}

func (f *fakeGit) ChangedFiles(ctx context.Context, repoDir, branch string) ([]ports.NameStatus, error) {
	return f.changes, nil
}

func (f *fakeGit) IsDirty(ctx context.Context, repoDir, path string) (bool, error) {
	return f.dirty[path], nil
}

func (f *fakeGit) ShowFile(ctx context.Context, repoDir, ref, path string) ([]byte, error) {
	files := f.upstreamFiles
	if ref == "HEAD" {
		files = f.headFiles
	}
	content, ok := files[path]
	if !ok {
		return nil, fmt.Errorf("path %s does not exist at %s", path, ref)
	}
	return content, nil
}

func (f *fakeGit) DiffFile(ctx context.Context, repoDir, branch, path string) (string, error) {
	return f.diffs[path], nil
}

// newTestRegistry builds an initialized registry in a temp root with one
// installed plugin and returns the registry and the plugin's tree path.
func newTestRegistry(t *testing.T, kind plugindomain.SourceKind) (*registry.Service, string) {
	t.Helper()
	root := t.TempDir()
	pluginDir := filepath.Join(root, "demo-plugin")
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	descriptor := "id: demo-plugin\nname: Demo Plugin\nversion: 1.0.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugindomain.DescriptorFileName), []byte(descriptor), 0644))

	file := plugindomain.RegistryFile{
		SchemaVersion: plugindomain.RegistrySchemaVersion,
		Plugins: []plugindomain.Entry{{
			ID:         "demo-plugin",
			Name:       "Demo Plugin",
			Version:    "1.0.0",
			SourceKind: kind,
			Source:     "git@github.com:acme/demo-plugin.git",
			Path:       pluginDir,
		}},
	}
	require.NoError(t, fsutil.WriteJSONAtomic(filepath.Join(root, registry.RegistryFileName), file))

	reg := registry.NewService(root, hclog.NewNullLogger())
	require.NoError(t, reg.Initialize(context.Background()))
	return reg, pluginDir
}

func TestCheckForUpdates_UnknownPlugin(t *testing.T) {
	reg, _ := newTestRegistry(t, plugindomain.SourceRemote)
	engine := NewEngine(reg, &fakeGit{}, hclog.NewNullLogger())

	report, err := engine.CheckForUpdates(context.Background(), "no-such-plugin", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, plugindomain.ErrPluginNotFound)
	assert.Equal(t, updatedomain.StateFailed, report.State)
}

func TestCheckForUpdates_LocalSourceNotEligible(t *testing.T) {
	reg, _ := newTestRegistry(t, plugindomain.SourceLocal)
	engine := NewEngine(reg, &fakeGit{}, hclog.NewNullLogger())

	report, err := engine.CheckForUpdates(context.Background(), "demo-plugin", "")

	require.NoError(t, err)
	assert.Equal(t, updatedomain.StateNotEligible, report.State)
	assert.False(t, report.HasUpdate)
	assert.Contains(t, report.Error, "local source")
}

func TestCheckForUpdates_FetchFailureIsReported(t *testing.T) {
	reg, _ := newTestRegistry(t, plugindomain.SourceRemote)
	git := &fakeGit{fetchErr: fmt.Errorf("could not resolve host")}
	engine := NewEngine(reg, git, hclog.NewNullLogger())

	report, err := engine.CheckForUpdates(context.Background(), "demo-plugin", "")

	require.NoError(t, err)
	assert.Equal(t, updatedomain.StateFailed, report.State)
	assert.Contains(t, report.Error, "could not resolve host")
	assert.False(t, report.HasUpdate)
}

func TestCheckForUpdates_NoChanges(t *testing.T) {
	reg, _ := newTestRegistry(t, plugindomain.SourceRemote)
	engine := NewEngine(reg, &fakeGit{}, hclog.NewNullLogger())

	report, err := engine.CheckForUpdates(context.Background(), "demo-plugin", "")

	require.NoError(t, err)
	assert.Equal(t, updatedomain.StateNoChanges, report.State)
	assert.False(t, report.HasUpdate)
	assert.Empty(t, report.Categories)
	assert.Zero(t, report.Summary.TotalFiles)
}

func TestCheckForUpdates_CategorizedReport(t *testing.T) {
	reg, pluginDir := newTestRegistry(t, plugindomain.SourceRemote)
	git := &fakeGit{
		changes: []ports.NameStatus{
			{Path: "skills/review/SKILL.md", Status: "A"},
			{Path: "skills/testing/SKILL.md", Status: "M"},
			{Path: "README.md", Status: "M"},
			{Path: "docs/new-guide.md", Status: "R", PriorPath: "docs/guide.md"},
			{Path: "patterns/legacy.md", Status: "D"},
		},
		headFiles: map[string][]byte{
			"skills/testing/SKILL.md": []byte("old testing skill"),
			"README.md":               []byte("readme v1"),
		},
		upstreamFiles: map[string][]byte{
			plugindomain.DescriptorFileName: []byte("id: demo-plugin\nversion: 2.0.0\n"),
		},
		diffs: map[string]string{
			"README.md": "--- a/README.md\n+++ b/README.md\n",
		},
	}
	engine := NewEngine(reg, git, hclog.NewNullLogger())

	// On-disk copies match HEAD, so nothing conflicts.
	writeTree(t, pluginDir, map[string]string{
		"skills/testing/SKILL.md": "old testing skill",
		"README.md":               "readme v1",
	})

	report, err := engine.CheckForUpdates(context.Background(), "demo-plugin", "")

	require.NoError(t, err)
	assert.Equal(t, updatedomain.StateCategorized, report.State)
	assert.True(t, report.HasUpdate)
	assert.Equal(t, "1.0.0", report.CurrentVersion)
	assert.Equal(t, "2.0.0", report.LatestVersion)

	assert.Equal(t, 5, report.Summary.TotalFiles)
	assert.Equal(t, 1, report.Summary.AddedFiles)
	assert.Equal(t, 3, report.Summary.ModifiedFiles) // rename counts as modified
	assert.Equal(t, 1, report.Summary.DeletedFiles)
	assert.Equal(t, 0, report.Summary.ConflictFiles)

	byID := map[string]updatedomain.Category{}
	for _, c := range report.Categories {
		byID[c.ID] = c
	}
	require.Contains(t, byID, "skills")
	assert.Len(t, byID["skills"].Files, 2)
	require.Contains(t, byID, "documentation")
	assert.Len(t, byID["documentation"].Files, 2)
	require.Contains(t, byID, "patterns")
	assert.Len(t, byID["patterns"].Files, 1)

	for _, f := range byID["documentation"].Files {
		if f.Path == "docs/new-guide.md" {
			assert.Equal(t, updatedomain.ChangeRenamed, f.Kind)
			assert.Equal(t, "docs/guide.md", f.PriorPath)
		}
		if f.Path == "README.md" {
			assert.NotEmpty(t, f.Diff)
		}
	}
}

func TestCheckForUpdates_ConflictDetection(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		dirty        bool
		headContent  string
		localContent string // empty means the file is absent locally
		wantConflict bool
	}{
		{
			name:         "DirtyWorkingTree",
			status:       "M",
			dirty:        true,
			headContent:  "same",
			localContent: "same",
			wantConflict: true,
		},
		{
			name:         "LocalEditDivergesFromHead",
			status:       "M",
			headContent:  "committed content",
			localContent: "hand-edited content",
			wantConflict: true,
		},
		{
			name:         "CleanMatchingCopy",
			status:       "M",
			headContent:  "committed content",
			localContent: "committed content",
			wantConflict: false,
		},
		{
			name:         "LocallyAbsentFile",
			status:       "A",
			wantConflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, pluginDir := newTestRegistry(t, plugindomain.SourceRemote)
			const rel = "skills/review/SKILL.md"
			git := &fakeGit{
				changes:   []ports.NameStatus{{Path: rel, Status: tt.status}},
				dirty:     map[string]bool{rel: tt.dirty},
				headFiles: map[string][]byte{},
			}
			if tt.headContent != "" {
				git.headFiles[rel] = []byte(tt.headContent)
			}
			if tt.localContent != "" {
				writeTree(t, pluginDir, map[string]string{rel: tt.localContent})
			}
			engine := NewEngine(reg, git, hclog.NewNullLogger())

			report, err := engine.CheckForUpdates(context.Background(), "demo-plugin", "")

			require.NoError(t, err)
			files := report.AllFiles()
			require.Len(t, files, 1)
			assert.Equal(t, tt.wantConflict, files[0].HasConflict)
			assert.Equal(t, tt.wantConflict, report.Summary.ConflictFiles == 1)
		})
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}
