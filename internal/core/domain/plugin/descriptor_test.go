package plugindomain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantErr  bool
		wantID   string
		wantName string
	}{
		{
			name:     "FullDescriptor",
			yaml:     "id: helper\nname: Helper Pack\nversion: 1.2.0\ndescription: does things\n",
			wantID:   "helper",
			wantName: "Helper Pack",
		},
		{
			name:     "NameDefaultsToID",
			yaml:     "id: helper\nversion: 1.0.0\n",
			wantID:   "helper",
			wantName: "helper",
		},
		{
			name:    "MissingID",
			yaml:    "name: anonymous\nversion: 1.0.0\n",
			wantErr: true,
		},
		{
			name:    "MissingVersion",
			yaml:    "id: unversioned\n",
			wantErr: true,
		},
		{
			name:    "NotYAML",
			yaml:    "{{{",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDescriptor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, d.ID)
			assert.Equal(t, tt.wantName, d.Name)
		})
	}
}

func TestParseDescriptor_ContentGroups(t *testing.T) {
	manifest := `id: grouped
version: 1.0.0
groups:
  - name: skills
    description: reviewer skills
    items:
      - skills/review/SKILL.md
  - name: patterns
`
	d, err := ParseDescriptor([]byte(manifest))
	require.NoError(t, err)
	require.Len(t, d.Groups, 2)
	assert.Equal(t, "skills", d.Groups[0].Name)
	assert.Equal(t, []string{"skills/review/SKILL.md"}, d.Groups[0].Items)
	assert.Empty(t, d.Groups[1].Items)
}

func TestLoadDescriptor(t *testing.T) {
	t.Run("ReadsManifestFromTree", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte("id: ondisk\nversion: 0.1.0\n"), 0644))

		d, err := LoadDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, "ondisk", d.ID)
	})

	t.Run("MissingManifest", func(t *testing.T) {
		_, err := LoadDescriptor(t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDescriptor)
	})
}
