package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
)

func TestCategorize_RuleTable(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantRule string
	}{
		{name: "SkillFile", path: "skills/refactoring/SKILL.md", wantRule: "skills"},
		{name: "NestedSkillsDir", path: "bundle/skills/x/notes.txt", wantRule: "skills"},
		{name: "PatternFile", path: "patterns/singleton.md", wantRule: "patterns"},
		{name: "ConventionFile", path: "conventions/naming.md", wantRule: "conventions"},
		{name: "ManifestYAML", path: "plugin.yaml", wantRule: "configuration"},
		{name: "TOMLConfig", path: "settings.toml", wantRule: "configuration"},
		{name: "Dotfile", path: ".editorconfig", wantRule: "configuration"},
		{name: "Readme", path: "README.md", wantRule: "documentation"},
		{name: "DocsDir", path: "docs/guide.txt", wantRule: "documentation"},
		{name: "UnknownBinary", path: "assets/logo.png", wantRule: "other"},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cats := Categorize(rules, []updatedomain.File{{Path: tt.path}})
			require.Len(t, cats, 1)
			assert.Equal(t, tt.wantRule, cats[0].ID)
		})
	}
}

// Skills paths also end in .md; the skills rule must win because it comes
// first in the table.
func TestCategorize_FirstMatchWins(t *testing.T) {
	cats := Categorize(DefaultRules(), []updatedomain.File{{Path: "skills/writing/SKILL.md"}})
	require.Len(t, cats, 1)
	assert.Equal(t, "skills", cats[0].ID)
}

func TestCategorize_OmitsEmptyCategories(t *testing.T) {
	files := []updatedomain.File{
		{Path: "skills/a/SKILL.md"},
		{Path: "skills/b/SKILL.md"},
		{Path: "README.md"},
	}
	cats := Categorize(DefaultRules(), files)

	require.Len(t, cats, 2)
	assert.Equal(t, "skills", cats[0].ID)
	assert.Len(t, cats[0].Files, 2)
	assert.Equal(t, "documentation", cats[1].ID)
	assert.Len(t, cats[1].Files, 1)
}

// TestCategorize_PartitionProperty checks that for any set of changed
// paths, every file lands in exactly one category and per-category
// conflict counts match the contained conflict flags.
func TestCategorize_PartitionProperty(t *testing.T) {
	rules := DefaultRules()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		files := make([]updatedomain.File, 0, n)
		conflicts := 0
		for i := 0; i < n; i++ {
			f := updatedomain.File{
				Path:        rapid.StringMatching(`[a-z]{1,8}(/[a-z.]{1,10}){0,3}`).Draw(t, "path"),
				HasConflict: rapid.Bool().Draw(t, "conflict"),
			}
			if f.HasConflict {
				conflicts++
			}
			files = append(files, f)
		}

		cats := Categorize(rules, files)

		total := 0
		conflictTotal := 0
		for _, c := range cats {
			if len(c.Files) == 0 {
				t.Fatalf("category %s is empty but present", c.ID)
			}
			total += len(c.Files)
			conflictTotal += c.ConflictCount()
		}
		if total != len(files) {
			t.Fatalf("partition lost or duplicated files: %d in, %d out", len(files), total)
		}
		if conflictTotal != conflicts {
			t.Fatalf("conflict counts diverged: %d in, %d out", conflicts, conflictTotal)
		}
	})
}
