package update

import (
	"path"
	"strings"

	updatedomain "github.com/plugsmith/plugsmith/internal/core/domain/update"
)

// CategoryRule is one entry of the ordered categorization table. The first
// matching rule wins; the final rule is a catch-all so the table is
// exhaustive over any path set.
type CategoryRule struct {
	ID          string
	Name        string
	Description string
	Match       func(relPath string) bool
}

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			ID:          "skills",
			Name:        "Skills",
			Description: "Skill definitions and their supporting files",
			Match:       underDir("skills"),
		},
		{
			ID:          "patterns",
			Name:        "Patterns",
			Description: "Reusable pattern files",
			Match:       underDir("patterns"),
		},
		{
			ID:          "conventions",
			Name:        "Conventions",
			Description: "Project convention files",
			Match:       underDir("conventions"),
		},
		{
			ID:          "configuration",
			Name:        "Configuration",
			Description: "Configuration and manifest files",
			Match: func(p string) bool {
				switch strings.ToLower(path.Ext(p)) {
				case ".json", ".yaml", ".yml", ".toml":
					return true
				}
				return strings.HasPrefix(path.Base(p), ".")
			},
		},
		{
			ID:          "documentation",
			Name:        "Documentation",
			Description: "Documentation and readme files",
			Match: func(p string) bool {
				if strings.ToLower(path.Ext(p)) == ".md" {
					return true
				}
				return underDir("docs")(p)
			},
		},
		{
			ID:          "other",
			Name:        "Other",
			Description: "Files outside the known groupings",
			Match:       func(string) bool { return true },
		},
	}
}

func underDir(name string) func(string) bool {
	return func(p string) bool {
		p = path.Clean(strings.ToLower(p))
		return strings.HasPrefix(p, name+"/") || strings.Contains(p, "/"+name+"/")
	}
}

// Categorize partitions changed files over the rule table, preserving file
// order inside each category and omitting categories with no matches.
func Categorize(rules []CategoryRule, files []updatedomain.File) []updatedomain.Category {
	buckets := make(map[string][]updatedomain.File, len(rules))
	for _, f := range files {
		for _, rule := range rules {
			if rule.Match(f.Path) {
				buckets[rule.ID] = append(buckets[rule.ID], f)
				break
			}
		}
	}
	var out []updatedomain.Category
	for _, rule := range rules {
		matched := buckets[rule.ID]
		if len(matched) == 0 {
			continue
		}
		out = append(out, updatedomain.Category{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Files:       matched,
		})
	}
	return out
}
