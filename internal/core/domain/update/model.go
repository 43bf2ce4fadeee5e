package updatedomain

// ChangeKind classifies how a file differs from the last synchronized state.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// File is one changed path in an update check. It is a transient comparison
// result, created fresh on every check and never persisted.
type File struct {
	Path        string     `json:"path"`
	Kind        ChangeKind `json:"kind"`
	HasConflict bool       `json:"hasConflict"`
	Diff        string     `json:"diff,omitempty"`
	PriorPath   string     `json:"priorPath,omitempty"`
}

// Category groups changed files for selective application. Categories from
// one check are mutually exclusive and exhaustive over its file set.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Files       []File `json:"files"`
}

// ConflictCount is derived from the contained files.
func (c Category) ConflictCount() int {
	n := 0
	for _, f := range c.Files {
		if f.HasConflict {
			n++
		}
	}
	return n
}

// Summary carries aggregate counts over one update check. Renamed files
// count as modified.
type Summary struct {
	TotalFiles    int `json:"totalFiles"`
	AddedFiles    int `json:"addedFiles"`
	ModifiedFiles int `json:"modifiedFiles"`
	DeletedFiles  int `json:"deletedFiles"`
	ConflictFiles int `json:"conflictFiles"`
}

// CheckState tracks where an update check terminated.
type CheckState string

const (
	StateNotEligible      CheckState = "not-eligible"
	StateFetching         CheckState = "fetching"
	StateNoChanges        CheckState = "no-changes"
	StateChangesFound     CheckState = "changes-found"
	StateConflictScanning CheckState = "conflict-scanning"
	StateCategorized      CheckState = "categorized"
	StateFailed           CheckState = "failed"
)

// Report is the full outcome of one update check.
type Report struct {
	State          CheckState `json:"state"`
	HasUpdate      bool       `json:"hasUpdate"`
	CurrentVersion string     `json:"currentVersion"`
	LatestVersion  string     `json:"latestVersion,omitempty"`
	Categories     []Category `json:"categories"`
	Summary        Summary    `json:"summary"`
	Error          string     `json:"error,omitempty"`
}

// AllFiles flattens the categorized files back into one list.
func (r Report) AllFiles() []File {
	var out []File
	for _, c := range r.Categories {
		out = append(out, c.Files...)
	}
	return out
}

// Summarize recomputes the aggregate counts for a set of changed files.
func Summarize(files []File) Summary {
	s := Summary{TotalFiles: len(files)}
	for _, f := range files {
		switch f.Kind {
		case ChangeAdded:
			s.AddedFiles++
		case ChangeDeleted:
			s.DeletedFiles++
		default:
			s.ModifiedFiles++
		}
		if f.HasConflict {
			s.ConflictFiles++
		}
	}
	return s
}
