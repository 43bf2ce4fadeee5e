package plugindomain

import (
	"errors"
	"fmt"
	"time"
)

// SourceKind describes where a plugin's content came from.
type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
)

// LinkMode controls how a local install places content under the plugin root.
// Uninstall must branch on this: a symlinked install is unlinked, never
// recursively deleted through the link target.
type LinkMode string

const (
	LinkModeCopy    LinkMode = "copy"
	LinkModeSymlink LinkMode = "symlink"
)

// Entry is the installation record for one plugin. It is owned exclusively
// by the registry and changes only on install, update, or uninstall.
type Entry struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	SourceKind  SourceKind `json:"sourceKind"`
	Source      string     `json:"source"`
	Path        string     `json:"path"`
	LinkMode    LinkMode   `json:"linkMode,omitempty"`
	InstalledAt time.Time  `json:"installedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsRemote reports whether the plugin can be checked for upstream updates.
func (e Entry) IsRemote() bool {
	return e.SourceKind == SourceRemote
}

// ContentGroup is a named sub-collection of items a plugin declares about itself.
type ContentGroup struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Items       []string `yaml:"items,omitempty"`
}

// Descriptor is the plugin's self-description, read from the manifest file
// inside the plugin's own tree. It shares an identifier with the registry
// Entry but has an independent lifecycle: the descriptor changes between
// versions, the entry does not.
type Descriptor struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description,omitempty"`
	Groups      []ContentGroup `yaml:"groups,omitempty"`
}

// Validate checks the fields a descriptor must carry to be installable.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDescriptor)
	}
	if d.Version == "" {
		return fmt.Errorf("%w: missing version for %q", ErrInvalidDescriptor, d.ID)
	}
	return nil
}

// RegistrySchemaVersion tags the persisted registry file format.
const RegistrySchemaVersion = 1

// RegistryFile is the persisted shape of the registry.
type RegistryFile struct {
	SchemaVersion int       `json:"schemaVersion"`
	Plugins       []Entry   `json:"plugins"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var (
	ErrPluginNotFound    = errors.New("plugin not found")
	ErrAlreadyInstalled  = errors.New("plugin already installed")
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")
	ErrSourceMissing     = errors.New("source path does not exist")
)
