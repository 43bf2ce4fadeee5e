package plugindomain

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DescriptorFileName is the manifest every plugin carries at its tree root.
const DescriptorFileName = "plugin.yaml"

// LoadDescriptor reads and validates the manifest inside a plugin tree.
func LoadDescriptor(pluginDir string) (*Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(pluginDir, DescriptorFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrInvalidDescriptor, DescriptorFileName, pluginDir)
		}
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor decodes manifest bytes into a validated Descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	return &d, nil
}
