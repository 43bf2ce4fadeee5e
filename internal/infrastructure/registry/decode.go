package registry

import (
	"encoding/json"
	"fmt"

	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
)

// decodeRegistryFile parses persisted registry bytes. Structural problems
// (not an object, missing or non-array plugin list) are reported the same
// way as unparsable JSON so every malformed-schema case takes the uniform
// corrupt-registry fallback.
func decodeRegistryFile(data []byte) (*plugindomain.RegistryFile, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("registry file is not valid JSON: %w", err)
	}
	rawPlugins, ok := probe["plugins"]
	if !ok {
		return nil, fmt.Errorf("registry file is missing the plugin list")
	}
	var plugins []plugindomain.Entry
	if err := json.Unmarshal(rawPlugins, &plugins); err != nil {
		return nil, fmt.Errorf("registry plugin list is malformed: %w", err)
	}
	var file plugindomain.RegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry file is malformed: %w", err)
	}
	file.Plugins = plugins
	return &file, nil
}
