package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sightline-labs/sightflow/core"
)

// nodeFile is the on-disk shape of a node entry. Enabled is a pointer
// so an absent field defaults to true.
type nodeFile struct {
	Enabled     *bool       `json:"enabled"`
	Focus       bool        `json:"focus"`
	Recognition core.Params `json:"recognition"`
	Action      core.Params `json:"action"`
}

// Load reads a pipeline definition from path. YAML files (.yaml/.yml)
// are converted to JSON first; everything else parses as JSON.
func Load(path string) (core.Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a pipeline definition from raw bytes. The path is used
// only to pick the parse format.
func Parse(data []byte, path string) (core.Definition, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	var nodes map[string]nodeFile
	if err := json.Unmarshal(jsonData, &nodes); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}

	def := make(core.Definition, len(nodes))
	for name, n := range nodes {
		enabled := true
		if n.Enabled != nil {
			enabled = *n.Enabled
		}
		def[name] = core.NodeConfig{
			Name:        name,
			Enabled:     enabled,
			Focus:       n.Focus,
			Recognition: n.Recognition,
			Action:      n.Action,
		}
	}
	return def, nil
}

// toJSON converts data to JSON bytes, handling YAML conversion if the
// path indicates a YAML file.
func toJSON(data []byte, path string) ([]byte, error) {
	if isYAML(path) {
		return yamlToJSON(data)
	}
	return data, nil
}

// isYAML returns true if the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON converts raw bytes from YAML format to JSON bytes.
// YAML -> map[string]any -> JSON bytes -> typed struct.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// yaml.v3 uses map[string]any by default, which is JSON-compatible
	return json.Marshal(raw)
}
