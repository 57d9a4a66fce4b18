package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a pipeline document from path. JSON is the native format; files
// ending in .yaml/.yml are accepted too and normalized through a JSON
// round-trip so both formats decode through the exact same model (including
// the Options null handling).
func Load(path string) (Pipeline, error) {
	var p Pipeline

	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return p, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
		b, err = json.Marshal(normalizeYAML(doc))
		if err != nil {
			return p, fmt.Errorf("normalize yaml config %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// normalizeYAML rewrites yaml.v3's map[string]any/[]any trees so they marshal
// cleanly to JSON. yaml.v3 already uses string keys for mappings, but nested
// values may need the same treatment recursively.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
