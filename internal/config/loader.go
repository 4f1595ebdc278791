package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Values holds raw settings read from a config file, keyed by flag name
// with underscores (max_input_tokens).
type Values map[string]any

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Values, error) {
	vals := Values{}
	if path == "" {
		return vals, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return vals, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &vals); err != nil {
			return vals, err
		}
	case ".json":
		if err := json.Unmarshal(b, &vals); err != nil {
			return vals, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &vals); err != nil {
			return vals, err
		}
	default:
		return vals, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return vals, nil
}
