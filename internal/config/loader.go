package config

import (
	"fmt"
	"os"
	"path/filepath"

	"comicloader/internal/core/types"

	"github.com/goccy/go-yaml"
)

// SaveConfig writes cfg as YAML, creating parent directories.
func SaveConfig(configFile string, cfg *types.Config) error {
	if configFile == "" {
		return fmt.Errorf("config file path is empty")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFile, err)
	}
	return nil
}

// Marshal renders cfg as YAML with 2-space indentation.
func Marshal(cfg *types.Config) ([]byte, error) {
	data, err := yaml.MarshalWithOptions(cfg, yaml.Indent(2))
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML config: %w", err)
	}
	return data, nil
}

// LoadConfigOrCreate loads configFile, or writes the defaults there if it
// does not exist yet.
func LoadConfigOrCreate(configFile string) (*types.Config, error) {
	if fileExists(configFile) {
		return LoadConfig(configFile)
	}
	cfg, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	return cfg, SaveConfig(configFile, cfg)
}
