package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Local is the directory-scoped pointer written by `forge init`.
type Local struct {
	Version   string `json:"version"`
	ProjectID string `json:"project_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	ServerURL string `json:"server_url,omitempty"`
}

// LoadLocal reads .forge/config.json from the specified directory.
// Resolution order: cwd only (no home fallback).
func LoadLocal(dir string) (*Local, error) {
	path := filepath.Join(dir, ".forge", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Local
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// SaveLocal writes .forge/config.json to dir.
func SaveLocal(dir string, cfg *Local) error {
	forgeDir := filepath.Join(dir, ".forge")
	if err := os.MkdirAll(forgeDir, 0755); err != nil {
		return fmt.Errorf("failed to create .forge dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(forgeDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
