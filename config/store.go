// Package config persists the engine's severity thresholds and rotation
// limit across resets, and can watch the persisted file for external edits.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"flashlog/log"
)

// fileConfig is the persisted shape: three scalar fields, human-editable.
type fileConfig struct {
	PrintLevel  string `yaml:"printLevel"`
	SaveLevel   string `yaml:"saveLevel"`
	MaxLogLines uint32 `yaml:"maxLogLines"`
}

// FileStore persists a log.Config as a small YAML file. Save writes a
// temporary file and renames it over the original, so a load never observes
// a torn write; that is the atomicity the engine relies on.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. The file and its
// parent directories are created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the persisted file.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted configuration. A missing or corrupt file is
// treated as first run: the defaults are written back immediately so
// subsequent reads are stable, and returned. Persisted levels are clamped,
// never surfaced as garbage.
func (s *FileStore) Load() (log.Config, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return s.writeBackDefaults()
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return s.writeBackDefaults()
	}

	cfg := log.Config{
		PrintLevel:  log.ParseLevel(fc.PrintLevel),
		SaveLevel:   log.ParseLevel(fc.SaveLevel),
		MaxLogLines: fc.MaxLogLines,
	}
	if fc.SaveLevel == "" {
		cfg.SaveLevel = log.DefaultConfig().SaveLevel
	}
	if fc.MaxLogLines == 0 {
		cfg.MaxLogLines = log.DefaultConfig().MaxLogLines
	}
	return cfg.Clamp(), nil
}

func (s *FileStore) writeBackDefaults() (log.Config, error) {
	def := log.DefaultConfig()
	if err := s.Save(def); err != nil {
		return def, fmt.Errorf("write back defaults: %w", err)
	}
	return def, nil
}

// Save persists all three fields. The write is atomic from the caller's
// perspective: marshal, write to a temporary sibling, rename into place.
func (s *FileStore) Save(cfg log.Config) error {
	cfg = cfg.Clamp()
	fc := fileConfig{
		PrintLevel:  cfg.PrintLevel.String(),
		SaveLevel:   cfg.SaveLevel.String(),
		MaxLogLines: cfg.MaxLogLines,
	}

	raw, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
