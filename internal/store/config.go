package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const configFileName = "config.json"

// Config is the persisted client configuration. Environment variables and
// flags take precedence over these values.
type Config struct {
	// APIURL is the base URL of the survey backend (e.g. "http://localhost:8000").
	APIURL string `json:"apiUrl,omitempty"`

	// Storage selects the session storage backend (sqlite|file|memory).
	Storage Backend `json:"storage,omitempty"`

	// LogLevel is one of debug|info|warn|error.
	LogLevel string `json:"logLevel,omitempty"`
}

func (s Store) ConfigPath() string {
	return filepath.Join(s.Dir, configFileName)
}

func (s Store) LoadConfig() (*Config, error) {
	b, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func (s Store) SaveConfig(cfg *Config) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// Unique temp names keep a CLI and a running TUI from clobbering each other.
	return atomicWriteFile(s.Dir, "config.json.*.tmp", s.ConfigPath(), b, 0o600)
}
