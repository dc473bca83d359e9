package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KV is the durable key/value storage the session lives in. Values are
// strings, like browser local storage.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendSQLite:
		return BackendSQLite, nil
	case BackendFile:
		return BackendFile, nil
	case BackendMemory:
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("unknown storage backend: %s", s)
	}
}

// Store is the local state directory (session storage, config, logs).
type Store struct {
	Dir string
}

// DefaultDir is ~/.surveyadmin unless SURVEYADMIN_DIR is set.
func DefaultDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("SURVEYADMIN_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".surveyadmin"), nil
}

func (s Store) Ensure() error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("store: missing dir")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) LogPath() string {
	return filepath.Join(s.Dir, "surveyadmin.log")
}

// OpenKV opens the session storage for the chosen backend.
func (s Store) OpenKV(ctx context.Context, b Backend) (KV, error) {
	switch b {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendFile:
		if err := s.Ensure(); err != nil {
			return nil, err
		}
		return NewFileKV(filepath.Join(s.Dir, sessionFileName)), nil
	case BackendSQLite, "":
		if err := s.Ensure(); err != nil {
			return nil, err
		}
		return OpenSQLiteKV(ctx, filepath.Join(s.Dir, sqliteFileName))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", b)
	}
}
