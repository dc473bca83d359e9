// Package config resolves runtime settings from the environment, optional
// .env files and the persisted config.json.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"survey-admin/internal/store"
)

const (
	EnvDir          = "SURVEYADMIN_DIR"
	EnvAPIURL       = "SURVEYADMIN_API_URL"
	EnvHTTPTimeout  = "SURVEYADMIN_HTTP_TIMEOUT"
	EnvLogLevel     = "SURVEYADMIN_LOG_LEVEL"
	EnvStorage      = "SURVEYADMIN_STORAGE"
	EnvRefetchDelay = "SURVEYADMIN_REFETCH_DELAY"

	DefaultAPIURL       = "http://localhost:8000"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRefetchDelay = 500 * time.Millisecond
)

// LoadDotEnv loads .env files into the process environment. Variables
// already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Settings is the resolved client configuration.
type Settings struct {
	Dir          string
	APIURL       string
	Storage      store.Backend
	LogLevel     string
	HTTPTimeout  time.Duration
	RefetchDelay time.Duration
}

// Resolve layers the environment over config.json in dir. Empty flag
// values fall through to those layers.
func Resolve(dir, apiURL, storage string) (Settings, error) {
	s := Settings{
		Dir:          dir,
		HTTPTimeout:  Duration(EnvHTTPTimeout, DefaultHTTPTimeout),
		RefetchDelay: Duration(EnvRefetchDelay, DefaultRefetchDelay),
		LogLevel:     Getenv(EnvLogLevel, ""),
	}
	if strings.TrimSpace(s.Dir) == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return Settings{}, err
		}
		s.Dir = d
	}
	cfg, err := store.Store{Dir: s.Dir}.LoadConfig()
	if err != nil {
		return Settings{}, err
	}

	s.APIURL = firstNonEmpty(apiURL, os.Getenv(EnvAPIURL), cfg.APIURL, DefaultAPIURL)
	backend, err := store.ParseBackend(firstNonEmpty(storage, os.Getenv(EnvStorage), string(cfg.Storage)))
	if err != nil {
		return Settings{}, err
	}
	s.Storage = backend
	if s.LogLevel == "" {
		s.LogLevel = firstNonEmpty(cfg.LogLevel, "info")
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
