// Package logging provides channeled slog loggers for the admin client.
//
// The TUI owns the terminal, so log output always goes to a file (or is
// discarded); nothing is written to stdout.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Channel names a logical area of the client.
type Channel string

const (
	ChannelSystem Channel = "system"
	ChannelAuth   Channel = "auth"
	ChannelAlert  Channel = "alert"
	ChannelTrash  Channel = "trash"
	ChannelAPI    Channel = "api"
	ChannelTUI    Channel = "tui"
	ChannelMock   Channel = "mock-api"
)

type Config struct {
	// Path is the log file. Empty discards all output.
	Path  string
	Level slog.Level
	JSON  bool
}

// ParseLevel maps debug|info|warn|error to a slog level (default info).
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger hands out per-channel loggers sharing one handler.
type Logger struct {
	base   *slog.Logger
	closer io.Closer

	mu       sync.Mutex
	channels map[Channel]*slog.Logger
}

func New(cfg Config) (*Logger, error) {
	var w io.Writer = io.Discard
	var closer io.Closer
	if p := strings.TrimSpace(cfg.Path); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", p, err)
		}
		w = f
		closer = f
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{
		base:     slog.New(h),
		closer:   closer,
		channels: map[Channel]*slog.Logger{},
	}, nil
}

// Discard returns a logger that drops everything (tests, --quiet).
func Discard() *Logger {
	l, _ := New(Config{})
	return l
}

func (l *Logger) Channel(c Channel) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lg, ok := l.channels[c]; ok {
		return lg
	}
	lg := l.base.With(slog.String("channel", string(c)))
	l.channels[c] = lg
	return lg
}

func (l *Logger) System() *slog.Logger { return l.Channel(ChannelSystem) }
func (l *Logger) Auth() *slog.Logger   { return l.Channel(ChannelAuth) }
func (l *Logger) Alert() *slog.Logger  { return l.Channel(ChannelAlert) }
func (l *Logger) Trash() *slog.Logger  { return l.Channel(ChannelTrash) }
func (l *Logger) API() *slog.Logger    { return l.Channel(ChannelAPI) }
func (l *Logger) TUI() *slog.Logger    { return l.Channel(ChannelTUI) }
func (l *Logger) Mock() *slog.Logger   { return l.Channel(ChannelMock) }

func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
