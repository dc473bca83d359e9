package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesChannelToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "surveyadmin.log")
	l, err := New(Config{Path: path, Level: slog.LevelDebug})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Trash().Info("restore done", "id", "s1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := string(b)
	if !strings.Contains(got, "channel=trash") || !strings.Contains(got, "id=s1") {
		t.Fatalf("unexpected log output: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"nope":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestDiscard_NilSafe(t *testing.T) {
	t.Parallel()

	var l *Logger
	l.Channel(ChannelAPI).Info("dropped")
	if err := l.Close(); err != nil {
		t.Fatalf("Close on nil logger: %v", err)
	}
	Discard().Auth().Info("dropped")
}
