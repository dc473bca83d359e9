package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openAll(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()
	s := Store{Dir: t.TempDir()}

	sq, err := s.OpenKV(ctx, BackendSQLite)
	if err != nil {
		t.Fatalf("OpenKV sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	fk, err := s.OpenKV(ctx, BackendFile)
	if err != nil {
		t.Fatalf("OpenKV file: %v", err)
	}
	mk, err := s.OpenKV(ctx, BackendMemory)
	if err != nil {
		t.Fatalf("OpenKV memory: %v", err)
	}
	return map[string]KV{"sqlite": sq, "file": fk, "memory": mk}
}

func TestKV_SetGetRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, kv := range openAll(t) {
		kv := kv
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "access_token"); err != nil || ok {
				t.Fatalf("expected missing key; ok=%v err=%v", ok, err)
			}
			if err := kv.Set(ctx, "access_token", "abc"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set(ctx, "token_type", "Bearer"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set(ctx, "access_token", "def"); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := kv.Get(ctx, "access_token")
			if err != nil || !ok || v != "def" {
				t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
			}
			if err := kv.Remove(ctx, "access_token", "token_type", "never_set"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			for _, k := range []string{"access_token", "token_type"} {
				if _, ok, _ := kv.Get(ctx, k); ok {
					t.Fatalf("expected %s removed", k)
				}
			}
		})
	}
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.sqlite")
	kv, err := OpenSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLiteKV: %v", err)
	}
	if err := kv.Set(ctx, "user", `{"id":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = kv.Close()

	kv2, err := OpenSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv2.Close()
	v, ok, err := kv2.Get(ctx, "user")
	if err != nil || !ok || v != `{"id":1}` {
		t.Fatalf("Get after reopen: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestFileKV_CorruptedFileReadsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	kv := NewFileKV(path)
	if _, ok, err := kv.Get(ctx, "access_token"); err != nil || ok {
		t.Fatalf("expected empty read; ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "access_token", "x"); err != nil {
		t.Fatalf("Set over corrupted file: %v", err)
	}
	if v, ok, _ := kv.Get(ctx, "access_token"); !ok || v != "x" {
		t.Fatalf("expected recovered write, got %q", v)
	}
}

func TestParseBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "", want: BackendSQLite},
		{in: "SQLite", want: BackendSQLite},
		{in: " file ", want: BackendFile},
		{in: "memory", want: BackendMemory},
		{in: "redis", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseBackend(%q) err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseBackend(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Parallel()

	s := Store{Dir: t.TempDir()}
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig missing: %v", err)
	}
	if cfg.APIURL != "" || cfg.Storage != "" {
		t.Fatalf("expected zero config, got %#v", cfg)
	}
	want := &Config{APIURL: "http://localhost:8000", Storage: BackendFile, LogLevel: "debug"}
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *got != *want {
		t.Fatalf("config mismatch: got %#v want %#v", got, want)
	}
}

func TestTUIState_SaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := Store{Dir: t.TempDir()}
	st0, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st0.Version != 1 || st0.Tab != "" {
		t.Fatalf("expected default state, got %#v", st0)
	}
	if err := s.SaveTUIState(&TUIState{Tab: "archive", SelectedID: "s2"}); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}
	got, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if got.Version != 1 || got.Tab != "archive" || got.SelectedID != "s2" {
		t.Fatalf("roundtrip mismatch: %#v", got)
	}

	if err := os.WriteFile(filepath.Join(s.Dir, tuiStateFileName), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = s.LoadTUIState()
	if err != nil || got.Tab != "" {
		t.Fatalf("corrupted state should read as default; got=%#v err=%v", got, err)
	}
}
