package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScript(t *testing.T) {
	path := writeScript(t, `
backend = "native"
abort = true
steps = [
  "alloc 64 8",
  "realloc $0 64 256 8",
]
`)

	cfg, err := loadScript(path, defaultConfig())
	if err != nil {
		t.Fatalf("loadScript: %v", err)
	}
	if cfg.Backend != backendNative {
		t.Errorf("backend: got %q", cfg.Backend)
	}
	if !cfg.Abort {
		t.Error("abort not set")
	}
	if cfg.Size != defaultConfig().Size {
		t.Errorf("undefined size should keep default, got %d", cfg.Size)
	}
	if len(cfg.Steps) != 2 || cfg.Steps[1] != "realloc $0 64 256 8" {
		t.Errorf("steps: %q", cfg.Steps)
	}
}

func TestLoadScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "backend = ", "load script"},
		{"unknown_key", "backend = \"arena\"\nheap_size = 4", "unknown key"},
		{"wrong_type", "size = \"big\"", "load script"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadScript(writeScript(t, tc.body), defaultConfig())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	if _, err := loadScript(filepath.Join(t.TempDir(), "missing.toml"), defaultConfig()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config
		wantErr bool
	}{
		{"default", defaultConfig(), false},
		{"native", config{Backend: backendNative}, false},
		{"arena_zero_size", config{Backend: backendArena}, true},
		{"guest_without_wasm", config{Backend: backendGuest}, true},
		{"guest", config{Backend: backendGuest, Wasm: "mod.wasm"}, false},
		{"unknown", config{Backend: "slab"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateConfig: got %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
