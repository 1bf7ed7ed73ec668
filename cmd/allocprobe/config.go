package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	backendNative = "native"
	backendArena  = "arena"
	backendGuest  = "guest"
)

type config struct {
	Backend string
	Wasm    string
	Size    uint32
	Abort   bool
	Verbose bool
	Steps   []string
}

func defaultConfig() config {
	return config{
		Backend: backendArena,
		Size:    64 * 1024,
	}
}

type scriptFile struct {
	Backend string   `toml:"backend"`
	Wasm    string   `toml:"wasm"`
	Size    uint32   `toml:"size"`
	Abort   bool     `toml:"abort"`
	Steps   []string `toml:"steps"`
}

// loadScript overlays the keys defined in the TOML file at path onto cfg.
func loadScript(path string, cfg config) (config, error) {
	var raw scriptFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load script: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load script: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("backend") {
		cfg.Backend = strings.TrimSpace(raw.Backend)
	}
	if meta.IsDefined("wasm") {
		cfg.Wasm = strings.TrimSpace(raw.Wasm)
	}
	if meta.IsDefined("size") {
		cfg.Size = raw.Size
	}
	if meta.IsDefined("abort") {
		cfg.Abort = raw.Abort
	}
	if meta.IsDefined("steps") {
		cfg.Steps = raw.Steps
	}
	return cfg, nil
}

func validateConfig(cfg config) error {
	switch cfg.Backend {
	case backendNative:
	case backendArena:
		if cfg.Size == 0 {
			return fmt.Errorf("arena backend needs a non-zero size")
		}
	case backendGuest:
		if cfg.Wasm == "" {
			return fmt.Errorf("guest backend needs -wasm")
		}
	default:
		return fmt.Errorf("unknown backend %q (want native, arena or guest)", cfg.Backend)
	}
	return nil
}
