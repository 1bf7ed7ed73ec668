package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"golang.org/x/term"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/arena"
	"github.com/wippyai/wasm-alloc/errors"
	"github.com/wippyai/wasm-alloc/guest"
	"github.com/wippyai/wasm-alloc/native"
)

func main() {
	var (
		backendName = flag.String("backend", backendArena, "Allocator backend: native, arena or guest")
		wasmFile    = flag.String("wasm", "", "Core wasm module exporting cabi_realloc (guest backend)")
		size        = flag.Uint("size", 64*1024, "Arena size in bytes")
		abort       = flag.Bool("abort", false, "Wrap the backend so exhaustion aborts the process")
		script      = flag.String("script", "", "TOML script with settings and steps")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log allocator events to stderr")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *script != "" {
		var err error
		if cfg, err = loadScript(*script, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	// explicit flags win over the script
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendName
		case "wasm":
			cfg.Wasm = *wasmFile
		case "size":
			cfg.Size, flagErr = arenaSize(*size)
		case "abort":
			cfg.Abort = *abort
		}
	})
	cfg.Steps = append(cfg.Steps, flag.Args()...)
	cfg.Verbose = *verbose

	if err := flagErr; err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Usage: allocprobe [-backend native|arena|guest] [-wasm file] [-size n] [-abort] [-script file.toml] [-i] [command ...]")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// arenaSize narrows the -size flag to the 32-bit address space of the arena.
func arenaSize(v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("size %d exceeds %d", v, uint64(math.MaxUint32)))
	}
	return uint32(v), nil
}

func run(cfg config, interactive bool) error {
	if cfg.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer logger.Sync()
		wasmalloc.SetLogger(logger)
		guest.SetLogger(logger)
	}

	ctx := context.Background()
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	p := newProbe(s)
	if err := p.run(os.Stdout, cfg.Steps); err != nil {
		return err
	}

	switch {
	case interactive && term.IsTerminal(int(os.Stdin.Fd())):
		return runInteractive(p, cfg)
	case interactive || len(cfg.Steps) == 0:
		return runLines(p, os.Stdin, os.Stdout)
	}
	return nil
}

func openSession(ctx context.Context, cfg config) (session, error) {
	switch cfg.Backend {
	case backendNative:
		heap := native.New()
		return newSession[uintptr](heap, cfg.Abort, heap.Close), nil

	case backendArena:
		a := arena.NewFixed(cfg.Size)
		return newSession[uint32](a, cfg.Abort, nil), nil

	case backendGuest:
		data, err := os.ReadFile(cfg.Wasm)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		rt := wazero.NewRuntime(ctx)
		closeRuntime := func() error { return rt.Close(ctx) }
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			closeRuntime()
			return nil, fmt.Errorf("wasi: %w", err)
		}
		mod, err := rt.InstantiateWithConfig(ctx, data, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
		if err != nil {
			closeRuntime()
			return nil, fmt.Errorf("instantiate: %w", err)
		}
		g, err := guest.New(ctx, mod)
		if err != nil {
			closeRuntime()
			return nil, err
		}
		return newSession[uint32](g, cfg.Abort, closeRuntime), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// runLines reads commands from r until EOF, reporting errors without
// stopping.
func runLines(p *probe, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out, err := p.exec(sc.Text())
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
	return sc.Err()
}
