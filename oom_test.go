package wasmalloc_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/arena"
	"github.com/wippyai/wasm-alloc/internal/testalloc"
)

// exitCalled is panicked by the replaced exit function so tests can observe
// termination without leaving the process.
type exitCalled int

// catchAbort runs fn with exit and stderr replaced. It returns the exit code
// and whatever was written to stderr.
func catchAbort(t *testing.T, fn func()) (code int, report string) {
	t.Helper()
	var buf bytes.Buffer
	defer wasmalloc.SwapStderr(&buf)()
	defer wasmalloc.SwapExit(func(c int) { panic(exitCalled(c)) })()

	code = -1
	func() {
		defer func() {
			if r := recover(); r != nil {
				c, ok := r.(exitCalled)
				if !ok {
					panic(r)
				}
				code = int(c)
			}
		}()
		fn()
	}()
	return code, buf.String()
}

func TestHandleAllocErrorDefaultReport(t *testing.T) {
	code, report := catchAbort(t, func() {
		wasmalloc.HandleAllocError(wasmalloc.MustLayout(64, 8), errors.New("boom"))
	})
	if code != wasmalloc.AbortExitCode {
		t.Errorf("exit code: got %d, want %d", code, wasmalloc.AbortExitCode)
	}
	if report != "memory allocation of 64 bytes failed\n" {
		t.Errorf("report: got %q", report)
	}
}

func TestHandleAllocErrorPanicsWhenExitReturns(t *testing.T) {
	defer wasmalloc.SwapStderr(&bytes.Buffer{})()
	defer wasmalloc.SwapExit(func(int) {})()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("HandleAllocError returned")
		}
		if s, ok := r.(string); !ok || !strings.Contains(s, "exit returned") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	wasmalloc.HandleAllocError(wasmalloc.MustLayout(1, 1), nil)
}

func TestAllocErrorHook(t *testing.T) {
	var gotLayout wasmalloc.Layout
	var gotCause error
	cause := errors.New("exhausted")

	wasmalloc.SetAllocErrorHook(func(l wasmalloc.Layout, err error) {
		gotLayout, gotCause = l, err
	})
	defer wasmalloc.SetAllocErrorHook(nil)

	code, report := catchAbort(t, func() {
		wasmalloc.HandleAllocError(wasmalloc.MustLayout(32, 4), cause)
	})
	if code != wasmalloc.AbortExitCode {
		t.Errorf("exit code: got %d", code)
	}
	if report != "" {
		t.Errorf("hook should replace default report, got %q", report)
	}
	if gotLayout != wasmalloc.MustLayout(32, 4) {
		t.Errorf("hook layout: got %v", gotLayout)
	}
	if gotCause != cause {
		t.Errorf("hook cause: got %v", gotCause)
	}
}

func TestTakeAllocErrorHook(t *testing.T) {
	if wasmalloc.TakeAllocErrorHook() != nil {
		t.Fatal("expected no hook installed")
	}

	called := false
	wasmalloc.SetAllocErrorHook(func(wasmalloc.Layout, error) { called = true })

	hook := wasmalloc.TakeAllocErrorHook()
	if hook == nil {
		t.Fatal("expected installed hook")
	}
	if wasmalloc.TakeAllocErrorHook() != nil {
		t.Error("take should remove the hook")
	}
	hook(wasmalloc.MustLayout(1, 1), nil)
	if !called {
		t.Error("returned hook is not the installed one")
	}
}

func TestHandleAllocErrorLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	wasmalloc.SetLogger(zap.New(core))
	defer wasmalloc.SetLogger(zap.NewNop())

	catchAbort(t, func() {
		wasmalloc.HandleAllocError(wasmalloc.MustLayout(128, 16), errors.New("boom"))
	})

	entries := logs.FilterMessage("memory allocation failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["size"] != uint64(128) || fields["align"] != uint64(16) {
		t.Errorf("unexpected fields: %v", fields)
	}
}

const abortChildEnv = "WASMALLOC_ABORT_CHILD"

// TestAbortTerminatesProcess runs the failing allocation in a child process
// and checks that it dies with the abort status and the default report.
func TestAbortTerminatesProcess(t *testing.T) {
	switch os.Getenv(abortChildEnv) {
	case "alloc":
		a := wasmalloc.NewAbort[uint32](&testalloc.Failing{})
		a.MustAlloc(wasmalloc.MustLayout(64, 8))
		os.Exit(0)
	case "realloc":
		ar := wasmalloc.NewAbort[uint32](arena.NewFixed(128))
		p := ar.MustAlloc(wasmalloc.MustLayout(16, 8))
		ar.MustRealloc(p, wasmalloc.MustLayout(16, 8), wasmalloc.MustLayout(4096, 8))
		os.Exit(0)
	}

	tests := []struct {
		mode   string
		report string
	}{
		{"alloc", "memory allocation of 64 bytes failed"},
		{"realloc", "memory allocation of 4096 bytes failed"},
	}

	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestAbortTerminatesProcess$")
			cmd.Env = append(os.Environ(), abortChildEnv+"="+tc.mode)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr

			err := cmd.Run()
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("expected child to exit with an error, got %v", err)
			}
			if exitErr.ExitCode() != wasmalloc.AbortExitCode {
				t.Errorf("exit code: got %d, want %d", exitErr.ExitCode(), wasmalloc.AbortExitCode)
			}
			if !strings.Contains(stderr.String(), tc.report) {
				t.Errorf("stderr %q does not contain %q", stderr.String(), tc.report)
			}
		})
	}
}
