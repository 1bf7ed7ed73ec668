package wasmalloc

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

// AbortExitCode is the exit status of a process terminated by
// HandleAllocError. It matches what shells report for SIGABRT.
const AbortExitCode = 134

// AllocErrorHook observes an allocation failure right before the process
// terminates.
type AllocErrorHook func(layout Layout, cause error)

var (
	allocErrorHook atomic.Pointer[AllocErrorHook]

	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// SetAllocErrorHook installs hook as the process-wide allocation failure
// hook, replacing the default stderr report. A nil hook restores the default.
func SetAllocErrorHook(hook AllocErrorHook) {
	if hook == nil {
		allocErrorHook.Store(nil)
		return
	}
	allocErrorHook.Store(&hook)
}

// TakeAllocErrorHook removes and returns the installed hook, or nil.
func TakeAllocErrorHook() AllocErrorHook {
	p := allocErrorHook.Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}

// HandleAllocError reports that layout could not be allocated and terminates
// the process. It never returns.
func HandleAllocError(layout Layout, cause error) {
	Logger().Error("memory allocation failed",
		zap.Uint64("size", layout.Size()),
		zap.Uint64("align", layout.Align()),
		zap.Error(cause))
	_ = Logger().Sync()

	if hook := allocErrorHook.Load(); hook != nil {
		(*hook)(layout, cause)
	} else {
		fmt.Fprintf(stderr, "memory allocation of %d bytes failed\n", layout.Size())
	}

	exit(AbortExitCode)
	panic("wasmalloc: exit returned after allocation failure")
}
