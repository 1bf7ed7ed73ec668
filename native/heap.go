// Package native provides a heap allocator for memory outside the Go heap.
//
// Blocks are carved from mmap'd pages by modernc.org/memory, so they are never
// moved or collected and may be addressed as uintptr. Every block must be
// released through Dealloc or Realloc, or all at once through Close.
package native

import (
	"math"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"modernc.org/memory"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

// MaxAlign is the largest alignment the heap supports.
const MaxAlign = uint64(2 * unsafe.Sizeof(uintptr(0)))

// Heap is a thread-safe native heap. The heap is its own handle and builder:
// handles built from it share the same pages.
type Heap struct {
	mu    sync.Mutex
	alloc memory.Allocator
}

// New returns an empty heap. Pages are mapped on first use.
func New() *Heap {
	return &Heap{}
}

// Close unmaps every page owned by the heap. All pointers obtained from it
// become invalid.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alloc.Close()
}

// BuildAllocRef returns h. Native blocks carry their own bookkeeping, so a
// handle needs no region context.
func (h *Heap) BuildAllocRef(uintptr, *wasmalloc.Layout) *Heap {
	return h
}

// GetBuildAlloc returns h.
func (h *Heap) GetBuildAlloc() *Heap {
	return h
}

// Dealloc frees ptr. ptr must come from this heap; a foreign pointer
// corrupts the heap.
func (h *Heap) Dealloc(ptr uintptr, layout wasmalloc.Layout) {
	h.mu.Lock()
	err := h.alloc.UintptrFree(ptr)
	h.mu.Unlock()
	if err != nil {
		wasmalloc.Logger().Warn("native: free failed",
			zap.Uintptr("ptr", ptr),
			zap.Uint64("size", layout.Size()),
			zap.Error(err))
	}
}

// Alloc returns uninitialized native memory for layout.
func (h *Heap) Alloc(layout wasmalloc.Layout) (uintptr, error) {
	size, err := checkLayout(errors.PhaseAlloc, layout)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	p, err := h.alloc.UintptrMalloc(size)
	h.mu.Unlock()
	return result(errors.PhaseAlloc, layout, p, err)
}

// AllocZeroed returns memory cleared by the backing allocator itself.
func (h *Heap) AllocZeroed(layout wasmalloc.Layout) (uintptr, error) {
	size, err := checkLayout(errors.PhaseAlloc, layout)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	p, err := h.alloc.UintptrCalloc(size)
	h.mu.Unlock()
	return result(errors.PhaseAlloc, layout, p, err)
}

// Realloc moves the block when it cannot be resized in place. On failure
// ptr stays valid.
func (h *Heap) Realloc(ptr uintptr, oldLayout, newLayout wasmalloc.Layout) (uintptr, error) {
	size, err := checkLayout(errors.PhaseRealloc, newLayout)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	p, err := h.alloc.UintptrRealloc(ptr, size)
	h.mu.Unlock()
	if p != 0 && err != nil {
		// the copy succeeded; only releasing the old block failed
		wasmalloc.Logger().Warn("native: free after realloc failed",
			zap.Uintptr("ptr", ptr),
			zap.Uint64("size", oldLayout.Size()),
			zap.Error(err))
		return p, nil
	}
	return result(errors.PhaseRealloc, newLayout, p, err)
}

// UsableSize reports how many bytes the block at ptr can hold.
func UsableSize(ptr uintptr) int {
	return memory.UintptrUsableSize(ptr)
}

// Bytes returns a slice aliasing n bytes of native memory at ptr.
// The slice is valid until the block is released.
func Bytes(ptr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n)
}

func checkLayout(phase errors.Phase, layout wasmalloc.Layout) (int, error) {
	if layout.Align() > MaxAlign {
		return 0, errors.New(phase, errors.KindUnsupported).
			Layout(layout.Size(), layout.Align()).
			Detail("alignment above %d", MaxAlign).
			Build()
	}
	if layout.Size() > math.MaxInt {
		return 0, errors.Exhausted(phase, layout.Size(), layout.Align())
	}
	return int(layout.Size()), nil
}

func result(phase errors.Phase, layout wasmalloc.Layout, p uintptr, err error) (uintptr, error) {
	if err != nil || p == 0 {
		return 0, errors.New(phase, errors.KindExhausted).
			Layout(layout.Size(), layout.Align()).
			Cause(err).
			Detail("mmap heap").
			Build()
	}
	return p, nil
}
