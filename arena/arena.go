// Package arena provides a bump allocator over a fixed region of linear memory.
package arena

import (
	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

// Arena hands out blocks from [base, limit) of a Memory by bumping a cursor.
//
// Only the most recent block can be released or resized in place; other
// blocks are reclaimed by Reset. Offset 0 is never returned.
// An Arena is not safe for concurrent use.
type Arena struct {
	mem   wasmalloc.Memory
	base  uint32
	limit uint32
	top   uint32

	// most recent block and the cursor before it was reserved
	last     uint32
	lastPrev uint32
}

// New creates an arena over size bytes of mem starting at base.
func New(mem wasmalloc.Memory, base, size uint32) (*Arena, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "nil memory")
	}
	end := uint64(base) + uint64(size)
	if end > uint64(memEnd(mem, ^uint32(0))) {
		return nil, errors.OutOfBounds(errors.PhaseBuild, uint64(base), uint64(size))
	}
	return newArena(mem, base, uint32(end)), nil
}

// NewFixed creates an arena over a fresh Go-backed buffer of size bytes.
func NewFixed(size uint32) *Arena {
	return newArena(wasmalloc.NewSliceMemory(size), 0, size)
}

func newArena(mem wasmalloc.Memory, base, limit uint32) *Arena {
	a := &Arena{mem: mem, base: base, limit: limit}
	a.top = a.start()
	return a
}

func memEnd(mem wasmalloc.Memory, fallback uint32) uint32 {
	if s, ok := mem.(wasmalloc.MemorySizer); ok {
		return s.Size()
	}
	return fallback
}

// start is the first usable offset; 0 stays reserved as null.
func (a *Arena) start() uint32 {
	return max(a.base, 1)
}

// Memory returns the memory the arena allocates from.
func (a *Arena) Memory() wasmalloc.Memory { return a.mem }

// Used returns the number of bytes consumed, including alignment padding.
func (a *Arena) Used() uint32 { return a.top - a.start() }

// Remaining returns the number of bytes left above the cursor.
func (a *Arena) Remaining() uint32 {
	if a.top >= a.limit {
		return 0
	}
	return a.limit - a.top
}

// Reset releases every block at once.
func (a *Arena) Reset() {
	a.top = a.start()
	a.last, a.lastPrev = 0, 0
}

// BuildAllocRef returns an arena over the region at ptr. With a layout the
// region is exactly layout.Size() bytes; without one it runs to the end of
// the memory, or to this arena's limit when the memory size is unknown.
func (a *Arena) BuildAllocRef(ptr uint32, layout *wasmalloc.Layout) *Arena {
	limit := memEnd(a.mem, a.limit)
	if layout != nil {
		limit = ptr + uint32(layout.Size())
	}
	return newArena(a.mem, ptr, limit)
}

// GetBuildAlloc returns an empty arena over the same memory. It cannot
// allocate by itself but builds handles exactly like a.
func (a *Arena) GetBuildAlloc() *Arena {
	return newArena(a.mem, a.limit, a.limit)
}

// Dealloc rolls the cursor back when ptr is the most recent block and is a
// no-op otherwise.
func (a *Arena) Dealloc(ptr uint32, layout wasmalloc.Layout) {
	if a.last == 0 || ptr != a.last || uint64(ptr)+layout.Size() != uint64(a.top) {
		return
	}
	a.top = a.lastPrev
	a.last, a.lastPrev = 0, 0
}

// Alloc bumps the cursor past layout, padding for alignment. The block may
// hold bytes from a released block.
func (a *Arena) Alloc(layout wasmalloc.Layout) (uint32, error) {
	return a.reserve(errors.PhaseAlloc, layout)
}

// AllocZeroed clears the block with an extra write pass since the region may
// hold data from released blocks.
func (a *Arena) AllocZeroed(layout wasmalloc.Layout) (uint32, error) {
	ptr, err := a.reserve(errors.PhaseAlloc, layout)
	if err != nil {
		return 0, err
	}
	if err := wasmalloc.Zero(a.mem, ptr, uint32(layout.Size())); err != nil {
		a.Dealloc(ptr, layout)
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindOutOfBounds, err, "zero block")
	}
	return ptr, nil
}

// Realloc resizes the most recent block in place and shrinks any block in
// place when it stays aligned. Otherwise the contents move to a fresh block
// and the old one is left behind until Reset.
func (a *Arena) Realloc(ptr uint32, oldLayout, newLayout wasmalloc.Layout) (uint32, error) {
	aligned := uint64(ptr)%newLayout.Align() == 0

	if aligned && ptr == a.last && uint64(ptr)+oldLayout.Size() == uint64(a.top) {
		end := uint64(ptr) + newLayout.Size()
		if end > uint64(a.limit) {
			return 0, a.exhausted(errors.PhaseRealloc, newLayout)
		}
		a.top = uint32(end)
		return ptr, nil
	}

	if aligned && newLayout.Size() <= oldLayout.Size() {
		return ptr, nil
	}

	prevTop, prevLast, prevLastPrev := a.top, a.last, a.lastPrev
	newPtr, err := a.reserve(errors.PhaseRealloc, newLayout)
	if err != nil {
		return 0, err
	}

	n := uint32(min(oldLayout.Size(), newLayout.Size()))
	data, err := a.mem.Read(ptr, n)
	if err == nil {
		err = a.mem.Write(newPtr, data)
	}
	if err != nil {
		a.top, a.last, a.lastPrev = prevTop, prevLast, prevLastPrev
		return 0, errors.Wrap(errors.PhaseRealloc, errors.KindOutOfBounds, err, "copy block")
	}
	return newPtr, nil
}

func (a *Arena) reserve(phase errors.Phase, layout wasmalloc.Layout) (uint32, error) {
	start := wasmalloc.AlignUp(uint64(a.top), layout.Align())
	end := start + layout.Size()
	if end > uint64(a.limit) || end < start {
		return 0, a.exhausted(phase, layout)
	}
	a.lastPrev = a.top
	a.last = uint32(start)
	a.top = uint32(end)
	return uint32(start), nil
}

func (a *Arena) exhausted(phase errors.Phase, layout wasmalloc.Layout) error {
	return errors.New(phase, errors.KindExhausted).
		Layout(layout.Size(), layout.Align()).
		Detail("arena has %d of %d bytes free", a.Remaining(), a.limit-min(a.start(), a.limit)).
		Build()
}
