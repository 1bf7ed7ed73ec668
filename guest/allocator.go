package guest

import (
	"context"
	"math"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

const (
	CabiRealloc = "cabi_realloc"
	CabiFree    = "cabi_free"
)

var (
	reallocNames = []string{CabiRealloc, "canonical_abi_realloc"}
	// single-argument allocators: (size) -> ptr
	allocNames = []string{"alloc", "malloc", "allocate"}
	freeNames  = []string{CabiFree, "canonical_abi_free", "free", "deallocate"}
)

// Allocator allocates guest linear memory by calling the guest's own
// allocator exports.
//
// Handles built from an Allocator share the guest instance. Calls are
// serialized because a wazero module instance must not be entered
// concurrently.
type Allocator struct {
	inst *instance
}

type instance struct {
	mu      sync.Mutex
	ctx     context.Context
	mem     *Memory
	realloc api.Function
	alloc   api.Function
	free    api.Function
	// free takes (ptr, size, align) rather than (ptr)
	freeSized bool
	stack     [4]uint64
}

// New looks up the allocator exports of mod: cabi_realloc or
// canonical_abi_realloc, falling back to a single-argument alloc/malloc, and
// an optional free export.
func New(ctx context.Context, mod api.Module) (*Allocator, error) {
	if mod == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "nil module")
	}
	realloc := lookup(mod, reallocNames)
	var alloc api.Function
	if realloc == nil {
		alloc = lookup(mod, allocNames)
	}
	if realloc == nil && alloc == nil {
		return nil, errors.NotFound(errors.PhaseBuild, "allocator export", CabiRealloc)
	}
	return newAllocator(ctx, mod.Memory(), realloc, alloc, lookup(mod, freeNames))
}

// FromFunctions builds an allocator from explicit functions. realloc must
// have the cabi_realloc signature (ptr, old_size, align, new_size) -> ptr;
// free may be nil.
func FromFunctions(ctx context.Context, mem api.Memory, realloc, free api.Function) (*Allocator, error) {
	if realloc == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "nil realloc function")
	}
	return newAllocator(ctx, mem, realloc, nil, free)
}

func newAllocator(ctx context.Context, mem api.Memory, realloc, alloc, free api.Function) (*Allocator, error) {
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseBuild, "export", "memory")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	inst := &instance{
		ctx:     ctx,
		mem:     WrapMemory(mem),
		realloc: realloc,
		alloc:   alloc,
		free:    free,
	}
	if free != nil {
		inst.freeSized = len(free.Definition().ParamTypes()) >= 3
	}
	return &Allocator{inst: inst}, nil
}

func lookup(mod api.Module, names []string) api.Function {
	for _, name := range names {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// SetContext sets the context used for subsequent guest calls.
func (a *Allocator) SetContext(ctx context.Context) {
	a.inst.mu.Lock()
	defer a.inst.mu.Unlock()
	a.inst.ctx = ctx
}

// Memory returns the guest memory the allocator manages.
func (a *Allocator) Memory() *Memory {
	return a.inst.mem
}

// BuildAllocRef returns a handle on the same guest instance. The guest keeps
// its own bookkeeping, so ptr and layout carry no extra information.
func (a *Allocator) BuildAllocRef(uint32, *wasmalloc.Layout) *Allocator {
	return &Allocator{inst: a.inst}
}

// GetBuildAlloc returns a.
func (a *Allocator) GetBuildAlloc() *Allocator {
	return &Allocator{inst: a.inst}
}

// Dealloc releases ptr through the guest's free export, or through
// cabi_realloc with a new size of zero. Guest failures are logged.
func (a *Allocator) Dealloc(ptr uint32, layout wasmalloc.Layout) {
	in := a.inst
	in.mu.Lock()
	defer in.mu.Unlock()

	var err error
	switch {
	case in.free != nil && in.freeSized:
		in.stack[0] = uint64(ptr)
		in.stack[1] = layout.Size()
		in.stack[2] = layout.Align()
		err = in.free.CallWithStack(in.ctx, in.stack[:3])
	case in.free != nil:
		in.stack[0] = uint64(ptr)
		err = in.free.CallWithStack(in.ctx, in.stack[:1])
	case in.realloc != nil:
		in.stack[0] = uint64(ptr)
		in.stack[1] = layout.Size()
		in.stack[2] = layout.Align()
		in.stack[3] = 0
		err = in.realloc.CallWithStack(in.ctx, in.stack[:4])
	default:
		Logger().Debug("guest: no free export, leaking block", zap.Uint32("ptr", ptr))
		return
	}
	if err != nil {
		Logger().Warn("guest: deallocation failed",
			zap.Uint32("ptr", ptr),
			zap.Uint64("size", layout.Size()),
			zap.Error(err))
	}
}

// Alloc asks the guest for a block. A null result from the guest is
// reported as exhaustion.
func (a *Allocator) Alloc(layout wasmalloc.Layout) (uint32, error) {
	size, align, err := wasm32(errors.PhaseAlloc, layout)
	if err != nil {
		return 0, err
	}
	in := a.inst
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.call(errors.PhaseAlloc, layout, 0, 0, align, size)
}

// AllocZeroed allocates and then clears the block, since guest allocators
// may recycle freed memory.
func (a *Allocator) AllocZeroed(layout wasmalloc.Layout) (uint32, error) {
	ptr, err := a.Alloc(layout)
	if err != nil {
		return 0, err
	}
	if err := wasmalloc.Zero(a.inst.mem, ptr, uint32(layout.Size())); err != nil {
		a.Dealloc(ptr, layout)
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindOutOfBounds, err, "zero block")
	}
	return ptr, nil
}

// Realloc resizes through cabi_realloc, or allocates, copies and frees when
// the guest only exports a single-argument allocator.
func (a *Allocator) Realloc(ptr uint32, oldLayout, newLayout wasmalloc.Layout) (uint32, error) {
	size, align, err := wasm32(errors.PhaseRealloc, newLayout)
	if err != nil {
		return 0, err
	}
	in := a.inst
	if in.realloc == nil {
		return a.moveRealloc(ptr, oldLayout, newLayout)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.call(errors.PhaseRealloc, newLayout, ptr, uint32(oldLayout.Size()), align, size)
}

// moveRealloc emulates realloc for guests that only export alloc.
func (a *Allocator) moveRealloc(ptr uint32, oldLayout, newLayout wasmalloc.Layout) (uint32, error) {
	newPtr, err := a.Alloc(newLayout)
	if err != nil {
		return 0, err
	}
	n := uint32(min(oldLayout.Size(), newLayout.Size()))
	data, err := a.inst.mem.Read(ptr, n)
	if err == nil {
		err = a.inst.mem.Write(newPtr, data)
	}
	if err != nil {
		a.Dealloc(newPtr, newLayout)
		return 0, errors.Wrap(errors.PhaseRealloc, errors.KindOutOfBounds, err, "copy block")
	}
	a.Dealloc(ptr, oldLayout)
	return newPtr, nil
}

// call must be made with mu held.
func (in *instance) call(phase errors.Phase, layout wasmalloc.Layout, ptr, oldSize, align, newSize uint32) (uint32, error) {
	var err error
	if in.realloc != nil {
		in.stack[0] = uint64(ptr)
		in.stack[1] = uint64(oldSize)
		in.stack[2] = uint64(align)
		in.stack[3] = uint64(newSize)
		err = in.realloc.CallWithStack(in.ctx, in.stack[:4])
	} else {
		in.stack[0] = uint64(newSize)
		err = in.alloc.CallWithStack(in.ctx, in.stack[:1])
	}
	if err != nil {
		return 0, errors.New(phase, errors.KindAllocation).
			Layout(layout.Size(), layout.Align()).
			Cause(err).
			Detail("guest allocator trapped").
			Build()
	}
	p := uint32(in.stack[0])
	if p == 0 {
		return 0, errors.Exhausted(phase, layout.Size(), layout.Align())
	}
	return p, nil
}

func wasm32(phase errors.Phase, layout wasmalloc.Layout) (size, align uint32, err error) {
	if layout.Size() > math.MaxUint32 || layout.Align() > math.MaxUint32 {
		return 0, 0, errors.Exhausted(phase, layout.Size(), layout.Align())
	}
	return uint32(layout.Size()), uint32(layout.Align()), nil
}
