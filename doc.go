// Package wasmalloc provides composable allocator capabilities for
// WebAssembly linear memory and native memory.
//
// An allocator is described by four independent capabilities:
//
//	BuildAllocRef   build a handle bound to a memory region
//	DeallocRef      release memory, hand back a builder
//	AllocRef        acquire fresh memory, optionally zeroed
//	ReallocRef      grow or shrink an allocation
//
// Code that needs memory is written once against these interfaces and works
// with any backend:
//
//	wasmalloc/     Capabilities, Layout, Abort adapter, OOM handling
//	├── native/    mmap-backed native heap (uintptr pointers)
//	├── arena/     fixed-region bump allocator over linear memory
//	├── guest/     allocator exported by a wazero guest (cabi_realloc)
//	├── witlayout/ Canonical ABI layouts for WIT types
//	└── errors/    Structured error types
//
// # Layouts
//
// Every request is described by a Layout: a non-zero size and a power-of-two
// alignment. Deallocation and reallocation must pass the layout the block was
// allocated with. This is not checked.
//
//	l := wasmalloc.MustLayout(64, 8)
//	ptr, err := a.Alloc(l)
//	if err != nil {
//	    return err
//	}
//	defer a.Dealloc(ptr, l)
//
// # Abort on OOM
//
// Abort wraps any allocator and turns allocation failure into process
// termination through HandleAllocError. Its error results are always nil and
// it implements Infallible, whose methods have no error result at all:
//
//	heap := wasmalloc.NewAbort[uintptr](native.New())
//	ptr := heap.MustAlloc(l) // returns or terminates the process
//
// Successful calls are forwarded without copies or bookkeeping. Deallocation
// and handle construction never abort.
//
// # Thread Safety
//
// Capabilities add no synchronization. An allocator is safe for concurrent
// use only when its backend documents it.
//
// # Pointers
//
// Raw pointers carry no ownership tracking. A block returned by Alloc must be
// released exactly once through Dealloc or replaced through Realloc; double
// release and use after release are undefined behavior.
package wasmalloc
