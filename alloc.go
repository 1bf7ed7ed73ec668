package wasmalloc

// Pointer is the address representation of an allocator's address space:
// uint32 offsets into WebAssembly linear memory or uintptr addresses of
// native memory. The zero value is never returned by a successful allocation.
type Pointer interface {
	~uint32 | ~uint64 | ~uintptr
}

// BuildAllocRef constructs allocator handles of type R.
//
// BuildAllocRef binds a handle to the region starting at ptr. When layout is
// non-nil it is the layout that produced the region; otherwise the region has
// unspecified extent and is owned elsewhere. The caller guarantees ptr is
// valid for that region.
type BuildAllocRef[P Pointer, R any] interface {
	BuildAllocRef(ptr P, layout *Layout) R
}

// DeallocRef releases memory.
//
// Dealloc releases the block at ptr, which must have been allocated with
// exactly layout and not released since. Violations are undefined behavior
// and are not detected.
//
// GetBuildAlloc returns a builder for further handles of the same family so
// a handle can hand on its recipe before it is dropped.
type DeallocRef[P Pointer, B any] interface {
	GetBuildAlloc() B
	Dealloc(ptr P, layout Layout)
}

// AllocRef acquires fresh memory.
//
// Alloc returns uninitialized memory for layout. AllocZeroed returns memory
// whose every byte is zero. Both report exhaustion through the error.
type AllocRef[P Pointer] interface {
	Alloc(layout Layout) (P, error)
	AllocZeroed(layout Layout) (P, error)
}

// ReallocRef resizes existing allocations.
//
// On success the returned pointer is valid for newLayout and the first
// min(old, new) bytes are preserved. On failure the block at ptr is untouched
// and still owned by the caller.
type ReallocRef[P Pointer] interface {
	Realloc(ptr P, oldLayout, newLayout Layout) (P, error)
}

// Allocator is the full capability set of a self-similar allocator family,
// where handles and builders share the allocator type A.
type Allocator[P Pointer, A any] interface {
	BuildAllocRef[P, A]
	DeallocRef[P, A]
	AllocRef[P]
	ReallocRef[P]
}

// Infallible allocators never report failure: each method either returns a
// valid pointer or does not return at all.
type Infallible[P Pointer] interface {
	MustAlloc(layout Layout) P
	MustAllocZeroed(layout Layout) P
	MustRealloc(ptr P, oldLayout, newLayout Layout) P
}
