package wasmalloc

// Abort wraps an allocator and aborts the process when it runs out of memory.
//
// Every successful call is forwarded to the inner allocator unchanged. When
// Alloc, AllocZeroed or Realloc fail, Abort calls HandleAllocError with the
// layout that could not be satisfied instead of returning. Deallocation and
// handle construction are forwarded as-is and have no abort path.
//
// Abort adds no state and no synchronization; it is safe for concurrent use
// exactly when the inner allocator is.
type Abort[P Pointer, A Allocator[P, A]] struct {
	inner A
}

// NewAbort wraps inner. The pointer type usually has to be spelled out:
//
//	heap := wasmalloc.NewAbort[uintptr](native.New())
func NewAbort[P Pointer, A Allocator[P, A]](inner A) *Abort[P, A] {
	return &Abort[P, A]{inner: inner}
}

// Inner returns the wrapped allocator.
func (a *Abort[P, A]) Inner() A {
	return a.inner
}

// BuildAllocRef forwards to the inner builder and wraps the handle it
// returns, so handles built from an Abort also abort.
func (a *Abort[P, A]) BuildAllocRef(ptr P, layout *Layout) *Abort[P, A] {
	return &Abort[P, A]{inner: a.inner.BuildAllocRef(ptr, layout)}
}

// GetBuildAlloc wraps the inner allocator's builder in a fresh Abort.
func (a *Abort[P, A]) GetBuildAlloc() *Abort[P, A] {
	return &Abort[P, A]{inner: a.inner.GetBuildAlloc()}
}

// Dealloc releases ptr through the inner allocator.
func (a *Abort[P, A]) Dealloc(ptr P, layout Layout) {
	a.inner.Dealloc(ptr, layout)
}

// Alloc never returns a non-nil error.
func (a *Abort[P, A]) Alloc(layout Layout) (P, error) {
	return a.MustAlloc(layout), nil
}

// AllocZeroed never returns a non-nil error.
func (a *Abort[P, A]) AllocZeroed(layout Layout) (P, error) {
	return a.MustAllocZeroed(layout), nil
}

// Realloc never returns a non-nil error.
func (a *Abort[P, A]) Realloc(ptr P, oldLayout, newLayout Layout) (P, error) {
	return a.MustRealloc(ptr, oldLayout, newLayout), nil
}

// MustAlloc allocates layout or aborts the process.
func (a *Abort[P, A]) MustAlloc(layout Layout) P {
	ptr, err := a.inner.Alloc(layout)
	if err != nil {
		HandleAllocError(layout, err)
	}
	return ptr
}

// MustAllocZeroed allocates zero-filled memory for layout or aborts the
// process.
func (a *Abort[P, A]) MustAllocZeroed(layout Layout) P {
	ptr, err := a.inner.AllocZeroed(layout)
	if err != nil {
		HandleAllocError(layout, err)
	}
	return ptr
}

// MustRealloc reports newLayout on failure: that is the request that could
// not be satisfied.
func (a *Abort[P, A]) MustRealloc(ptr P, oldLayout, newLayout Layout) P {
	p, err := a.inner.Realloc(ptr, oldLayout, newLayout)
	if err != nil {
		HandleAllocError(newLayout, err)
	}
	return p
}

// AbortAlloc is Abort for allocators that can only acquire memory.
type AbortAlloc[P Pointer, A AllocRef[P]] struct {
	inner A
}

func NewAbortAlloc[P Pointer, A AllocRef[P]](inner A) *AbortAlloc[P, A] {
	return &AbortAlloc[P, A]{inner: inner}
}

func (a *AbortAlloc[P, A]) Inner() A {
	return a.inner
}

// Alloc never returns a non-nil error.
func (a *AbortAlloc[P, A]) Alloc(layout Layout) (P, error) {
	return a.MustAlloc(layout), nil
}

// AllocZeroed never returns a non-nil error.
func (a *AbortAlloc[P, A]) AllocZeroed(layout Layout) (P, error) {
	return a.MustAllocZeroed(layout), nil
}

func (a *AbortAlloc[P, A]) MustAlloc(layout Layout) P {
	ptr, err := a.inner.Alloc(layout)
	if err != nil {
		HandleAllocError(layout, err)
	}
	return ptr
}

func (a *AbortAlloc[P, A]) MustAllocZeroed(layout Layout) P {
	ptr, err := a.inner.AllocZeroed(layout)
	if err != nil {
		HandleAllocError(layout, err)
	}
	return ptr
}

// AbortRealloc is Abort for allocators that can only resize existing blocks.
type AbortRealloc[P Pointer, A ReallocRef[P]] struct {
	inner A
}

func NewAbortRealloc[P Pointer, A ReallocRef[P]](inner A) *AbortRealloc[P, A] {
	return &AbortRealloc[P, A]{inner: inner}
}

func (a *AbortRealloc[P, A]) Inner() A {
	return a.inner
}

// Realloc never returns a non-nil error.
func (a *AbortRealloc[P, A]) Realloc(ptr P, oldLayout, newLayout Layout) (P, error) {
	return a.MustRealloc(ptr, oldLayout, newLayout), nil
}

// MustRealloc reports newLayout on failure, like Abort.MustRealloc.
func (a *AbortRealloc[P, A]) MustRealloc(ptr P, oldLayout, newLayout Layout) P {
	p, err := a.inner.Realloc(ptr, oldLayout, newLayout)
	if err != nil {
		HandleAllocError(newLayout, err)
	}
	return p
}
