// Package testalloc provides allocator doubles for tests.
package testalloc

import (
	"sync"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

// Failing is an allocator whose Alloc, AllocZeroed and Realloc always report
// exhaustion. Dealloc and handle construction succeed.
type Failing struct {
	Cause error
}

var _ wasmalloc.Allocator[uint32, *Failing] = (*Failing)(nil)

func (f *Failing) BuildAllocRef(uint32, *wasmalloc.Layout) *Failing { return f }
func (f *Failing) GetBuildAlloc() *Failing                          { return f }
func (f *Failing) Dealloc(uint32, wasmalloc.Layout)                 {}

func (f *Failing) Alloc(layout wasmalloc.Layout) (uint32, error) {
	return 0, f.err(errors.PhaseAlloc, layout)
}

func (f *Failing) AllocZeroed(layout wasmalloc.Layout) (uint32, error) {
	return 0, f.err(errors.PhaseAlloc, layout)
}

func (f *Failing) Realloc(_ uint32, _, newLayout wasmalloc.Layout) (uint32, error) {
	return 0, f.err(errors.PhaseRealloc, newLayout)
}

func (f *Failing) err(phase errors.Phase, layout wasmalloc.Layout) error {
	b := errors.New(phase, errors.KindExhausted).Layout(layout.Size(), layout.Align())
	if f.Cause != nil {
		b = b.Cause(f.Cause)
	}
	return b.Detail("always fails").Build()
}

// Call is one recorded allocator operation.
type Call struct {
	Op        string
	Ptr       uint32
	OldLayout wasmalloc.Layout
	Layout    wasmalloc.Layout
	Result    uint32
	Err       error
}

// Recorder forwards to an inner allocator and records every call. Handles
// built from a Recorder share its log.
type Recorder[A wasmalloc.Allocator[uint32, A]] struct {
	inner A
	log   *callLog
}

type callLog struct {
	mu    sync.Mutex
	calls []Call
}

func NewRecorder[A wasmalloc.Allocator[uint32, A]](inner A) *Recorder[A] {
	return &Recorder[A]{inner: inner, log: &callLog{}}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder[A]) Calls() []Call {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return append([]Call(nil), r.log.calls...)
}

func (r *Recorder[A]) record(c Call) {
	r.log.mu.Lock()
	r.log.calls = append(r.log.calls, c)
	r.log.mu.Unlock()
}

func (r *Recorder[A]) BuildAllocRef(ptr uint32, layout *wasmalloc.Layout) *Recorder[A] {
	c := Call{Op: "build", Ptr: ptr}
	if layout != nil {
		c.Layout = *layout
	}
	r.record(c)
	return &Recorder[A]{inner: r.inner.BuildAllocRef(ptr, layout), log: r.log}
}

func (r *Recorder[A]) GetBuildAlloc() *Recorder[A] {
	return &Recorder[A]{inner: r.inner.GetBuildAlloc(), log: r.log}
}

func (r *Recorder[A]) Dealloc(ptr uint32, layout wasmalloc.Layout) {
	r.record(Call{Op: "dealloc", Ptr: ptr, Layout: layout})
	r.inner.Dealloc(ptr, layout)
}

func (r *Recorder[A]) Alloc(layout wasmalloc.Layout) (uint32, error) {
	p, err := r.inner.Alloc(layout)
	r.record(Call{Op: "alloc", Layout: layout, Result: p, Err: err})
	return p, err
}

func (r *Recorder[A]) AllocZeroed(layout wasmalloc.Layout) (uint32, error) {
	p, err := r.inner.AllocZeroed(layout)
	r.record(Call{Op: "alloc_zeroed", Layout: layout, Result: p, Err: err})
	return p, err
}

func (r *Recorder[A]) Realloc(ptr uint32, oldLayout, newLayout wasmalloc.Layout) (uint32, error) {
	p, err := r.inner.Realloc(ptr, oldLayout, newLayout)
	r.record(Call{Op: "realloc", Ptr: ptr, OldLayout: oldLayout, Layout: newLayout, Result: p, Err: err})
	return p, err
}
