// Package errors provides structured error types for the wasm-alloc library.
//
// Errors are categorized by Phase (which allocator operation failed) and Kind
// (error category). Allocation failures carry the size and alignment of the
// request that could not be satisfied.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRealloc, errors.KindExhausted).
//		Layout(128, 8).
//		Detail("arena has %d bytes left", 32).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Exhausted(errors.PhaseAlloc, size, align)
//	err := errors.Unsupported(errors.PhaseAlloc, "alignment above 16")
//
// All errors implement the standard error interface and support errors.Is/As.
// The phase-less sentinels ErrExhausted, ErrInvalidLayout and ErrUnsupported
// match any error of the same kind.
package errors
