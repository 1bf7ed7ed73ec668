// Package guest allocates memory inside a WebAssembly guest running under
// wazero.
//
// Allocator drives the guest's own allocator exports (cabi_realloc, or a
// single-argument alloc/malloc with an optional free) and implements
// wasmalloc.Allocator over 32-bit guest offsets. Memory adapts the guest's
// linear memory to wasmalloc.Memory so generic code can read and write the
// blocks it receives.
//
//	mod, _ := rt.Instantiate(ctx, wasmBytes)
//	a, err := guest.New(ctx, mod)
//	if err != nil {
//		return err
//	}
//	heap := wasmalloc.NewAbort[uint32](a)
//	ptr := heap.MustAlloc(wasmalloc.MustLayout(64, 8))
package guest
