// Package witlayout computes allocation layouts for WIT types.
//
// Sizes and alignments follow the Canonical ABI of the Component Model:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records and tuples: fields laid out sequentially with padding
//   - Variants, options, results: discriminant followed by the largest payload
//   - Lists and strings: (pointer, length) pair, content allocated separately
//
// The resulting wasmalloc.Layout values are what guest allocators expect:
//
//	c := witlayout.NewCalculator()
//	l, err := c.Layout(recordType)
//	ptr, err := alloc.Alloc(l)
package witlayout
