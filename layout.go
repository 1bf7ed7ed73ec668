package wasmalloc

import (
	"math"
	"strconv"
	"unsafe"

	"github.com/wippyai/wasm-alloc/errors"
)

// maxSize bounds padded layout sizes so offsets stay representable as int64.
const maxSize = math.MaxInt64

// Layout describes the size and alignment of a memory request.
// A Layout always has a non-zero size and a power-of-two alignment;
// the zero value is not a valid layout.
type Layout struct {
	size  uint64
	align uint64
}

// NewLayout validates size and align and returns the layout.
func NewLayout(size, align uint64) (Layout, error) {
	if size == 0 {
		return Layout{}, errors.InvalidLayout("size must be non-zero")
	}
	if align == 0 || align&(align-1) != 0 {
		return Layout{}, errors.InvalidLayout("alignment %d is not a power of two", align)
	}
	if size > maxSize-(align-1) {
		return Layout{}, errors.InvalidLayout("size %d overflows when padded to %d", size, align)
	}
	return Layout{size: size, align: align}, nil
}

// MustLayout is like NewLayout but panics on invalid input.
// Intended for constant layouts.
func MustLayout(size, align uint64) Layout {
	l, err := NewLayout(size, align)
	if err != nil {
		panic(err)
	}
	return l
}

// LayoutOf returns the layout of a Go value of type T.
// Zero-sized types have no layout.
func LayoutOf[T any]() (Layout, error) {
	var zero T
	return NewLayout(uint64(unsafe.Sizeof(zero)), uint64(unsafe.Alignof(zero)))
}

// ArrayOf returns the layout of n contiguous values of type T.
func ArrayOf[T any](n uint64) (Layout, error) {
	elem, err := LayoutOf[T]()
	if err != nil {
		return Layout{}, err
	}
	l, _, err := elem.Repeat(n)
	return l, err
}

func (l Layout) Size() uint64  { return l.size }
func (l Layout) Align() uint64 { return l.align }

// IsValid reports whether l was produced by a constructor.
func (l Layout) IsValid() bool {
	return l.size != 0 && l.align != 0
}

// PaddedSize is the size rounded up to a multiple of the alignment.
func (l Layout) PaddedSize() uint64 {
	return AlignUp(l.size, l.align)
}

// PadToAlign returns l with its size rounded up to its alignment.
func (l Layout) PadToAlign() Layout {
	return Layout{size: l.PaddedSize(), align: l.align}
}

// AlignTo returns a layout with at least the given alignment.
func (l Layout) AlignTo(align uint64) (Layout, error) {
	if align < l.align {
		align = l.align
	}
	return NewLayout(l.size, align)
}

// Repeat returns the layout of n copies of l, each padded to its alignment,
// and the stride between consecutive copies.
func (l Layout) Repeat(n uint64) (Layout, uint64, error) {
	stride := l.PaddedSize()
	if n == 0 {
		return Layout{}, 0, errors.InvalidLayout("repeat count must be non-zero")
	}
	if stride > maxSize/n {
		return Layout{}, 0, errors.InvalidLayout("array of %d x %d bytes overflows", n, stride)
	}
	out, err := NewLayout(stride*n, l.align)
	if err != nil {
		return Layout{}, 0, err
	}
	return out, stride, nil
}

// Extend appends next after l, record style, and returns the combined layout
// together with the offset of next within it. The result is not padded.
func (l Layout) Extend(next Layout) (Layout, uint64, error) {
	align := max(l.align, next.align)
	offset := AlignUp(l.size, next.align)
	if offset < l.size || offset > maxSize-next.size {
		return Layout{}, 0, errors.InvalidLayout("extending %d bytes by %d overflows", l.size, next.size)
	}
	out, err := NewLayout(offset+next.size, align)
	if err != nil {
		return Layout{}, 0, err
	}
	return out, offset, nil
}

func (l Layout) String() string {
	return "size=" + strconv.FormatUint(l.size, 10) + " align=" + strconv.FormatUint(l.align, 10)
}

// AlignUp rounds offset up to the next multiple of align.
// align must be a power of two.
func AlignUp(offset, align uint64) uint64 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
