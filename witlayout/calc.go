package witlayout

import (
	"fmt"
	"math"

	"go.bytecodealliance.org/wit"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

// Info is the raw canonical ABI size and alignment of a type.
// Size may be zero (empty records, tuples and flags).
type Info struct {
	Size  uint32
	Align uint32
}

// Calculator computes canonical ABI layouts. Results for type definitions
// are cached; a Calculator is not safe for concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

// Layout returns the allocation layout of one value of type t.
// Zero-sized types have no layout.
func (c *Calculator) Layout(t wit.Type) (wasmalloc.Layout, error) {
	info := c.Info(t)
	if info.Size == 0 {
		return wasmalloc.Layout{}, errors.InvalidLayout("type %s has zero size", typeName(t))
	}
	return wasmalloc.NewLayout(uint64(info.Size), uint64(info.Align))
}

// ListLayout returns the layout of the element buffer of a list<elem> with
// n elements.
func (c *Calculator) ListLayout(elem wit.Type, n uint32) (wasmalloc.Layout, error) {
	info := c.Info(elem)
	if info.Size == 0 || n == 0 {
		return wasmalloc.Layout{}, errors.InvalidLayout("list of %d x %s has zero size", n, typeName(elem))
	}
	total := uint64(alignTo(info.Size, info.Align)) * uint64(n)
	if total > math.MaxUint32 {
		return wasmalloc.Layout{}, errors.InvalidLayout("list of %d x %s exceeds 32-bit memory", n, typeName(elem))
	}
	return wasmalloc.NewLayout(total, uint64(info.Align))
}

// StringLayout returns the layout of the UTF-8 buffer of an n-byte string.
func StringLayout(n uint32) (wasmalloc.Layout, error) {
	return wasmalloc.NewLayout(uint64(n), 1)
}

// FieldOffsets returns the offset of each record field in declaration order.
func (c *Calculator) FieldOffsets(r *wit.Record) []uint32 {
	offs := make([]uint32, len(r.Fields))
	offset := uint32(0)
	for i, field := range r.Fields {
		fl := c.Info(field.Type)
		offset = alignTo(offset, fl.Align)
		offs[i] = offset
		offset += fl.Size
	}
	return offs
}

func (c *Calculator) Info(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) typeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		info = c.sequence(fields)
	case *wit.Tuple:
		info = c.sequence(kind.Types)
	case *wit.Variant:
		payloads := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			payloads[i] = cs.Type
		}
		info = c.variant(payloads)
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Option:
		info = c.variant([]wit.Type{nil, kind.Type})
	case *wit.Result:
		info = c.variant([]wit.Type{kind.OK, kind.Err})
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Flags:
		info = flags(len(kind.Flags))
	case *wit.Own, *wit.Borrow:
		info = Info{Size: 4, Align: 4}
	case wit.Type:
		info = c.Info(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// sequence lays out types one after another, as records and tuples do.
func (c *Calculator) sequence(types []wit.Type) Info {
	maxAlign := uint32(1)
	offset := uint32(0)
	for _, typ := range types {
		l := c.Info(typ)
		offset = alignTo(offset, l.Align)
		maxAlign = max(maxAlign, l.Align)
		offset += l.Size
	}
	return Info{Size: alignTo(offset, maxAlign), Align: maxAlign}
}

// variant lays out a discriminant followed by the largest payload.
// nil entries are cases without payload.
func (c *Calculator) variant(payloads []wit.Type) Info {
	if len(payloads) == 0 {
		return Info{Size: 0, Align: 1}
	}
	disc := discriminantSize(len(payloads))
	maxAlign := disc
	maxSize := uint32(0)
	for _, p := range payloads {
		if p == nil {
			continue
		}
		l := c.Info(p)
		maxAlign = max(maxAlign, l.Align)
		maxSize = max(maxSize, l.Size)
	}
	payloadOffset := alignTo(disc, maxAlign)
	return Info{Size: alignTo(payloadOffset+maxSize, maxAlign), Align: maxAlign}
}

func flags(n int) Info {
	switch {
	case n == 0:
		return Info{Size: 0, Align: 1}
	case n <= 8:
		return Info{Size: 1, Align: 1}
	case n <= 16:
		return Info{Size: 2, Align: 2}
	default:
		return Info{Size: uint32((n+31)/32) * 4, Align: 4}
	}
}

func discriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func typeName(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return fmt.Sprintf("%T", t)
}
