package wasmalloc

import (
	"errors"
	"math"
	"testing"

	allocerrors "github.com/wippyai/wasm-alloc/errors"
)

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		align   uint64
		wantErr bool
	}{
		{"byte", 1, 1, false},
		{"word", 8, 8, false},
		{"page", 65536, 4096, false},
		{"unaligned_size", 3, 4, false},
		{"zero_size", 0, 1, true},
		{"zero_align", 8, 0, true},
		{"align_not_pow2", 8, 3, true},
		{"max_size", math.MaxInt64, 1, false},
		{"overflow_when_padded", math.MaxInt64, 2, true},
		{"beyond_int64", math.MaxInt64 + 1, 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLayout(tc.size, tc.align)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", l)
				}
				if !errors.Is(err, allocerrors.ErrInvalidLayout) {
					t.Errorf("expected invalid layout error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLayout: %v", err)
			}
			if l.Size() != tc.size || l.Align() != tc.align {
				t.Errorf("got %v", l)
			}
			if !l.IsValid() {
				t.Error("layout should be valid")
			}
		})
	}
}

func TestMustLayoutPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustLayout(0, 1)
}

func TestLayoutZeroValue(t *testing.T) {
	var l Layout
	if l.IsValid() {
		t.Error("zero layout should be invalid")
	}
}

func TestLayoutOf(t *testing.T) {
	l, err := LayoutOf[uint64]()
	if err != nil {
		t.Fatalf("LayoutOf: %v", err)
	}
	if l.Size() != 8 {
		t.Errorf("size: got %d, want 8", l.Size())
	}

	if _, err := LayoutOf[struct{}](); err == nil {
		t.Error("expected error for zero-sized type")
	}

	arr, err := ArrayOf[uint32](5)
	if err != nil {
		t.Fatalf("ArrayOf: %v", err)
	}
	if arr != MustLayout(20, 4) {
		t.Errorf("got %v, want size=20 align=4", arr)
	}
}

func TestLayoutPadding(t *testing.T) {
	l := MustLayout(5, 4)
	if got := l.PaddedSize(); got != 8 {
		t.Errorf("PaddedSize: got %d, want 8", got)
	}
	if got := l.PadToAlign(); got != MustLayout(8, 4) {
		t.Errorf("PadToAlign: got %v", got)
	}

	wider, err := l.AlignTo(16)
	if err != nil {
		t.Fatalf("AlignTo: %v", err)
	}
	if wider.Align() != 16 || wider.Size() != 5 {
		t.Errorf("AlignTo(16): got %v", wider)
	}
	narrower, err := l.AlignTo(1)
	if err != nil {
		t.Fatalf("AlignTo: %v", err)
	}
	if narrower.Align() != 4 {
		t.Errorf("AlignTo(1) lowered alignment: %v", narrower)
	}
	if _, err := l.AlignTo(6); err == nil {
		t.Error("expected error for non power of two")
	}
}

func TestLayoutRepeat(t *testing.T) {
	l := MustLayout(6, 4)

	arr, stride, err := l.Repeat(3)
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if stride != 8 {
		t.Errorf("stride: got %d, want 8", stride)
	}
	if arr != MustLayout(24, 4) {
		t.Errorf("got %v", arr)
	}

	if _, _, err := l.Repeat(0); err == nil {
		t.Error("expected error for zero count")
	}
	if _, _, err := l.Repeat(math.MaxInt64 / 4); err == nil {
		t.Error("expected overflow error")
	}
}

func TestLayoutExtend(t *testing.T) {
	tests := []struct {
		name       string
		first      Layout
		next       Layout
		want       Layout
		wantOffset uint64
	}{
		{"u8_then_u32", MustLayout(1, 1), MustLayout(4, 4), MustLayout(8, 4), 4},
		{"u32_then_u8", MustLayout(4, 4), MustLayout(1, 1), MustLayout(5, 4), 4},
		{"u8_then_u64", MustLayout(1, 1), MustLayout(8, 8), MustLayout(16, 8), 8},
		{"packed", MustLayout(2, 2), MustLayout(2, 2), MustLayout(4, 2), 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, off, err := tc.first.Extend(tc.next)
			if err != nil {
				t.Fatalf("Extend: %v", err)
			}
			if got != tc.want {
				t.Errorf("layout: got %v, want %v", got, tc.want)
			}
			if off != tc.wantOffset {
				t.Errorf("offset: got %d, want %d", off, tc.wantOffset)
			}
		})
	}

	if _, _, err := MustLayout(math.MaxInt64-8, 1).Extend(MustLayout(16, 8)); err == nil {
		t.Error("expected overflow error")
	}
}

func TestLayoutString(t *testing.T) {
	if got := MustLayout(12, 4).String(); got != "size=12 align=4" {
		t.Errorf("got %q", got)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		offset, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{17, 16, 32},
		{7, 0, 7},
	}
	for _, tc := range tests {
		if got := AlignUp(tc.offset, tc.align); got != tc.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tc.offset, tc.align, got, tc.want)
		}
	}
}
