package guest

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"

	allocerrors "github.com/wippyai/wasm-alloc/errors"
)

func memoryModule(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	compiled, err := rt.CompileModule(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	mem := WrapMemory(mod.ExportedMemory("memory"))
	if mem == nil {
		t.Fatal("expected non-nil wrapped memory")
	}
	return mem
}

func TestWrapMemory_Nil(t *testing.T) {
	if WrapMemory(nil) != nil {
		t.Error("expected nil for nil memory")
	}
}

func TestMemory_ReadWrite(t *testing.T) {
	mem := memoryModule(t)
	if mem.Size() != 65536 {
		t.Errorf("size: got %d, want 65536", mem.Size())
	}

	data := []byte{1, 2, 3, 4}
	if err := mem.Write(100, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	read, err := mem.Read(100, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, b := range read {
		if b != data[i] {
			t.Errorf("byte %d: expected %d, got %d", i, data[i], b)
		}
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	mem := memoryModule(t)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"read", func() error { _, err := mem.Read(65536, 1); return err }},
		{"write", func() error { return mem.Write(65535, []byte{1, 2}) }},
		{"u8", func() error { _, err := mem.ReadU8(65536); return err }},
		{"u16", func() error { return mem.WriteU16(65535, 1) }},
		{"u32", func() error { _, err := mem.ReadU32(65533); return err }},
		{"u64", func() error { return mem.WriteU64(65529, 1) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			var ae *allocerrors.Error
			if !errors.As(err, &ae) || ae.Kind != allocerrors.KindOutOfBounds {
				t.Errorf("expected out of bounds error, got %v", err)
			}
		})
	}
}

func TestMemory_IntegerReadWrite(t *testing.T) {
	mem := memoryModule(t)

	if err := mem.WriteU8(0, 42); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	if v, err := mem.ReadU8(0); err != nil || v != 42 {
		t.Errorf("ReadU8: got %d, %v", v, err)
	}

	if err := mem.WriteU16(2, 0x1234); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if v, err := mem.ReadU16(2); err != nil || v != 0x1234 {
		t.Errorf("ReadU16: got 0x%x, %v", v, err)
	}

	if err := mem.WriteU32(4, 0x12345678); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if v, err := mem.ReadU32(4); err != nil || v != 0x12345678 {
		t.Errorf("ReadU32: got 0x%x, %v", v, err)
	}

	if err := mem.WriteU64(8, 0x123456789ABCDEF0); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}
	if v, err := mem.ReadU64(8); err != nil || v != 0x123456789ABCDEF0 {
		t.Errorf("ReadU64: got 0x%x, %v", v, err)
	}
}
