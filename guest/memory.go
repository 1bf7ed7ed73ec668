package guest

import (
	"github.com/tetratelabs/wazero/api"

	wasmalloc "github.com/wippyai/wasm-alloc"
	"github.com/wippyai/wasm-alloc/errors"
)

// Memory adapts wazero api.Memory to wasmalloc.Memory.
type Memory struct {
	mem api.Memory
}

var (
	_ wasmalloc.Memory      = (*Memory)(nil)
	_ wasmalloc.MemorySizer = (*Memory)(nil)
)

// WrapMemory returns nil for a nil memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{mem: mem}
}

// Size returns the current size of guest memory in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns length bytes at offset, or an out-of-bounds error when the
// range leaves guest memory. The slice aliases guest memory.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), uint64(length))
	}
	return data, nil
}

// Write copies data into guest memory at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), uint64(len(data)))
	}
	return nil
}

// ReadU8 reads one byte at offset.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 1)
	}
	return v, nil
}

// ReadU16 reads a little-endian uint16 at offset.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 2)
	}
	return v, nil
}

// ReadU32 reads a little-endian uint32 at offset.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 4)
	}
	return v, nil
}

// ReadU64 reads a little-endian uint64 at offset.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 8)
	}
	return v, nil
}

// WriteU8 writes one byte at offset.
func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 1)
	}
	return nil
}

// WriteU16 writes value little-endian at offset.
func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 2)
	}
	return nil
}

// WriteU32 writes value little-endian at offset.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 4)
	}
	return nil
}

// WriteU64 writes value little-endian at offset.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), 8)
	}
	return nil
}
