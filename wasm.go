package wasmalloc

import (
	"encoding/binary"

	"github.com/wippyai/wasm-alloc/errors"
)

// Memory represents WASM linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// SliceMemory is a fixed-size Memory backed by a Go byte slice.
// Read returns a view of the backing slice, not a copy.
type SliceMemory []byte

// NewSliceMemory allocates a zeroed SliceMemory of size bytes.
func NewSliceMemory(size uint32) SliceMemory {
	return make(SliceMemory, size)
}

func (m SliceMemory) Size() uint32 {
	return uint32(len(m))
}

func (m SliceMemory) bounds(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m)) {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, uint64(offset), uint64(length))
	}
	return m[offset:end:end], nil
}

func (m SliceMemory) Read(offset uint32, length uint32) ([]byte, error) {
	return m.bounds(offset, length)
}

func (m SliceMemory) Write(offset uint32, data []byte) error {
	b, err := m.bounds(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m SliceMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.bounds(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m SliceMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.bounds(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m SliceMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.bounds(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m SliceMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.bounds(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m SliceMemory) WriteU8(offset uint32, value uint8) error {
	b, err := m.bounds(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (m SliceMemory) WriteU16(offset uint32, value uint16) error {
	b, err := m.bounds(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (m SliceMemory) WriteU32(offset uint32, value uint32) error {
	b, err := m.bounds(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (m SliceMemory) WriteU64(offset uint32, value uint64) error {
	b, err := m.bounds(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}

// Zero clears length bytes at offset through mem.
func Zero(mem Memory, offset, length uint32) error {
	const chunk = 4096
	var zeros [chunk]byte
	for length > 0 {
		n := min(length, chunk)
		if err := mem.Write(offset, zeros[:n]); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}
