package jit

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/tinyrange/rvjit/internal/rv64"
)

// Memory is the guest's flat physical RAM, mapped at rv64.RAMBase in
// the guest address space. Compiled code addresses it as host base +
// (guest address - RAMBase); the Go side goes through the bounds
// checked accessors below, which satisfy rv64.Memory.
type Memory struct {
	data   []byte // guest-visible RAM
	raw    []byte // full mapping, one slack page past the end
	mapped bool
}

func newMemory(size uint64) (*Memory, error) {
	if size == 0 || size%(1<<pageShift) != 0 {
		return nil, fmt.Errorf("memory size %#x is not a multiple of the page size", size)
	}
	// One extra mapped page so an unaligned access in the last guest
	// page cannot run off the host mapping; the TLB bounds check still
	// rejects anything starting past the end.
	raw, mapped, err := mapAnon(int(size) + 1<<pageShift)
	if err != nil {
		return nil, fmt.Errorf("mapping guest memory: %w", err)
	}
	return &Memory{data: raw[:size], raw: raw, mapped: mapped}, nil
}

func (m *Memory) release() error {
	raw := m.raw
	m.data = nil
	m.raw = nil
	if !m.mapped {
		return nil
	}
	m.mapped = false
	return unmapAnon(raw)
}

// Size returns the RAM size in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.data)) }

// Base returns the host address of the first RAM byte.
func (m *Memory) Base() uintptr {
	return uintptr(unsafe.Pointer(&m.data[0]))
}

func (m *Memory) offset(addr, n uint64) (uint64, error) {
	off := addr - rv64.RAMBase
	if addr < rv64.RAMBase || off+n > uint64(len(m.data)) || off+n < off {
		return 0, &rv64.AccessFaultError{Addr: addr}
	}
	return off, nil
}

func (m *Memory) ReadU8(addr uint64) (uint8, error) {
	off, err := m.offset(addr, 1)
	if err != nil {
		return 0, err
	}
	return m.data[off], nil
}

func (m *Memory) ReadU16(addr uint64) (uint16, error) {
	off, err := m.offset(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[off:]), nil
}

func (m *Memory) ReadU32(addr uint64) (uint32, error) {
	off, err := m.offset(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[off:]), nil
}

func (m *Memory) ReadU64(addr uint64) (uint64, error) {
	off, err := m.offset(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[off:]), nil
}

func (m *Memory) WriteU8(addr uint64, value uint8) error {
	off, err := m.offset(addr, 1)
	if err != nil {
		return err
	}
	m.data[off] = value
	return nil
}

func (m *Memory) WriteU16(addr uint64, value uint16) error {
	off, err := m.offset(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[off:], value)
	return nil
}

func (m *Memory) WriteU32(addr uint64, value uint32) error {
	off, err := m.offset(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[off:], value)
	return nil
}

func (m *Memory) WriteU64(addr uint64, value uint64) error {
	off, err := m.offset(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[off:], value)
	return nil
}

// WriteBytes copies p into guest memory at addr.
func (m *Memory) WriteBytes(addr uint64, p []byte) error {
	off, err := m.offset(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(m.data[off:], p)
	return nil
}

// ReadBytes fills p from guest memory at addr.
func (m *Memory) ReadBytes(addr uint64, p []byte) error {
	off, err := m.offset(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(p, m.data[off:])
	return nil
}

var _ rv64.Memory = (*Memory)(nil)
