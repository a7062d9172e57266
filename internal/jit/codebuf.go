package jit

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// codeBuffer is the append-only region holding emitted host code. It
// alternates between writable (during translation and backpatching)
// and executable (while guest code runs); it is never both.
type codeBuffer struct {
	mem    []byte
	cursor int
	exec   bool
	mapped bool
}

func newCodeBuffer(size int) (*codeBuffer, error) {
	if size <= 0 || size%(1<<pageShift) != 0 {
		return nil, fmt.Errorf("code buffer size %#x is not a multiple of the page size", size)
	}
	mem, mapped, err := mapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("mapping code buffer: %w", err)
	}
	return &codeBuffer{mem: mem, mapped: mapped}, nil
}

func (b *codeBuffer) release() error {
	if !b.mapped {
		b.mem = nil
		return nil
	}
	mem := b.mem
	b.mem = nil
	b.mapped = false
	return unmapAnon(mem)
}

// remaining returns the free space in bytes.
func (b *codeBuffer) remaining() int {
	return len(b.mem) - b.cursor
}

// emit32 appends one instruction word and returns its byte offset.
// The caller must have reserved space beforehand; running out here is
// a bookkeeping bug.
func (b *codeBuffer) emit32(w uint32) int {
	if b.cursor+4 > len(b.mem) {
		panic(fmt.Sprintf("jit: code buffer overflow at offset %#x", b.cursor))
	}
	off := b.cursor
	binary.LittleEndian.PutUint32(b.mem[off:], w)
	b.cursor += 4
	return off
}

// patch32 overwrites the instruction word at off.
func (b *codeBuffer) patch32(off int, w uint32) {
	binary.LittleEndian.PutUint32(b.mem[off:], w)
}

// word32 reads back the instruction word at off.
func (b *codeBuffer) word32(off int) uint32 {
	return binary.LittleEndian.Uint32(b.mem[off:])
}

// entry returns the host address of the instruction at off.
func (b *codeBuffer) entry(off int) uintptr {
	return uintptr(unsafe.Pointer(&b.mem[off]))
}

// beginWrite makes the buffer writable.
func (b *codeBuffer) beginWrite() error {
	if !b.exec {
		return nil
	}
	if err := protectRW(b.mem); err != nil {
		return fmt.Errorf("code buffer to RW: %w", err)
	}
	b.exec = false
	return nil
}

// finish seals the buffer executable and invalidates the instruction
// cache for everything written since lo.
func (b *codeBuffer) finish(lo int) error {
	if !b.exec {
		if err := protectRX(b.mem); err != nil {
			return fmt.Errorf("code buffer to RX: %w", err)
		}
		b.exec = true
	}
	if b.cursor > lo {
		icacheInvalidate(b.entry(lo), uintptr(b.cursor-lo))
	}
	return nil
}

// reset discards all emitted code.
func (b *codeBuffer) reset() error {
	if err := b.beginWrite(); err != nil {
		return err
	}
	b.cursor = 0
	return nil
}
