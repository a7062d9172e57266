package rv64

import (
	"errors"
	"fmt"
)

// ErrEnvCall is returned by the interpreter for ECALL; the caller
// services the call and resumes past the instruction.
var ErrEnvCall = errors.New("environment call")

// ErrBreakpoint is returned by the interpreter for EBREAK.
var ErrBreakpoint = errors.New("breakpoint")

// IllegalInstructionError reports an encoding that does not decode to a
// supported instruction.
type IllegalInstructionError struct {
	Insn uint32
	PC   uint64
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction %#08x at pc=%#x", e.Insn, e.PC)
}

// AccessFaultError reports a guest memory access outside the mapped
// address range.
type AccessFaultError struct {
	Addr uint64
}

func (e *AccessFaultError) Error() string {
	return fmt.Sprintf("memory access fault at %#x", e.Addr)
}

// EncodeError reports an instruction record that cannot be encoded,
// usually an out-of-range immediate.
type EncodeError struct {
	Op     Op
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode %s: %s", e.Op, e.Reason)
}
