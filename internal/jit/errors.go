package jit

import (
	"errors"
	"fmt"
)

// ErrHalt can be returned by a syscall handler to stop Run cleanly.
var ErrHalt = errors.New("halt requested")

// CompileError wraps a failure to translate the block starting at PC.
// Decode failures are recoverable; the dispatcher falls back to the
// interpreter for the offending instruction.
type CompileError struct {
	PC  uint64
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling block at pc=%#x: %v", e.PC, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// FaultError reports a guest memory access outside RAM, observed
// either by compiled code or by the interpreter.
type FaultError struct {
	PC   uint64
	Addr uint64
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("guest fault: access to %#x (block pc=%#x)", e.Addr, e.PC)
}
