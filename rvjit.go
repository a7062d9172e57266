// Package rvjit translates RV64 guest code to native AArch64 and runs
// it. An Engine owns the guest state, a flat RAM image and a
// translated-code cache; callers drive execution through Run and
// service the exits it reports.
package rvjit

import "github.com/tinyrange/rvjit/internal/jit"

// Engine compiles and runs guest code.
type Engine = jit.Engine

// Config configures an Engine.
type Config = jit.Config

// State is the guest CPU state: integer registers, PC and the
// interrupt flag.
type State = jit.State

// Memory is the guest's flat RAM.
type Memory = jit.Memory

// Stats is a snapshot of the engine's perf counters.
type Stats = jit.Stats

// ExitReason says why Run handed control back.
type ExitReason = jit.ExitReason

// FaultError reports a guest access outside RAM.
type FaultError = jit.FaultError

// CompileError reports a block that could not be translated.
type CompileError = jit.CompileError

// Exit reasons.
const (
	ExitBranch    = jit.ExitBranch
	ExitIndirect  = jit.ExitIndirect
	ExitSyscall   = jit.ExitSyscall
	ExitBreak     = jit.ExitBreak
	ExitCSR       = jit.ExitCSR
	ExitAtomic    = jit.ExitAtomic
	ExitIFence    = jit.ExitIFence
	ExitInterrupt = jit.ExitInterrupt
	ExitFault     = jit.ExitFault
)

// RAMBase is the guest address where RAM begins.
const RAMBase uint64 = jit.RAMBase

// ErrHalt stops Run cleanly when returned from a syscall handler.
var ErrHalt = jit.ErrHalt

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	return jit.New(cfg)
}
