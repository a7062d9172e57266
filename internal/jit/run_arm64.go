//go:build (darwin || linux) && arm64

package jit

import "unsafe"

func (e *Engine) enter(off int) (ExitReason, error) {
	r := enterCompiled(e.buf.entry(off), unsafe.Pointer(e.state), e.mem.Base())
	return ExitReason(r), nil
}

// enterCompiled switches to the emitted-code register convention (X26
// guest state, X27 guest RAM base) and jumps to entry. Compiled blocks
// come back with the exit reason in X0. Implemented in
// trampoline_arm64.s.
func enterCompiled(entry uintptr, state unsafe.Pointer, membase uintptr) uint64
