package jit

import "github.com/tinyrange/rvjit/internal/arm64"

// hostPool is the set of host registers handed out to guest registers
// within a block. All are callee-saved, so compiled code can hold live
// values across the refill stub call. X26 and X27 are reserved for the
// state and memory base pointers; X28 is the Go runtime's g register
// and X18 the platform register, neither is ever touched.
var hostPool = [...]arm64.Reg{
	arm64.X19, arm64.X20, arm64.X21, arm64.X22,
	arm64.X23, arm64.X24, arm64.X25,
}

const (
	regState = arm64.X26 // guest State pointer
	regMem   = arm64.X27 // guest RAM base
)

// regAlloc maps guest registers onto hostPool for the duration of one
// block. Eviction walks the pool round-robin; dirty values are written
// back to the State on eviction and at every block exit.
type regAlloc struct {
	a     *blockAsm
	g2h   [32]int8
	h2g   [len(hostPool)]int8
	dirty uint8
	next  int
}

func (ra *regAlloc) reset(a *blockAsm) {
	ra.a = a
	for i := range ra.g2h {
		ra.g2h[i] = -1
	}
	for i := range ra.h2g {
		ra.h2g[i] = -1
	}
	ra.dirty = 0
	ra.next = 0
}

func isPinned(r arm64.Reg, pinned []arm64.Reg) bool {
	for _, p := range pinned {
		if p == r {
			return true
		}
	}
	return false
}

// evict picks a pool slot, spilling its current occupant if dirty.
// Slots holding pinned registers are skipped.
func (ra *regAlloc) evict(pinned []arm64.Reg) int {
	for range hostPool {
		idx := ra.next
		ra.next = (ra.next + 1) % len(hostPool)
		if isPinned(hostPool[idx], pinned) {
			continue
		}
		if g := ra.h2g[idx]; g >= 0 {
			if ra.dirty&(1<<idx) != 0 {
				ra.a.op(arm64.StrImm(hostPool[idx], regState, uint32(g)*8))
				ra.dirty &^= 1 << idx
			}
			ra.g2h[g] = -1
			ra.h2g[idx] = -1
		}
		return idx
	}
	panic("jit: all host registers pinned")
}

func (ra *regAlloc) bind(g uint8, idx int) arm64.Reg {
	ra.g2h[g] = int8(idx)
	ra.h2g[idx] = int8(g)
	return hostPool[idx]
}

// src returns a host register holding guest register g, loading it
// from the State if needed. Guest x0 maps to the zero register.
func (ra *regAlloc) src(g uint8, pinned ...arm64.Reg) arm64.Reg {
	if g == 0 {
		return arm64.XZR
	}
	if idx := ra.g2h[g]; idx >= 0 {
		return hostPool[idx]
	}
	idx := ra.evict(pinned)
	r := ra.bind(g, idx)
	ra.a.op(arm64.LdrImm(r, regState, uint32(g)*8))
	return r
}

// dst returns a host register for writing guest register g and marks
// it dirty. The previous value is not loaded. Writes to guest x0 go to
// the zero register and vanish.
func (ra *regAlloc) dst(g uint8, pinned ...arm64.Reg) arm64.Reg {
	if g == 0 {
		return arm64.XZR
	}
	idx := ra.g2h[g]
	if idx < 0 {
		idx = int8(ra.evict(pinned))
		ra.bind(g, int(idx))
	}
	ra.dirty |= 1 << uint(idx)
	return hostPool[idx]
}

// flush writes every dirty guest register back to the State. Bindings
// stay valid, so values remain readable in their host registers.
func (ra *regAlloc) flush() {
	for idx, g := range ra.h2g {
		if g >= 0 && ra.dirty&(1<<idx) != 0 {
			ra.a.op(arm64.StrImm(hostPool[idx], regState, uint32(g)*8))
		}
	}
	ra.dirty = 0
}
