package jit

import "sync/atomic"

// TLB geometry. The table is direct-mapped on the page number; entries
// are two words so the index scales by a simple shift in emitted code.
const (
	pageShift  = 12
	tlbBits    = 6
	tlbEntries = 1 << tlbBits
)

// tlbEntry caches one guest page translation. Tag is the guest page
// number (vaddr >> 12); HostBase the page-aligned offset of that page
// from the start of guest RAM.
type tlbEntry struct {
	Tag      uint64
	HostBase uint64
}

const tlbTagInvalid = ^uint64(0)

// State is the guest CPU state shared between Go and emitted code. The
// emitted code reaches every field through a single reserved pointer
// register, so the whole struct must stay within the reach of scaled
// 12-bit load/store offsets. Field offsets are taken with
// unsafe.Offsetof in translate.go; do not reorder without checking
// them.
type State struct {
	// X holds the guest integer registers. X[0] is kept zero.
	X [32]uint64

	// PC is the guest program counter. Compiled blocks store their own
	// start address here on entry so faults and interrupts always see a
	// meaningful value, and store the target before every exit.
	PC uint64

	// IntrPending is polled at every block entry. Set asynchronously
	// with SetInterrupt.
	IntrPending uint32
	_           uint32

	// FaultAddr is the guest address of the last faulting access.
	FaultAddr uint64

	// TLBRefills counts translation misses taken through the refill
	// stub.
	TLBRefills uint64

	// TLB is the software translation cache, embedded so emitted code
	// can index it off the state pointer.
	TLB [tlbEntries]tlbEntry
}

// Reset clears registers and invalidates the TLB.
func (s *State) Reset() {
	*s = State{}
	s.FlushTLB()
}

// FlushTLB invalidates every TLB entry.
func (s *State) FlushTLB() {
	for i := range s.TLB {
		s.TLB[i] = tlbEntry{Tag: tlbTagInvalid}
	}
}

// SetInterrupt flags a pending interrupt. Safe to call from another
// goroutine; compiled code observes the flag at its next block entry.
func (s *State) SetInterrupt() {
	atomic.StoreUint32(&s.IntrPending, 1)
}

// ClearInterrupt acknowledges a pending interrupt.
func (s *State) ClearInterrupt() {
	atomic.StoreUint32(&s.IntrPending, 0)
}

// InterruptPending reports whether an interrupt is flagged.
func (s *State) InterruptPending() bool {
	return atomic.LoadUint32(&s.IntrPending) != 0
}

// ReadReg returns guest register n.
func (s *State) ReadReg(n uint8) uint64 {
	return s.X[n&31]
}

// WriteReg sets guest register n; writes to x0 are discarded.
func (s *State) WriteReg(n uint8, v uint64) {
	if n&31 != 0 {
		s.X[n&31] = v
	}
}
