// Package arm64 encodes the AArch64 instruction subset the translator
// emits. Every encoder returns the 32-bit word plus an error for
// out-of-range operands; nothing here touches memory.
package arm64

import "fmt"

// Reg is a general-purpose register number. Encoding 31 is XZR for
// data-processing operands but SP in the immediate arithmetic forms,
// so AddImm, SubImm and CmpImm reject it; every other encoder treats
// it as the zero register.
type Reg uint8

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	XZR
)

// LR is the link register.
const LR = X30

func (r Reg) String() string {
	if r == XZR {
		return "xzr"
	}
	return fmt.Sprintf("x%d", uint8(r))
}

// Cond is a condition code for B.cond and CSET.
type Cond uint8

const (
	EQ Cond = 0b0000
	NE Cond = 0b0001
	HS Cond = 0b0010 // unsigned >=
	LO Cond = 0b0011 // unsigned <
	MI Cond = 0b0100
	PL Cond = 0b0101
	VS Cond = 0b0110
	VC Cond = 0b0111
	HI Cond = 0b1000 // unsigned >
	LS Cond = 0b1001 // unsigned <=
	GE Cond = 0b1010 // signed >=
	LT Cond = 0b1011 // signed <
	GT Cond = 0b1100 // signed >
	LE Cond = 0b1101 // signed <=
	AL Cond = 0b1110
)

// Invert returns the negated condition.
func (c Cond) Invert() Cond {
	return c ^ 1
}

func (c Cond) String() string {
	names := [...]string{"eq", "ne", "hs", "lo", "mi", "pl", "vs", "vc",
		"hi", "ls", "ge", "lt", "gt", "le", "al", "nv"}
	return names[c&0xf]
}
