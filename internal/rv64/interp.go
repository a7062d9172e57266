package rv64

import "math/bits"

// Memory is the guest physical memory view the interpreter executes
// against. All addresses are guest addresses.
type Memory interface {
	ReadU8(addr uint64) (uint8, error)
	ReadU16(addr uint64) (uint16, error)
	ReadU32(addr uint64) (uint32, error)
	ReadU64(addr uint64) (uint64, error)
	WriteU8(addr uint64, value uint8) error
	WriteU16(addr uint64, value uint16) error
	WriteU32(addr uint64, value uint32) error
	WriteU64(addr uint64, value uint64) error
}

// Interp is a single-step reference interpreter. It executes the same
// RV64IMC subset the translator compiles, plus the AMO and CSR forms
// the translator punts on.
type Interp struct {
	Mem Memory

	csr      map[uint16]uint64
	resValid bool
	resAddr  uint64
}

func NewInterp(mem Memory) *Interp {
	return &Interp{Mem: mem, csr: make(map[uint16]uint64)}
}

// Fetch reads and decodes the instruction at pc, expanding compressed
// encodings.
func (ip *Interp) Fetch(pc uint64) (Inst, error) {
	low, err := ip.Mem.ReadU16(pc)
	if err != nil {
		return Inst{}, err
	}
	if IsCompressed(low) {
		word, err := ExpandCompressed(low, pc)
		if err != nil {
			return Inst{}, err
		}
		in, err := Decode(word, pc)
		if err != nil {
			return Inst{}, err
		}
		in.Len = 2
		return in, nil
	}
	word, err := ip.Mem.ReadU32(pc)
	if err != nil {
		return Inst{}, err
	}
	return Decode(word, pc)
}

func setReg(x *[32]uint64, rd uint8, value uint64) {
	if rd != 0 {
		x[rd] = value
	}
}

func mulh64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	hi -= uint64(int64(a)>>63) & b
	hi -= uint64(int64(b)>>63) & a
	return hi
}

func mulhu64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

func mulhsu64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi - uint64(int64(a)>>63)&b
}

func div64(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == -1<<63 && b == -1:
		return a
	}
	return a / b
}

func rem64(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == -1<<63 && b == -1:
		return 0
	}
	return a % b
}

func divu64(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remu64(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

// Step executes one decoded instruction against x and returns the next
// PC. ECALL and EBREAK return ErrEnvCall and ErrBreakpoint with the PC
// unadvanced; the caller resumes past them.
func (ip *Interp) Step(x *[32]uint64, pc uint64, in Inst) (uint64, error) {
	next := in.Next(pc)
	a := x[in.Rs1]
	b := x[in.Rs2]
	imm := in.Imm

	switch in.Op {
	case OpLUI:
		setReg(x, in.Rd, uint64(imm))
	case OpAUIPC:
		setReg(x, in.Rd, pc+uint64(imm))

	case OpJAL:
		setReg(x, in.Rd, next)
		next = pc + uint64(imm)
	case OpJALR:
		target := (a + uint64(imm)) &^ 1
		setReg(x, in.Rd, next)
		next = target

	case OpBEQ:
		if a == b {
			next = pc + uint64(imm)
		}
	case OpBNE:
		if a != b {
			next = pc + uint64(imm)
		}
	case OpBLT:
		if int64(a) < int64(b) {
			next = pc + uint64(imm)
		}
	case OpBGE:
		if int64(a) >= int64(b) {
			next = pc + uint64(imm)
		}
	case OpBLTU:
		if a < b {
			next = pc + uint64(imm)
		}
	case OpBGEU:
		if a >= b {
			next = pc + uint64(imm)
		}

	case OpLB:
		v, err := ip.Mem.ReadU8(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(int64(int8(v))))
	case OpLH:
		v, err := ip.Mem.ReadU16(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(int64(int16(v))))
	case OpLW:
		v, err := ip.Mem.ReadU32(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(int64(int32(v))))
	case OpLD:
		v, err := ip.Mem.ReadU64(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, v)
	case OpLBU:
		v, err := ip.Mem.ReadU8(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(v))
	case OpLHU:
		v, err := ip.Mem.ReadU16(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(v))
	case OpLWU:
		v, err := ip.Mem.ReadU32(a + uint64(imm))
		if err != nil {
			return pc, err
		}
		setReg(x, in.Rd, uint64(v))

	case OpSB:
		if err := ip.Mem.WriteU8(a+uint64(imm), uint8(b)); err != nil {
			return pc, err
		}
	case OpSH:
		if err := ip.Mem.WriteU16(a+uint64(imm), uint16(b)); err != nil {
			return pc, err
		}
	case OpSW:
		if err := ip.Mem.WriteU32(a+uint64(imm), uint32(b)); err != nil {
			return pc, err
		}
	case OpSD:
		if err := ip.Mem.WriteU64(a+uint64(imm), b); err != nil {
			return pc, err
		}

	case OpADDI:
		setReg(x, in.Rd, a+uint64(imm))
	case OpSLTI:
		setReg(x, in.Rd, boolToReg(int64(a) < imm))
	case OpSLTIU:
		setReg(x, in.Rd, boolToReg(a < uint64(imm)))
	case OpXORI:
		setReg(x, in.Rd, a^uint64(imm))
	case OpORI:
		setReg(x, in.Rd, a|uint64(imm))
	case OpANDI:
		setReg(x, in.Rd, a&uint64(imm))
	case OpSLLI:
		setReg(x, in.Rd, a<<uint(imm))
	case OpSRLI:
		setReg(x, in.Rd, a>>uint(imm))
	case OpSRAI:
		setReg(x, in.Rd, uint64(int64(a)>>uint(imm)))

	case OpADDIW:
		setReg(x, in.Rd, uint64(int64(int32(a)+int32(imm))))
	case OpSLLIW:
		setReg(x, in.Rd, uint64(int64(int32(a)<<uint(imm))))
	case OpSRLIW:
		setReg(x, in.Rd, uint64(int64(int32(uint32(a)>>uint(imm)))))
	case OpSRAIW:
		setReg(x, in.Rd, uint64(int64(int32(a)>>uint(imm))))

	case OpADD:
		setReg(x, in.Rd, a+b)
	case OpSUB:
		setReg(x, in.Rd, a-b)
	case OpSLL:
		setReg(x, in.Rd, a<<(b&0x3f))
	case OpSLT:
		setReg(x, in.Rd, boolToReg(int64(a) < int64(b)))
	case OpSLTU:
		setReg(x, in.Rd, boolToReg(a < b))
	case OpXOR:
		setReg(x, in.Rd, a^b)
	case OpSRL:
		setReg(x, in.Rd, a>>(b&0x3f))
	case OpSRA:
		setReg(x, in.Rd, uint64(int64(a)>>(b&0x3f)))
	case OpOR:
		setReg(x, in.Rd, a|b)
	case OpAND:
		setReg(x, in.Rd, a&b)

	case OpADDW:
		setReg(x, in.Rd, uint64(int64(int32(a)+int32(b))))
	case OpSUBW:
		setReg(x, in.Rd, uint64(int64(int32(a)-int32(b))))
	case OpSLLW:
		setReg(x, in.Rd, uint64(int64(int32(a)<<(b&0x1f))))
	case OpSRLW:
		setReg(x, in.Rd, uint64(int64(int32(uint32(a)>>(b&0x1f)))))
	case OpSRAW:
		setReg(x, in.Rd, uint64(int64(int32(a)>>(b&0x1f))))

	case OpMUL:
		setReg(x, in.Rd, a*b)
	case OpMULH:
		setReg(x, in.Rd, mulh64(a, b))
	case OpMULHSU:
		setReg(x, in.Rd, mulhsu64(a, b))
	case OpMULHU:
		setReg(x, in.Rd, mulhu64(a, b))
	case OpDIV:
		setReg(x, in.Rd, uint64(div64(int64(a), int64(b))))
	case OpDIVU:
		setReg(x, in.Rd, divu64(a, b))
	case OpREM:
		setReg(x, in.Rd, uint64(rem64(int64(a), int64(b))))
	case OpREMU:
		setReg(x, in.Rd, remu64(a, b))
	case OpMULW:
		setReg(x, in.Rd, uint64(int64(int32(a)*int32(b))))
	case OpDIVW:
		setReg(x, in.Rd, uint64(int64(int32(div64(int64(int32(a)), int64(int32(b)))))))
	case OpDIVUW:
		setReg(x, in.Rd, uint64(int64(int32(divu64(uint64(uint32(a)), uint64(uint32(b)))))))
	case OpREMW:
		setReg(x, in.Rd, uint64(int64(int32(rem64(int64(int32(a)), int64(int32(b)))))))
	case OpREMUW:
		setReg(x, in.Rd, uint64(int64(int32(remu64(uint64(uint32(a)), uint64(uint32(b)))))))

	case OpAMOW, OpAMOD:
		return ip.stepAMO(x, pc, in)

	case OpFENCE, OpFENCEI:
		// No-ops for a single hart with a coherent flat memory.

	case OpECALL:
		return pc, ErrEnvCall
	case OpEBREAK:
		return pc, ErrBreakpoint

	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		ip.stepCSR(x, in)

	default:
		return pc, &IllegalInstructionError{Insn: in.Raw, PC: pc}
	}

	return next, nil
}

func boolToReg(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// stepCSR implements the Zicsr forms against a flat CSR store.
// Unimplemented CSRs read as zero.
func (ip *Interp) stepCSR(x *[32]uint64, in Inst) {
	addr := uint16(in.Imm) & 0xfff
	old := ip.csr[addr]

	var operand uint64
	if in.Op == OpCSRRWI || in.Op == OpCSRRSI || in.Op == OpCSRRCI {
		operand = uint64(in.Rs1)
	} else {
		operand = x[in.Rs1]
	}

	switch in.Op {
	case OpCSRRW, OpCSRRWI:
		ip.csr[addr] = operand
	case OpCSRRS, OpCSRRSI:
		if in.Rs1 != 0 {
			ip.csr[addr] = old | operand
		}
	case OpCSRRC, OpCSRRCI:
		if in.Rs1 != 0 {
			ip.csr[addr] = old &^ operand
		}
	}
	setReg(x, in.Rd, old)
}

// AMO funct5 values
const (
	amoLR   = 0b00010
	amoSC   = 0b00011
	amoSwap = 0b00001
	amoAdd  = 0b00000
	amoXor  = 0b00100
	amoAnd  = 0b01100
	amoOr   = 0b01000
	amoMin  = 0b10000
	amoMax  = 0b10100
	amoMinU = 0b11000
	amoMaxU = 0b11100
)

func (ip *Interp) stepAMO(x *[32]uint64, pc uint64, in Inst) (uint64, error) {
	addr := x[in.Rs1]
	src := x[in.Rs2]
	wide := in.Op == OpAMOD

	load := func() (uint64, error) {
		if wide {
			return ip.Mem.ReadU64(addr)
		}
		v, err := ip.Mem.ReadU32(addr)
		return uint64(int64(int32(v))), err
	}
	store := func(v uint64) error {
		if wide {
			return ip.Mem.WriteU64(addr, v)
		}
		return ip.Mem.WriteU32(addr, uint32(v))
	}

	funct5 := uint32(in.Imm) >> 2

	if funct5 == amoLR {
		v, err := load()
		if err != nil {
			return pc, err
		}
		ip.resValid = true
		ip.resAddr = addr
		setReg(x, in.Rd, v)
		return in.Next(pc), nil
	}

	if funct5 == amoSC {
		if !ip.resValid || ip.resAddr != addr {
			ip.resValid = false
			setReg(x, in.Rd, 1)
			return in.Next(pc), nil
		}
		ip.resValid = false
		if err := store(src); err != nil {
			return pc, err
		}
		setReg(x, in.Rd, 0)
		return in.Next(pc), nil
	}

	old, err := load()
	if err != nil {
		return pc, err
	}

	var result uint64
	opA, opB := old, src
	if !wide {
		opA = uint64(int64(int32(old)))
		opB = uint64(int64(int32(src)))
	}

	switch funct5 {
	case amoSwap:
		result = src
	case amoAdd:
		result = old + src
	case amoXor:
		result = old ^ src
	case amoAnd:
		result = old & src
	case amoOr:
		result = old | src
	case amoMin:
		result = opB
		if int64(opA) < int64(opB) {
			result = opA
		}
	case amoMax:
		result = opB
		if int64(opA) > int64(opB) {
			result = opA
		}
	case amoMinU:
		result = opB
		if opA < opB {
			result = opA
		}
	case amoMaxU:
		result = opB
		if opA > opB {
			result = opA
		}
	default:
		return pc, &IllegalInstructionError{Insn: in.Raw, PC: pc}
	}

	if err := store(result); err != nil {
		return pc, err
	}
	setReg(x, in.Rd, old)
	return in.Next(pc), nil
}
