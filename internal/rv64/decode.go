package rv64

// Major opcode constants
const (
	opcLoad    = 0b0000011
	opcMiscMem = 0b0001111
	opcOpImm   = 0b0010011
	opcAuipc   = 0b0010111
	opcOpImm32 = 0b0011011
	opcStore   = 0b0100011
	opcAMO     = 0b0101111
	opcOp      = 0b0110011
	opcLui     = 0b0110111
	opcOp32    = 0b0111011
	opcBranch  = 0b1100011
	opcJalr    = 0b1100111
	opcJal     = 0b1101111
	opcSystem  = 0b1110011
)

func signExtend(value uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(value<<shift) >> shift
}

// Instruction field extraction
func opcode(insn uint32) uint32 { return insn & 0x7f }
func rdOf(insn uint32) uint8    { return uint8((insn >> 7) & 0x1f) }
func funct3(insn uint32) uint32 { return (insn >> 12) & 0x7 }
func rs1Of(insn uint32) uint8   { return uint8((insn >> 15) & 0x1f) }
func rs2Of(insn uint32) uint8   { return uint8((insn >> 20) & 0x1f) }
func funct7(insn uint32) uint32 { return (insn >> 25) & 0x7f }

// Immediate extraction
func immI(insn uint32) int64 {
	return signExtend(uint64(insn>>20), 12)
}

func immS(insn uint32) int64 {
	imm := (insn >> 7) & 0x1f
	imm |= ((insn >> 25) & 0x7f) << 5
	return signExtend(uint64(imm), 12)
}

func immB(insn uint32) int64 {
	imm := ((insn >> 8) & 0xf) << 1
	imm |= ((insn >> 25) & 0x3f) << 5
	imm |= ((insn >> 7) & 0x1) << 11
	imm |= ((insn >> 31) & 0x1) << 12
	return signExtend(uint64(imm), 13)
}

func immU(insn uint32) int64 {
	return signExtend(uint64(insn&0xfffff000), 32)
}

func immJ(insn uint32) int64 {
	imm := ((insn >> 21) & 0x3ff) << 1
	imm |= ((insn >> 20) & 0x1) << 11
	imm |= ((insn >> 12) & 0xff) << 12
	imm |= ((insn >> 31) & 0x1) << 20
	return signExtend(uint64(imm), 21)
}

// IsCompressed reports whether the low halfword begins a 16-bit
// instruction.
func IsCompressed(low uint16) bool {
	return low&0x3 != 0x3
}

// Decode decodes a full 32-bit instruction word. Compressed
// instructions must be expanded with ExpandCompressed first; the caller
// then overrides Len. pc is used only for error reporting.
func Decode(insn uint32, pc uint64) (Inst, error) {
	in := Inst{
		Rd:  rdOf(insn),
		Rs1: rs1Of(insn),
		Rs2: rs2Of(insn),
		Raw: insn,
		Len: 4,
	}

	illegal := func() (Inst, error) {
		return Inst{Raw: insn, Len: 4}, &IllegalInstructionError{Insn: insn, PC: pc}
	}

	switch opcode(insn) {
	case opcLui:
		in.Op, in.Imm = OpLUI, immU(insn)

	case opcAuipc:
		in.Op, in.Imm = OpAUIPC, immU(insn)

	case opcJal:
		in.Op, in.Imm = OpJAL, immJ(insn)

	case opcJalr:
		if funct3(insn) != 0 {
			return illegal()
		}
		in.Op, in.Imm = OpJALR, immI(insn)

	case opcBranch:
		in.Imm = immB(insn)
		switch funct3(insn) {
		case 0b000:
			in.Op = OpBEQ
		case 0b001:
			in.Op = OpBNE
		case 0b100:
			in.Op = OpBLT
		case 0b101:
			in.Op = OpBGE
		case 0b110:
			in.Op = OpBLTU
		case 0b111:
			in.Op = OpBGEU
		default:
			return illegal()
		}

	case opcLoad:
		in.Imm = immI(insn)
		switch funct3(insn) {
		case 0b000:
			in.Op = OpLB
		case 0b001:
			in.Op = OpLH
		case 0b010:
			in.Op = OpLW
		case 0b011:
			in.Op = OpLD
		case 0b100:
			in.Op = OpLBU
		case 0b101:
			in.Op = OpLHU
		case 0b110:
			in.Op = OpLWU
		default:
			return illegal()
		}

	case opcStore:
		in.Imm = immS(insn)
		switch funct3(insn) {
		case 0b000:
			in.Op = OpSB
		case 0b001:
			in.Op = OpSH
		case 0b010:
			in.Op = OpSW
		case 0b011:
			in.Op = OpSD
		default:
			return illegal()
		}

	case opcOpImm:
		in.Imm = immI(insn)
		switch funct3(insn) {
		case 0b000:
			in.Op = OpADDI
		case 0b010:
			in.Op = OpSLTI
		case 0b011:
			in.Op = OpSLTIU
		case 0b100:
			in.Op = OpXORI
		case 0b110:
			in.Op = OpORI
		case 0b111:
			in.Op = OpANDI
		case 0b001:
			if insn>>26 != 0 {
				return illegal()
			}
			in.Op, in.Imm = OpSLLI, int64((insn>>20)&0x3f)
		case 0b101:
			switch insn >> 26 {
			case 0b000000:
				in.Op = OpSRLI
			case 0b010000:
				in.Op = OpSRAI
			default:
				return illegal()
			}
			in.Imm = int64((insn >> 20) & 0x3f)
		}

	case opcOpImm32:
		in.Imm = immI(insn)
		switch funct3(insn) {
		case 0b000:
			in.Op = OpADDIW
		case 0b001:
			if funct7(insn) != 0 {
				return illegal()
			}
			in.Op, in.Imm = OpSLLIW, int64((insn>>20)&0x1f)
		case 0b101:
			switch funct7(insn) {
			case 0b0000000:
				in.Op = OpSRLIW
			case 0b0100000:
				in.Op = OpSRAIW
			default:
				return illegal()
			}
			in.Imm = int64((insn >> 20) & 0x1f)
		default:
			return illegal()
		}

	case opcOp:
		switch funct7(insn) {
		case 0b0000000:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpADD
			case 0b001:
				in.Op = OpSLL
			case 0b010:
				in.Op = OpSLT
			case 0b011:
				in.Op = OpSLTU
			case 0b100:
				in.Op = OpXOR
			case 0b101:
				in.Op = OpSRL
			case 0b110:
				in.Op = OpOR
			case 0b111:
				in.Op = OpAND
			}
		case 0b0100000:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpSUB
			case 0b101:
				in.Op = OpSRA
			default:
				return illegal()
			}
		case 0b0000001:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpMUL
			case 0b001:
				in.Op = OpMULH
			case 0b010:
				in.Op = OpMULHSU
			case 0b011:
				in.Op = OpMULHU
			case 0b100:
				in.Op = OpDIV
			case 0b101:
				in.Op = OpDIVU
			case 0b110:
				in.Op = OpREM
			case 0b111:
				in.Op = OpREMU
			}
		default:
			return illegal()
		}

	case opcOp32:
		switch funct7(insn) {
		case 0b0000000:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpADDW
			case 0b001:
				in.Op = OpSLLW
			case 0b101:
				in.Op = OpSRLW
			default:
				return illegal()
			}
		case 0b0100000:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpSUBW
			case 0b101:
				in.Op = OpSRAW
			default:
				return illegal()
			}
		case 0b0000001:
			switch funct3(insn) {
			case 0b000:
				in.Op = OpMULW
			case 0b100:
				in.Op = OpDIVW
			case 0b101:
				in.Op = OpDIVUW
			case 0b110:
				in.Op = OpREMW
			case 0b111:
				in.Op = OpREMUW
			default:
				return illegal()
			}
		default:
			return illegal()
		}

	case opcAMO:
		in.Imm = int64(funct7(insn))
		switch funct3(insn) {
		case 0b010:
			in.Op = OpAMOW
		case 0b011:
			in.Op = OpAMOD
		default:
			return illegal()
		}

	case opcMiscMem:
		switch funct3(insn) {
		case 0b000:
			in.Op, in.Imm = OpFENCE, int64(insn>>20)
		case 0b001:
			in.Op = OpFENCEI
		default:
			return illegal()
		}

	case opcSystem:
		switch funct3(insn) {
		case 0b000:
			switch insn >> 20 {
			case 0:
				in.Op = OpECALL
			case 1:
				in.Op = OpEBREAK
			default:
				return illegal()
			}
		case 0b001:
			in.Op, in.Imm = OpCSRRW, int64(insn>>20)
		case 0b010:
			in.Op, in.Imm = OpCSRRS, int64(insn>>20)
		case 0b011:
			in.Op, in.Imm = OpCSRRC, int64(insn>>20)
		case 0b101:
			in.Op, in.Imm = OpCSRRWI, int64(insn>>20)
		case 0b110:
			in.Op, in.Imm = OpCSRRSI, int64(insn>>20)
		case 0b111:
			in.Op, in.Imm = OpCSRRCI, int64(insn>>20)
		default:
			return illegal()
		}

	default:
		return illegal()
	}

	return in, nil
}
