package rv64

// Compressed instruction field extraction
func cFunct3(insn uint16) uint16 { return (insn >> 13) & 0x7 }

// 3-bit register fields, mapped to x8-x15
func cRdP(insn uint16) uint8  { return uint8((insn>>2)&0x7) + 8 }
func cRs1P(insn uint16) uint8 { return uint8((insn>>7)&0x7) + 8 }
func cRs2P(insn uint16) uint8 { return uint8((insn>>2)&0x7) + 8 }

// Full 5-bit register fields
func cRd(insn uint16) uint8  { return uint8((insn >> 7) & 0x1f) }
func cRs2(insn uint16) uint8 { return uint8((insn >> 2) & 0x1f) }

func cBit(insn uint16, pos uint) uint32 {
	return uint32(insn>>pos) & 1
}

func cBits(insn uint16, pos, n uint) uint32 {
	return uint32(insn>>pos) & ((1 << n) - 1)
}

// ExpandCompressed expands a 16-bit instruction to its 32-bit
// equivalent. Floating-point forms are rejected along with reserved
// encodings.
func ExpandCompressed(insn uint16, pc uint64) (uint32, error) {
	switch insn & 0x3 {
	case 0b00:
		return expandQ0(insn, pc)
	case 0b01:
		return expandQ1(insn, pc)
	case 0b10:
		return expandQ2(insn, pc)
	}
	return 0, &IllegalInstructionError{Insn: uint32(insn), PC: pc}
}

func expandQ0(insn uint16, pc uint64) (uint32, error) {
	switch cFunct3(insn) {
	case 0b000: // c.addi4spn
		imm := cBit(insn, 6)<<2 | cBit(insn, 5)<<3 | cBits(insn, 11, 2)<<4 | cBits(insn, 7, 4)<<6
		if imm == 0 {
			break
		}
		return encodeI(opcOpImm, 0b000, cRdP(insn), 2, int64(imm)), nil

	case 0b010: // c.lw
		imm := cBit(insn, 6)<<2 | cBits(insn, 10, 3)<<3 | cBit(insn, 5)<<6
		return encodeI(opcLoad, 0b010, cRdP(insn), cRs1P(insn), int64(imm)), nil

	case 0b011: // c.ld
		imm := cBits(insn, 10, 3)<<3 | cBits(insn, 5, 2)<<6
		return encodeI(opcLoad, 0b011, cRdP(insn), cRs1P(insn), int64(imm)), nil

	case 0b110: // c.sw
		imm := cBit(insn, 6)<<2 | cBits(insn, 10, 3)<<3 | cBit(insn, 5)<<6
		return encodeS(opcStore, 0b010, cRs1P(insn), cRs2P(insn), int64(imm)), nil

	case 0b111: // c.sd
		imm := cBits(insn, 10, 3)<<3 | cBits(insn, 5, 2)<<6
		return encodeS(opcStore, 0b011, cRs1P(insn), cRs2P(insn), int64(imm)), nil
	}
	return 0, &IllegalInstructionError{Insn: uint32(insn), PC: pc}
}

func expandQ1(insn uint16, pc uint64) (uint32, error) {
	imm6 := signExtend(uint64(cBit(insn, 12)<<5|cBits(insn, 2, 5)), 6)

	switch cFunct3(insn) {
	case 0b000: // c.addi (c.nop when rd=0)
		return encodeI(opcOpImm, 0b000, cRd(insn), cRd(insn), imm6), nil

	case 0b001: // c.addiw
		if cRd(insn) == 0 {
			break
		}
		return encodeI(opcOpImm32, 0b000, cRd(insn), cRd(insn), imm6), nil

	case 0b010: // c.li
		return encodeI(opcOpImm, 0b000, cRd(insn), 0, imm6), nil

	case 0b011:
		if cRd(insn) == 2 { // c.addi16sp
			imm := cBit(insn, 6)<<4 | cBit(insn, 2)<<5 | cBit(insn, 5)<<6 |
				cBits(insn, 3, 2)<<7 | cBit(insn, 12)<<9
			v := signExtend(uint64(imm), 10)
			if v == 0 {
				break
			}
			return encodeI(opcOpImm, 0b000, 2, 2, v), nil
		}
		// c.lui
		if imm6 == 0 || cRd(insn) == 0 {
			break
		}
		return encodeU(opcLui, cRd(insn), imm6<<12), nil

	case 0b100:
		shamt := int64(cBit(insn, 12)<<5 | cBits(insn, 2, 5))
		rd := cRs1P(insn)
		switch cBits(insn, 10, 2) {
		case 0b00: // c.srli
			return encodeI(opcOpImm, 0b101, rd, rd, shamt), nil
		case 0b01: // c.srai
			return encodeI(opcOpImm, 0b101, rd, rd, shamt|0x400), nil
		case 0b10: // c.andi
			return encodeI(opcOpImm, 0b111, rd, rd, imm6), nil
		case 0b11:
			rs2 := cRs2P(insn)
			if cBit(insn, 12) == 0 {
				switch cBits(insn, 5, 2) {
				case 0b00: // c.sub
					return encodeR(opcOp, 0b000, 0b0100000, rd, rd, rs2), nil
				case 0b01: // c.xor
					return encodeR(opcOp, 0b100, 0b0000000, rd, rd, rs2), nil
				case 0b10: // c.or
					return encodeR(opcOp, 0b110, 0b0000000, rd, rd, rs2), nil
				case 0b11: // c.and
					return encodeR(opcOp, 0b111, 0b0000000, rd, rd, rs2), nil
				}
			}
			switch cBits(insn, 5, 2) {
			case 0b00: // c.subw
				return encodeR(opcOp32, 0b000, 0b0100000, rd, rd, rs2), nil
			case 0b01: // c.addw
				return encodeR(opcOp32, 0b000, 0b0000000, rd, rd, rs2), nil
			}
		}

	case 0b101: // c.j
		imm := cBit(insn, 2)<<5 | cBits(insn, 3, 3)<<1 | cBit(insn, 6)<<7 |
			cBit(insn, 7)<<6 | cBit(insn, 8)<<10 | cBits(insn, 9, 2)<<8 |
			cBit(insn, 11)<<4 | cBit(insn, 12)<<11
		return encodeJ(opcJal, 0, signExtend(uint64(imm), 12)), nil

	case 0b110, 0b111: // c.beqz / c.bnez
		imm := cBit(insn, 2)<<5 | cBits(insn, 3, 2)<<1 | cBits(insn, 5, 2)<<6 |
			cBits(insn, 10, 2)<<3 | cBit(insn, 12)<<8
		f3 := uint32(0b000)
		if cFunct3(insn) == 0b111 {
			f3 = 0b001
		}
		return encodeB(opcBranch, f3, cRs1P(insn), 0, signExtend(uint64(imm), 9)), nil
	}
	return 0, &IllegalInstructionError{Insn: uint32(insn), PC: pc}
}

func expandQ2(insn uint16, pc uint64) (uint32, error) {
	rd := cRd(insn)
	rs2 := cRs2(insn)

	switch cFunct3(insn) {
	case 0b000: // c.slli
		shamt := int64(cBit(insn, 12)<<5 | cBits(insn, 2, 5))
		return encodeI(opcOpImm, 0b001, rd, rd, shamt), nil

	case 0b010: // c.lwsp
		if rd == 0 {
			break
		}
		imm := cBits(insn, 4, 3)<<2 | cBit(insn, 12)<<5 | cBits(insn, 2, 2)<<6
		return encodeI(opcLoad, 0b010, rd, 2, int64(imm)), nil

	case 0b011: // c.ldsp
		if rd == 0 {
			break
		}
		imm := cBits(insn, 5, 2)<<3 | cBit(insn, 12)<<5 | cBits(insn, 2, 3)<<6
		return encodeI(opcLoad, 0b011, rd, 2, int64(imm)), nil

	case 0b100:
		if cBit(insn, 12) == 0 {
			if rs2 == 0 { // c.jr
				if rd == 0 {
					break
				}
				return encodeI(opcJalr, 0b000, 0, rd, 0), nil
			}
			// c.mv
			return encodeR(opcOp, 0b000, 0b0000000, rd, 0, rs2), nil
		}
		if rs2 == 0 {
			if rd == 0 { // c.ebreak
				return encodeI(opcSystem, 0b000, 0, 0, 1), nil
			}
			// c.jalr
			return encodeI(opcJalr, 0b000, 1, rd, 0), nil
		}
		// c.add
		return encodeR(opcOp, 0b000, 0b0000000, rd, rd, rs2), nil

	case 0b110: // c.swsp
		imm := cBits(insn, 9, 4)<<2 | cBits(insn, 7, 2)<<6
		return encodeS(opcStore, 0b010, 2, rs2, int64(imm)), nil

	case 0b111: // c.sdsp
		imm := cBits(insn, 10, 3)<<3 | cBits(insn, 7, 3)<<6
		return encodeS(opcStore, 0b011, 2, rs2, int64(imm)), nil
	}
	return 0, &IllegalInstructionError{Insn: uint32(insn), PC: pc}
}
