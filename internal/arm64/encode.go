package arm64

import "fmt"

func rrr(base uint32, rd, rn, rm Reg) uint32 {
	return base | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd)
}

// Arithmetic with a 12-bit unsigned immediate.

func AddImm(rd, rn Reg, imm uint32) (uint32, error) {
	if imm > 0xfff {
		return 0, fmt.Errorf("arm64 asm: immediate out of range for ADD (%d)", imm)
	}
	if rd == XZR || rn == XZR {
		return 0, fmt.Errorf("arm64 asm: register 31 means SP in ADD (immediate)")
	}
	return 0x91000000 | imm<<10 | uint32(rn)<<5 | uint32(rd), nil
}

func SubImm(rd, rn Reg, imm uint32) (uint32, error) {
	if imm > 0xfff {
		return 0, fmt.Errorf("arm64 asm: immediate out of range for SUB (%d)", imm)
	}
	if rd == XZR || rn == XZR {
		return 0, fmt.Errorf("arm64 asm: register 31 means SP in SUB (immediate)")
	}
	return 0xD1000000 | imm<<10 | uint32(rn)<<5 | uint32(rd), nil
}

func CmpImm(rn Reg, imm uint32) (uint32, error) {
	if imm > 0xfff {
		return 0, fmt.Errorf("arm64 asm: immediate out of range for CMP (%d)", imm)
	}
	if rn == XZR {
		return 0, fmt.Errorf("arm64 asm: register 31 means SP in CMP (immediate)")
	}
	return 0xF100001F | imm<<10 | uint32(rn)<<5, nil
}

// Register arithmetic and logic, 64-bit.

func AddReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0x8B000000, rd, rn, rm), nil
}

// AddShifted encodes ADD rd, rn, rm, LSL #shift.
func AddShifted(rd, rn, rm Reg, shift uint32) (uint32, error) {
	if shift > 63 {
		return 0, fmt.Errorf("arm64 asm: invalid ADD shift %d", shift)
	}
	return rrr(0x8B000000|shift<<10, rd, rn, rm), nil
}

func SubReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0xCB000000, rd, rn, rm), nil
}

func SubsReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0xEB000000, rd, rn, rm), nil
}

func CmpReg(rn, rm Reg) (uint32, error) {
	return rrr(0xEB000000, XZR, rn, rm), nil
}

func AndReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0x8A000000, rd, rn, rm), nil
}

func OrrReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0xAA000000, rd, rn, rm), nil
}

func EorReg(rd, rn, rm Reg) (uint32, error) {
	return rrr(0xCA000000, rd, rn, rm), nil
}

// MovReg encodes MOV rd, rm as ORR rd, xzr, rm.
func MovReg(rd, rm Reg) (uint32, error) {
	return rrr(0xAA000000, rd, XZR, rm), nil
}

// Wide immediate moves.

func Movz(rd Reg, imm uint16, shift uint32) (uint32, error) {
	if shift%16 != 0 || shift > 48 {
		return 0, fmt.Errorf("arm64 asm: invalid MOVZ shift %d", shift)
	}
	return 0xD2800000 | (shift/16)<<21 | uint32(imm)<<5 | uint32(rd), nil
}

func Movk(rd Reg, imm uint16, shift uint32) (uint32, error) {
	if shift%16 != 0 || shift > 48 {
		return 0, fmt.Errorf("arm64 asm: invalid MOVK shift %d", shift)
	}
	return 0xF2800000 | (shift/16)<<21 | uint32(imm)<<5 | uint32(rd), nil
}

func Movn(rd Reg, imm uint16, shift uint32) (uint32, error) {
	if shift%16 != 0 || shift > 48 {
		return 0, fmt.Errorf("arm64 asm: invalid MOVN shift %d", shift)
	}
	return 0x92800000 | (shift/16)<<21 | uint32(imm)<<5 | uint32(rd), nil
}

// Variable shifts. The shift amount is rm modulo the register width.

func Lslv(rd, rn, rm Reg) (uint32, error) { return rrr(0x9AC02000, rd, rn, rm), nil }
func Lsrv(rd, rn, rm Reg) (uint32, error) { return rrr(0x9AC02400, rd, rn, rm), nil }
func Asrv(rd, rn, rm Reg) (uint32, error) { return rrr(0x9AC02800, rd, rn, rm), nil }

func LslvW(rd, rn, rm Reg) (uint32, error) { return rrr(0x1AC02000, rd, rn, rm), nil }
func LsrvW(rd, rn, rm Reg) (uint32, error) { return rrr(0x1AC02400, rd, rn, rm), nil }
func AsrvW(rd, rn, rm Reg) (uint32, error) { return rrr(0x1AC02800, rd, rn, rm), nil }

// Bitfield moves. UBFM/SBFM carry the immediate shifts and extends.

func ubfm(rd, rn Reg, immr, imms uint32) uint32 {
	return 0xD3400000 | immr<<16 | imms<<10 | uint32(rn)<<5 | uint32(rd)
}

func sbfm(rd, rn Reg, immr, imms uint32) uint32 {
	return 0x93400000 | immr<<16 | imms<<10 | uint32(rn)<<5 | uint32(rd)
}

func LslImm(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 63 {
		return 0, fmt.Errorf("arm64 asm: invalid LSL amount %d", shift)
	}
	return ubfm(rd, rn, (64-shift)&63, 63-shift), nil
}

func LsrImm(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 63 {
		return 0, fmt.Errorf("arm64 asm: invalid LSR amount %d", shift)
	}
	return ubfm(rd, rn, shift, 63), nil
}

func AsrImm(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 63 {
		return 0, fmt.Errorf("arm64 asm: invalid ASR amount %d", shift)
	}
	return sbfm(rd, rn, shift, 63), nil
}

// Ubfx extracts width bits starting at lsb, zero-extended.
func Ubfx(rd, rn Reg, lsb, width uint32) (uint32, error) {
	if width == 0 || lsb+width > 64 {
		return 0, fmt.Errorf("arm64 asm: invalid UBFX field %d+%d", lsb, width)
	}
	return ubfm(rd, rn, lsb, lsb+width-1), nil
}

func Sxtw(rd, rn Reg) (uint32, error) { return sbfm(rd, rn, 0, 31), nil }
func Sxth(rd, rn Reg) (uint32, error) { return sbfm(rd, rn, 0, 15), nil }
func Sxtb(rd, rn Reg) (uint32, error) { return sbfm(rd, rn, 0, 7), nil }

// 32-bit immediate shifts (for the W-suffixed guest forms).

func LslImmW(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 31 {
		return 0, fmt.Errorf("arm64 asm: invalid 32-bit LSL amount %d", shift)
	}
	return 0x53000000 | ((32-shift)&31)<<16 | (31-shift)<<10 | uint32(rn)<<5 | uint32(rd), nil
}

func LsrImmW(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 31 {
		return 0, fmt.Errorf("arm64 asm: invalid 32-bit LSR amount %d", shift)
	}
	return 0x53000000 | shift<<16 | 31<<10 | uint32(rn)<<5 | uint32(rd), nil
}

func AsrImmW(rd, rn Reg, shift uint32) (uint32, error) {
	if shift > 31 {
		return 0, fmt.Errorf("arm64 asm: invalid 32-bit ASR amount %d", shift)
	}
	return 0x13000000 | shift<<16 | 31<<10 | uint32(rn)<<5 | uint32(rd), nil
}

// Cset encodes CSET rd, cond as CSINC rd, xzr, xzr, !cond.
func Cset(rd Reg, cond Cond) (uint32, error) {
	if cond == AL {
		return 0, fmt.Errorf("arm64 asm: CSET cannot use AL")
	}
	return 0x9A9F07E0 | uint32(cond.Invert())<<12 | uint32(rd), nil
}

// Multiply and divide.

func Mul(rd, rn, rm Reg) (uint32, error) {
	return rrr(0x9B000000|uint32(XZR)<<10, rd, rn, rm), nil
}

func Msub(rd, rn, rm, ra Reg) (uint32, error) {
	return rrr(0x9B008000|uint32(ra)<<10, rd, rn, rm), nil
}

func Smulh(rd, rn, rm Reg) (uint32, error) { return rrr(0x9B407C00, rd, rn, rm), nil }
func Umulh(rd, rn, rm Reg) (uint32, error) { return rrr(0x9BC07C00, rd, rn, rm), nil }
func Sdiv(rd, rn, rm Reg) (uint32, error)  { return rrr(0x9AC00C00, rd, rn, rm), nil }
func Udiv(rd, rn, rm Reg) (uint32, error)  { return rrr(0x9AC00800, rd, rn, rm), nil }

func MulW(rd, rn, rm Reg) (uint32, error) {
	return rrr(0x1B000000|uint32(XZR)<<10, rd, rn, rm), nil
}

func MsubW(rd, rn, rm, ra Reg) (uint32, error) {
	return rrr(0x1B008000|uint32(ra)<<10, rd, rn, rm), nil
}

func SdivW(rd, rn, rm Reg) (uint32, error) { return rrr(0x1AC00C00, rd, rn, rm), nil }
func UdivW(rd, rn, rm Reg) (uint32, error) { return rrr(0x1AC00800, rd, rn, rm), nil }

// Loads and stores with a scaled unsigned immediate offset. The offset
// is in bytes and must be aligned to the access size.

func LdrImm(rt, rn Reg, off uint32) (uint32, error) {
	if off%8 != 0 || off/8 > 0xfff {
		return 0, fmt.Errorf("arm64 asm: invalid LDR offset %d", off)
	}
	return 0xF9400000 | (off/8)<<10 | uint32(rn)<<5 | uint32(rt), nil
}

func StrImm(rt, rn Reg, off uint32) (uint32, error) {
	if off%8 != 0 || off/8 > 0xfff {
		return 0, fmt.Errorf("arm64 asm: invalid STR offset %d", off)
	}
	return 0xF9000000 | (off/8)<<10 | uint32(rn)<<5 | uint32(rt), nil
}

func LdrImmW(rt, rn Reg, off uint32) (uint32, error) {
	if off%4 != 0 || off/4 > 0xfff {
		return 0, fmt.Errorf("arm64 asm: invalid 32-bit LDR offset %d", off)
	}
	return 0xB9400000 | (off/4)<<10 | uint32(rn)<<5 | uint32(rt), nil
}

func StrImmW(rt, rn Reg, off uint32) (uint32, error) {
	if off%4 != 0 || off/4 > 0xfff {
		return 0, fmt.Errorf("arm64 asm: invalid 32-bit STR offset %d", off)
	}
	return 0xB9000000 | (off/4)<<10 | uint32(rn)<<5 | uint32(rt), nil
}

// Loads and stores with a register offset, LDR rt, [rn, rm]. No extend
// or scaling is applied to rm.

func ldstReg(base uint32, rt, rn, rm Reg) uint32 {
	return base | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rt)
}

func LdrbReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0x38606800, rt, rn, rm), nil }
func LdrhReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0x78606800, rt, rn, rm), nil }
func LdrwReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0xB8606800, rt, rn, rm), nil }
func LdrxReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0xF8606800, rt, rn, rm), nil }
func LdrsbReg(rt, rn, rm Reg) (uint32, error) { return ldstReg(0x38A06800, rt, rn, rm), nil }
func LdrshReg(rt, rn, rm Reg) (uint32, error) { return ldstReg(0x78A06800, rt, rn, rm), nil }
func LdrswReg(rt, rn, rm Reg) (uint32, error) { return ldstReg(0xB8A06800, rt, rn, rm), nil }
func StrbReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0x38206800, rt, rn, rm), nil }
func StrhReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0x78206800, rt, rn, rm), nil }
func StrwReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0xB8206800, rt, rn, rm), nil }
func StrxReg(rt, rn, rm Reg) (uint32, error)  { return ldstReg(0xF8206800, rt, rn, rm), nil }

// Branches. Offsets are byte displacements from the branch instruction
// itself and must be word-aligned.

func B(off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<27) || off >= 1<<27 {
		return 0, fmt.Errorf("arm64 asm: B offset out of range (%d)", off)
	}
	return 0x14000000 | uint32(off/4)&0x03FFFFFF, nil
}

func Bl(off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<27) || off >= 1<<27 {
		return 0, fmt.Errorf("arm64 asm: BL offset out of range (%d)", off)
	}
	return 0x94000000 | uint32(off/4)&0x03FFFFFF, nil
}

func BCond(cond Cond, off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, fmt.Errorf("arm64 asm: B.%s offset out of range (%d)", cond, off)
	}
	return 0x54000000 | (uint32(off/4)&0x7FFFF)<<5 | uint32(cond), nil
}

func Cbz(rt Reg, off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, fmt.Errorf("arm64 asm: CBZ offset out of range (%d)", off)
	}
	return 0xB4000000 | (uint32(off/4)&0x7FFFF)<<5 | uint32(rt), nil
}

func Cbnz(rt Reg, off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, fmt.Errorf("arm64 asm: CBNZ offset out of range (%d)", off)
	}
	return 0xB5000000 | (uint32(off/4)&0x7FFFF)<<5 | uint32(rt), nil
}

func CbzW(rt Reg, off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, fmt.Errorf("arm64 asm: CBZ offset out of range (%d)", off)
	}
	return 0x34000000 | (uint32(off/4)&0x7FFFF)<<5 | uint32(rt), nil
}

func CbnzW(rt Reg, off int64) (uint32, error) {
	if off%4 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, fmt.Errorf("arm64 asm: CBNZ offset out of range (%d)", off)
	}
	return 0x35000000 | (uint32(off/4)&0x7FFFF)<<5 | uint32(rt), nil
}

func Br(rn Reg) (uint32, error)  { return 0xD61F0000 | uint32(rn)<<5, nil }
func Blr(rn Reg) (uint32, error) { return 0xD63F0000 | uint32(rn)<<5, nil }
func Ret() (uint32, error)       { return 0xD65F03C0, nil }
