package rv64

// Instruction word builders, one per format.

func encodeR(opc, f3, f7 uint32, rd, rs1, rs2 uint8) uint32 {
	return f7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | opc
}

func encodeI(opc, f3 uint32, rd, rs1 uint8, imm int64) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | opc
}

func encodeS(opc, f3 uint32, rs1, rs2 uint8, imm int64) uint32 {
	v := uint32(imm & 0xfff)
	return (v>>5)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | (v&0x1f)<<7 | opc
}

func encodeB(opc, f3 uint32, rs1, rs2 uint8, imm int64) uint32 {
	v := uint32(imm & 0x1fff)
	w := ((v >> 12) & 0x1) << 31
	w |= ((v >> 5) & 0x3f) << 25
	w |= uint32(rs2) << 20
	w |= uint32(rs1) << 15
	w |= f3 << 12
	w |= ((v >> 1) & 0xf) << 8
	w |= ((v >> 11) & 0x1) << 7
	return w | opc
}

func encodeU(opc uint32, rd uint8, imm int64) uint32 {
	return uint32(imm)&0xfffff000 | uint32(rd)<<7 | opc
}

func encodeJ(opc uint32, rd uint8, imm int64) uint32 {
	v := uint32(imm & 0x1fffff)
	w := ((v >> 20) & 0x1) << 31
	w |= ((v >> 1) & 0x3ff) << 21
	w |= ((v >> 11) & 0x1) << 20
	w |= ((v >> 12) & 0xff) << 12
	return w | uint32(rd)<<7 | opc
}

func immFits(imm int64, bits uint) bool {
	lim := int64(1) << (bits - 1)
	return imm >= -lim && imm < lim
}

type rEncoding struct {
	opc, f3, f7 uint32
}

var rEncodings = map[Op]rEncoding{
	OpADD:    {opcOp, 0b000, 0b0000000},
	OpSUB:    {opcOp, 0b000, 0b0100000},
	OpSLL:    {opcOp, 0b001, 0b0000000},
	OpSLT:    {opcOp, 0b010, 0b0000000},
	OpSLTU:   {opcOp, 0b011, 0b0000000},
	OpXOR:    {opcOp, 0b100, 0b0000000},
	OpSRL:    {opcOp, 0b101, 0b0000000},
	OpSRA:    {opcOp, 0b101, 0b0100000},
	OpOR:     {opcOp, 0b110, 0b0000000},
	OpAND:    {opcOp, 0b111, 0b0000000},
	OpADDW:   {opcOp32, 0b000, 0b0000000},
	OpSUBW:   {opcOp32, 0b000, 0b0100000},
	OpSLLW:   {opcOp32, 0b001, 0b0000000},
	OpSRLW:   {opcOp32, 0b101, 0b0000000},
	OpSRAW:   {opcOp32, 0b101, 0b0100000},
	OpMUL:    {opcOp, 0b000, 0b0000001},
	OpMULH:   {opcOp, 0b001, 0b0000001},
	OpMULHSU: {opcOp, 0b010, 0b0000001},
	OpMULHU:  {opcOp, 0b011, 0b0000001},
	OpDIV:    {opcOp, 0b100, 0b0000001},
	OpDIVU:   {opcOp, 0b101, 0b0000001},
	OpREM:    {opcOp, 0b110, 0b0000001},
	OpREMU:   {opcOp, 0b111, 0b0000001},
	OpMULW:   {opcOp32, 0b000, 0b0000001},
	OpDIVW:   {opcOp32, 0b100, 0b0000001},
	OpDIVUW:  {opcOp32, 0b101, 0b0000001},
	OpREMW:   {opcOp32, 0b110, 0b0000001},
	OpREMUW:  {opcOp32, 0b111, 0b0000001},
}

type iEncoding struct {
	opc, f3 uint32
}

var iEncodings = map[Op]iEncoding{
	OpJALR:  {opcJalr, 0b000},
	OpLB:    {opcLoad, 0b000},
	OpLH:    {opcLoad, 0b001},
	OpLW:    {opcLoad, 0b010},
	OpLD:    {opcLoad, 0b011},
	OpLBU:   {opcLoad, 0b100},
	OpLHU:   {opcLoad, 0b101},
	OpLWU:   {opcLoad, 0b110},
	OpADDI:  {opcOpImm, 0b000},
	OpSLTI:  {opcOpImm, 0b010},
	OpSLTIU: {opcOpImm, 0b011},
	OpXORI:  {opcOpImm, 0b100},
	OpORI:   {opcOpImm, 0b110},
	OpANDI:  {opcOpImm, 0b111},
	OpADDIW: {opcOpImm32, 0b000},
}

var branchF3 = map[Op]uint32{
	OpBEQ:  0b000,
	OpBNE:  0b001,
	OpBLT:  0b100,
	OpBGE:  0b101,
	OpBLTU: 0b110,
	OpBGEU: 0b111,
}

var storeF3 = map[Op]uint32{
	OpSB: 0b000,
	OpSH: 0b001,
	OpSW: 0b010,
	OpSD: 0b011,
}

var csrF3 = map[Op]uint32{
	OpCSRRW:  0b001,
	OpCSRRS:  0b010,
	OpCSRRC:  0b011,
	OpCSRRWI: 0b101,
	OpCSRRSI: 0b110,
	OpCSRRCI: 0b111,
}

// Encode reconstructs the 32-bit word for a decoded instruction. For
// every valid word w, Encode(Decode(w)) == w.
func Encode(in Inst) (uint32, error) {
	if enc, ok := rEncodings[in.Op]; ok {
		return encodeR(enc.opc, enc.f3, enc.f7, in.Rd, in.Rs1, in.Rs2), nil
	}
	if enc, ok := iEncodings[in.Op]; ok {
		if !immFits(in.Imm, 12) {
			return 0, &EncodeError{Op: in.Op, Reason: "immediate out of range"}
		}
		return encodeI(enc.opc, enc.f3, in.Rd, in.Rs1, in.Imm), nil
	}
	if f3, ok := branchF3[in.Op]; ok {
		if !immFits(in.Imm, 13) || in.Imm&1 != 0 {
			return 0, &EncodeError{Op: in.Op, Reason: "branch offset out of range"}
		}
		return encodeB(opcBranch, f3, in.Rs1, in.Rs2, in.Imm), nil
	}
	if f3, ok := storeF3[in.Op]; ok {
		if !immFits(in.Imm, 12) {
			return 0, &EncodeError{Op: in.Op, Reason: "immediate out of range"}
		}
		return encodeS(opcStore, f3, in.Rs1, in.Rs2, in.Imm), nil
	}
	if f3, ok := csrF3[in.Op]; ok {
		return encodeI(opcSystem, f3, in.Rd, in.Rs1, in.Imm), nil
	}

	switch in.Op {
	case OpLUI:
		if in.Imm&0xfff != 0 || !immFits(in.Imm, 32) {
			return 0, &EncodeError{Op: in.Op, Reason: "immediate not a valid U-type value"}
		}
		return encodeU(opcLui, in.Rd, in.Imm), nil
	case OpAUIPC:
		if in.Imm&0xfff != 0 || !immFits(in.Imm, 32) {
			return 0, &EncodeError{Op: in.Op, Reason: "immediate not a valid U-type value"}
		}
		return encodeU(opcAuipc, in.Rd, in.Imm), nil
	case OpJAL:
		if !immFits(in.Imm, 21) || in.Imm&1 != 0 {
			return 0, &EncodeError{Op: in.Op, Reason: "jump offset out of range"}
		}
		return encodeJ(opcJal, in.Rd, in.Imm), nil

	case OpSLLI:
		return encodeI(opcOpImm, 0b001, in.Rd, in.Rs1, in.Imm&0x3f), nil
	case OpSRLI:
		return encodeI(opcOpImm, 0b101, in.Rd, in.Rs1, in.Imm&0x3f), nil
	case OpSRAI:
		return encodeI(opcOpImm, 0b101, in.Rd, in.Rs1, in.Imm&0x3f|0x400), nil
	case OpSLLIW:
		return encodeI(opcOpImm32, 0b001, in.Rd, in.Rs1, in.Imm&0x1f), nil
	case OpSRLIW:
		return encodeI(opcOpImm32, 0b101, in.Rd, in.Rs1, in.Imm&0x1f), nil
	case OpSRAIW:
		return encodeI(opcOpImm32, 0b101, in.Rd, in.Rs1, in.Imm&0x1f|0x400), nil

	case OpAMOW:
		return encodeR(opcAMO, 0b010, uint32(in.Imm)&0x7f, in.Rd, in.Rs1, in.Rs2), nil
	case OpAMOD:
		return encodeR(opcAMO, 0b011, uint32(in.Imm)&0x7f, in.Rd, in.Rs1, in.Rs2), nil

	case OpFENCE:
		return encodeI(opcMiscMem, 0b000, in.Rd, in.Rs1, in.Imm), nil
	case OpFENCEI:
		return encodeI(opcMiscMem, 0b001, in.Rd, in.Rs1, 0), nil
	case OpECALL:
		return encodeI(opcSystem, 0b000, 0, 0, 0), nil
	case OpEBREAK:
		return encodeI(opcSystem, 0b000, 0, 0, 1), nil
	}

	return 0, &EncodeError{Op: in.Op, Reason: "unknown operation"}
}
