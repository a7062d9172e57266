package rv64

import "testing"

func TestDecodeFields(t *testing.T) {
	cases := []struct {
		word uint32
		op   Op
		rd   uint8
		rs1  uint8
		rs2  uint8
		imm  int64
	}{
		{0x10000537, OpLUI, 10, 0, 0, 0x10000000}, // lui a0, 0x10000
		{0x04800593, OpADDI, 11, 0, 0, 0x48},      // li a1, 'H'
		{0x00b50023, OpSB, 0, 10, 11, 0},          // sb a1, 0(a0)
		{0xff010113, OpADDI, 2, 2, 0, -16},        // addi sp, sp, -16
		{0x00113423, OpSD, 0, 2, 1, 8},            // sd ra, 8(sp)
		{0x00052503, OpLW, 10, 10, 0, 0},          // lw a0, 0(a0)
		{0x00008067, OpJALR, 0, 1, 0, 0},          // ret
		{0x02b55533, OpDIVU, 10, 10, 11, 0},       // divu a0, a0, a1
		{0xfe209ee3, OpBNE, 0, 1, 2, -4},          // bne ra, sp, -4
		{0x40b50533, OpSUB, 10, 10, 11, 0},        // sub a0, a0, a1
		{0x0105d593, OpSRLI, 11, 11, 0, 16},       // srli a1, a1, 16
	}

	for _, tc := range cases {
		in, err := Decode(tc.word, 0)
		if err != nil {
			t.Fatalf("Decode(%#08x): %v", tc.word, err)
		}
		if in.Op != tc.op {
			t.Errorf("Decode(%#08x): op %v, want %v", tc.word, in.Op, tc.op)
		}
		if in.Imm != tc.imm {
			t.Errorf("Decode(%#08x): imm %d, want %d", tc.word, in.Imm, tc.imm)
		}
		if in.Rs1 != tc.rs1 {
			t.Errorf("Decode(%#08x): rs1 %d, want %d", tc.word, in.Rs1, tc.rs1)
		}
		switch tc.op {
		case OpSB, OpSD, OpBNE:
			if in.Rs2 != tc.rs2 {
				t.Errorf("Decode(%#08x): rs2 %d, want %d", tc.word, in.Rs2, tc.rs2)
			}
		default:
			if in.Rd != tc.rd {
				t.Errorf("Decode(%#08x): rd %d, want %d", tc.word, in.Rd, tc.rd)
			}
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	words := []uint32{
		0x10000537, // lui a0, 0x10000
		0x00000517, // auipc a0, 0
		0x04800593, // addi a1, zero, 0x48
		0x00b50023, // sb a1, 0(a0)
		0x00b51023, // sh a1, 0(a0)
		0x00b52023, // sw a1, 0(a0)
		0x00b53023, // sd a1, 0(a0)
		0x00050503, // lb a0, 0(a0)
		0x00051503, // lh a0, 0(a0)
		0x00052503, // lw a0, 0(a0)
		0x00053503, // ld a0, 0(a0)
		0x00054503, // lbu a0, 0(a0)
		0x00055503, // lhu a0, 0(a0)
		0x00056503, // lwu a0, 0(a0)
		0xff010113, // addi sp, sp, -16
		0x00a02537, // lui a0, 0xa02
		0x0045a593, // slti a1, a1, 4
		0x0045b593, // sltiu a1, a1, 4
		0x0045c593, // xori a1, a1, 4
		0x0045e593, // ori a1, a1, 4
		0x0045f593, // andi a1, a1, 4
		0x00459593, // slli a1, a1, 4
		0x0045d593, // srli a1, a1, 4
		0x4045d593, // srai a1, a1, 4
		0x0045059b, // addiw a1, a0, 4
		0x0045159b, // slliw a1, a0, 4
		0x0045559b, // srliw a1, a0, 4
		0x4045559b, // sraiw a1, a0, 4
		0x00b50533, // add a0, a0, a1
		0x40b50533, // sub a0, a0, a1
		0x00b51533, // sll a0, a0, a1
		0x00b52533, // slt a0, a0, a1
		0x00b53533, // sltu a0, a0, a1
		0x00b54533, // xor a0, a0, a1
		0x00b55533, // srl a0, a0, a1
		0x40b55533, // sra a0, a0, a1
		0x00b56533, // or a0, a0, a1
		0x00b57533, // and a0, a0, a1
		0x00b5053b, // addw a0, a0, a1
		0x40b5053b, // subw a0, a0, a1
		0x00b5153b, // sllw a0, a0, a1
		0x00b5553b, // srlw a0, a0, a1
		0x40b5553b, // sraw a0, a0, a1
		0x02b50533, // mul a0, a0, a1
		0x02b51533, // mulh a0, a0, a1
		0x02b52533, // mulhsu a0, a0, a1
		0x02b53533, // mulhu a0, a0, a1
		0x02b54533, // div a0, a0, a1
		0x02b55533, // divu a0, a0, a1
		0x02b56533, // rem a0, a0, a1
		0x02b57533, // remu a0, a0, a1
		0x02b5053b, // mulw a0, a0, a1
		0x02b5453b, // divw a0, a0, a1
		0x02b5553b, // divuw a0, a0, a1
		0x02b5653b, // remw a0, a0, a1
		0x02b5753b, // remuw a0, a0, a1
		0x0000006f, // jal zero, 0
		0xff5ff0ef, // jal ra, -12
		0x00008067, // jalr zero, ra, 0
		0x00b50463, // beq a0, a1, 8
		0xfeb51ee3, // bne a0, a1, -4
		0x00b54463, // blt a0, a1, 8
		0x00b55463, // bge a0, a1, 8
		0x00b56463, // bltu a0, a1, 8
		0x00b57463, // bgeu a0, a1, 8
		0x00000073, // ecall
		0x00100073, // ebreak
		0x0000000f, // fence
		0x0000100f, // fence.i
		0x10551573, // csrrw a0, 0x105, a0
		0x10552573, // csrrs a0, 0x105, a0
		0x10553573, // csrrc a0, 0x105, a0
		0x10555573, // csrrwi a0, 0x105, 10
		0x10556573, // csrrsi a0, 0x105, 10
		0x10557573, // csrrci a0, 0x105, 10
		0x100536af, // lr.d a3, (a0)
		0x18c5362f, // sc.d a2, a2, (a0)
		0x08c5262f, // amoswap.w a2, a2, (a0)
		0x00c5262f, // amoadd.w a2, a2, (a0)
		0x60c5362f, // amoand.d a2, a2, (a0)
	}

	for _, w := range words {
		in, err := Decode(w, 0)
		if err != nil {
			t.Fatalf("Decode(%#08x): %v", w, err)
		}
		got, err := Encode(in)
		if err != nil {
			t.Fatalf("Encode(%v) from %#08x: %v", in, w, err)
		}
		if got != w {
			t.Errorf("round trip %#08x: got %#08x (%v)", w, got, in)
		}
	}
}

func TestDecodeIllegal(t *testing.T) {
	words := []uint32{
		0x00000000, // all zeros
		0xffffffff, // all ones
		0x00000007, // FP load, unsupported
		0x00000053, // FP op, unsupported
		0x06b50533, // reserved funct7 on OP
	}
	for _, w := range words {
		if _, err := Decode(w, 0x1000); err == nil {
			t.Errorf("Decode(%#08x): expected error", w)
		}
	}
}

func TestExpandCompressed(t *testing.T) {
	cases := []struct {
		c    uint16
		full uint32
	}{
		{0x0001, 0x00000013}, // c.nop -> addi x0, x0, 0
		{0x4501, 0x00000513}, // c.li a0, 0 -> addi a0, x0, 0
		{0x852e, 0x00b00533}, // c.mv a0, a1 -> add a0, x0, a1
		{0x9002, 0x00100073}, // c.ebreak -> ebreak
		{0x8082, 0x00008067}, // c.jr ra -> jalr x0, ra, 0
		{0x1141, 0xff010113}, // c.addi sp, -16 -> addi sp, sp, -16
		{0xe406, 0x00113423}, // c.sdsp ra, 8 -> sd ra, 8(sp)
		{0x4108, 0x00052503}, // c.lw a0, 0(a0) -> lw a0, 0(a0)
		{0xa001, 0x0000006f}, // c.j 0 -> jal x0, 0
	}
	for _, tc := range cases {
		got, err := ExpandCompressed(tc.c, 0)
		if err != nil {
			t.Fatalf("ExpandCompressed(%#04x): %v", tc.c, err)
		}
		if got != tc.full {
			t.Errorf("ExpandCompressed(%#04x) = %#08x, want %#08x", tc.c, got, tc.full)
		}
	}
}

func TestExpandCompressedIllegal(t *testing.T) {
	cases := []uint16{
		0x0000, // all zeros, defined illegal
		0x2000, // c.fld, unsupported
	}
	for _, c := range cases {
		if _, err := ExpandCompressed(c, 0); err == nil {
			t.Errorf("ExpandCompressed(%#04x): expected error", c)
		}
	}
}

func TestIsCompressed(t *testing.T) {
	if IsCompressed(0x0073) {
		t.Error("0x0073 has low bits 11, not compressed")
	}
	if !IsCompressed(0x4501) {
		t.Error("0x4501 has low bits 01, compressed")
	}
}
