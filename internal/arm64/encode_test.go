package arm64

import "testing"

func TestEncodings(t *testing.T) {
	cases := []struct {
		name string
		got  func() (uint32, error)
		want uint32
	}{
		{"add x1, x2, #10", func() (uint32, error) { return AddImm(X1, X2, 10) }, 0x91002841},
		{"sub x0, x0, #1", func() (uint32, error) { return SubImm(X0, X0, 1) }, 0xD1000400},
		{"cmp x3, #0", func() (uint32, error) { return CmpImm(X3, 0) }, 0xF100007F},
		{"add x1, x2, x3", func() (uint32, error) { return AddReg(X1, X2, X3) }, 0x8B030041},
		{"add x1, x2, x3, lsl #4", func() (uint32, error) { return AddShifted(X1, X2, X3, 4) }, 0x8B031041},
		{"sub x1, x2, x3", func() (uint32, error) { return SubReg(X1, X2, X3) }, 0xCB030041},
		{"subs x0, x1, x2", func() (uint32, error) { return SubsReg(X0, X1, X2) }, 0xEB020020},
		{"cmp x1, x2", func() (uint32, error) { return CmpReg(X1, X2) }, 0xEB02003F},
		{"and x1, x2, x3", func() (uint32, error) { return AndReg(X1, X2, X3) }, 0x8A030041},
		{"orr x1, x2, x3", func() (uint32, error) { return OrrReg(X1, X2, X3) }, 0xAA030041},
		{"eor x1, x2, x3", func() (uint32, error) { return EorReg(X1, X2, X3) }, 0xCA030041},
		{"mov x1, x2", func() (uint32, error) { return MovReg(X1, X2) }, 0xAA0203E1},
		{"movz x0, #5", func() (uint32, error) { return Movz(X0, 5, 0) }, 0xD28000A0},
		{"movz x0, #1, lsl #16", func() (uint32, error) { return Movz(X0, 1, 16) }, 0xD2A00020},
		{"movk x0, #0x1234, lsl #16", func() (uint32, error) { return Movk(X0, 0x1234, 16) }, 0xF2A24680},
		{"movn x0, #0", func() (uint32, error) { return Movn(X0, 0, 0) }, 0x92800000},
		{"lslv x1, x2, x3", func() (uint32, error) { return Lslv(X1, X2, X3) }, 0x9AC32041},
		{"lsrv w1, w2, w3", func() (uint32, error) { return LsrvW(X1, X2, X3) }, 0x1AC32441},
		{"lsl x1, x2, #4", func() (uint32, error) { return LslImm(X1, X2, 4) }, 0xD37CEC41},
		{"lsr x1, x2, #4", func() (uint32, error) { return LsrImm(X1, X2, 4) }, 0xD344FC41},
		{"asr x1, x2, #4", func() (uint32, error) { return AsrImm(X1, X2, 4) }, 0x9344FC41},
		{"ubfx x8, x9, #12, #52", func() (uint32, error) { return Ubfx(X8, X9, 12, 52) }, 0xD34CFD28},
		{"sxtw x1, w2", func() (uint32, error) { return Sxtw(X1, X2) }, 0x93407C41},
		{"lsl w1, w2, #3", func() (uint32, error) { return LslImmW(X1, X2, 3) }, 0x531D7041},
		{"lsr w1, w2, #3", func() (uint32, error) { return LsrImmW(X1, X2, 3) }, 0x53037C41},
		{"asr w1, w2, #3", func() (uint32, error) { return AsrImmW(X1, X2, 3) }, 0x13037C41},
		{"cset x0, eq", func() (uint32, error) { return Cset(X0, EQ) }, 0x9A9F17E0},
		{"mul x1, x2, x3", func() (uint32, error) { return Mul(X1, X2, X3) }, 0x9B037C41},
		{"msub x1, x2, x3, x4", func() (uint32, error) { return Msub(X1, X2, X3, X4) }, 0x9B039041},
		{"smulh x1, x2, x3", func() (uint32, error) { return Smulh(X1, X2, X3) }, 0x9B437C41},
		{"umulh x1, x2, x3", func() (uint32, error) { return Umulh(X1, X2, X3) }, 0x9BC37C41},
		{"sdiv x1, x2, x3", func() (uint32, error) { return Sdiv(X1, X2, X3) }, 0x9AC30C41},
		{"udiv x1, x2, x3", func() (uint32, error) { return Udiv(X1, X2, X3) }, 0x9AC30841},
		{"mul w1, w2, w3", func() (uint32, error) { return MulW(X1, X2, X3) }, 0x1B037C41},
		{"sdiv w1, w2, w3", func() (uint32, error) { return SdivW(X1, X2, X3) }, 0x1AC30C41},
		{"ldr x1, [x2, #16]", func() (uint32, error) { return LdrImm(X1, X2, 16) }, 0xF9400841},
		{"str x5, [x6, #8]", func() (uint32, error) { return StrImm(X5, X6, 8) }, 0xF90004C5},
		{"ldr w1, [x2, #4]", func() (uint32, error) { return LdrImmW(X1, X2, 4) }, 0xB9400441},
		{"str w1, [x2, #4]", func() (uint32, error) { return StrImmW(X1, X2, 4) }, 0xB9000441},
		{"ldr x1, [x2, x3]", func() (uint32, error) { return LdrxReg(X1, X2, X3) }, 0xF8636841},
		{"ldrb w1, [x2, x3]", func() (uint32, error) { return LdrbReg(X1, X2, X3) }, 0x38636841},
		{"ldrh w1, [x2, x3]", func() (uint32, error) { return LdrhReg(X1, X2, X3) }, 0x78636841},
		{"ldr w1, [x2, x3]", func() (uint32, error) { return LdrwReg(X1, X2, X3) }, 0xB8636841},
		{"ldrsb x1, [x2, x3]", func() (uint32, error) { return LdrsbReg(X1, X2, X3) }, 0x38A36841},
		{"ldrsh x1, [x2, x3]", func() (uint32, error) { return LdrshReg(X1, X2, X3) }, 0x78A36841},
		{"ldrsw x1, [x2, x3]", func() (uint32, error) { return LdrswReg(X1, X2, X3) }, 0xB8A36841},
		{"strb w1, [x2, x3]", func() (uint32, error) { return StrbReg(X1, X2, X3) }, 0x38236841},
		{"strh w1, [x2, x3]", func() (uint32, error) { return StrhReg(X1, X2, X3) }, 0x78236841},
		{"str w1, [x2, x3]", func() (uint32, error) { return StrwReg(X1, X2, X3) }, 0xB8236841},
		{"str x1, [x2, x3]", func() (uint32, error) { return StrxReg(X1, X2, X3) }, 0xF8236841},
		{"b +8", func() (uint32, error) { return B(8) }, 0x14000002},
		{"b -4", func() (uint32, error) { return B(-4) }, 0x17FFFFFF},
		{"bl +0", func() (uint32, error) { return Bl(0) }, 0x94000000},
		{"b.eq +8", func() (uint32, error) { return BCond(EQ, 8) }, 0x54000040},
		{"b.ne -8", func() (uint32, error) { return BCond(NE, -8) }, 0x54FFFFC1},
		{"cbz x0, +8", func() (uint32, error) { return Cbz(X0, 8) }, 0xB4000040},
		{"cbnz w1, +8", func() (uint32, error) { return CbnzW(X1, 8) }, 0x35000041},
		{"br x15", func() (uint32, error) { return Br(X15) }, 0xD61F01E0},
		{"blr x9", func() (uint32, error) { return Blr(X9) }, 0xD63F0120},
		{"ret", func() (uint32, error) { return Ret() }, 0xD65F03C0},
	}

	for _, tc := range cases {
		got, err := tc.got()
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %#08x, want %#08x", tc.name, got, tc.want)
		}
	}
}

func TestEncodingErrors(t *testing.T) {
	cases := []struct {
		name string
		got  func() (uint32, error)
	}{
		{"add imm too large", func() (uint32, error) { return AddImm(X0, X0, 0x1000) }},
		{"ldr unaligned offset", func() (uint32, error) { return LdrImm(X0, X1, 12) }},
		{"b unaligned", func() (uint32, error) { return B(2) }},
		{"b.cond out of range", func() (uint32, error) { return BCond(EQ, 1 << 21) }},
		{"cset al", func() (uint32, error) { return Cset(X0, AL) }},
		{"movz bad shift", func() (uint32, error) { return Movz(X0, 1, 8) }},
		{"ubfx zero width", func() (uint32, error) { return Ubfx(X0, X1, 4, 0) }},
		{"add imm reg 31 source", func() (uint32, error) { return AddImm(X0, XZR, 1) }},
		{"add imm reg 31 dest", func() (uint32, error) { return AddImm(XZR, X0, 1) }},
		{"sub imm reg 31 source", func() (uint32, error) { return SubImm(X0, XZR, 1) }},
		{"cmp imm reg 31", func() (uint32, error) { return CmpImm(XZR, 1) }},
	}
	for _, tc := range cases {
		if _, err := tc.got(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestCondInvert(t *testing.T) {
	pairs := []struct{ a, b Cond }{
		{EQ, NE}, {HS, LO}, {LT, GE}, {LE, GT},
	}
	for _, p := range pairs {
		if p.a.Invert() != p.b || p.b.Invert() != p.a {
			t.Errorf("%v/%v do not invert to each other", p.a, p.b)
		}
	}
}
