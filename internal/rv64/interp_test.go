package rv64

import (
	"encoding/binary"
	"errors"
	"testing"
)

// testMem is a flat RAM starting at RAMBase.
type testMem struct {
	data []byte
}

func newTestMem(size int) *testMem {
	return &testMem{data: make([]byte, size)}
}

func (m *testMem) off(addr uint64, n int) (int, error) {
	if addr < RAMBase || addr-RAMBase+uint64(n) > uint64(len(m.data)) {
		return 0, &AccessFaultError{Addr: addr}
	}
	return int(addr - RAMBase), nil
}

func (m *testMem) ReadU8(addr uint64) (uint8, error) {
	o, err := m.off(addr, 1)
	if err != nil {
		return 0, err
	}
	return m.data[o], nil
}

func (m *testMem) ReadU16(addr uint64) (uint16, error) {
	o, err := m.off(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[o:]), nil
}

func (m *testMem) ReadU32(addr uint64) (uint32, error) {
	o, err := m.off(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[o:]), nil
}

func (m *testMem) ReadU64(addr uint64) (uint64, error) {
	o, err := m.off(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[o:]), nil
}

func (m *testMem) WriteU8(addr uint64, v uint8) error {
	o, err := m.off(addr, 1)
	if err != nil {
		return err
	}
	m.data[o] = v
	return nil
}

func (m *testMem) WriteU16(addr uint64, v uint16) error {
	o, err := m.off(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[o:], v)
	return nil
}

func (m *testMem) WriteU32(addr uint64, v uint32) error {
	o, err := m.off(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[o:], v)
	return nil
}

func (m *testMem) WriteU64(addr uint64, v uint64) error {
	o, err := m.off(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[o:], v)
	return nil
}

// runProgram loads code at RAMBase and steps until EBREAK or limit.
func runProgram(t *testing.T, code []uint32, setup func(x *[32]uint64)) [32]uint64 {
	t.Helper()

	mem := newTestMem(1 << 20)
	for i, w := range code {
		binary.LittleEndian.PutUint32(mem.data[i*4:], w)
	}

	ip := NewInterp(mem)
	var x [32]uint64
	if setup != nil {
		setup(&x)
	}

	pc := uint64(RAMBase)
	for steps := 0; steps < 10000; steps++ {
		in, err := ip.Fetch(pc)
		if err != nil {
			t.Fatalf("fetch at %#x: %v", pc, err)
		}
		next, err := ip.Step(&x, pc, in)
		if errors.Is(err, ErrBreakpoint) {
			return x
		}
		if err != nil {
			t.Fatalf("step at %#x (%v): %v", pc, in, err)
		}
		pc = next
	}
	t.Fatal("program did not reach ebreak")
	return x
}

func TestInterpArith(t *testing.T) {
	code := []uint32{
		0x00500513, // li a0, 5
		0x00700593, // li a1, 7
		0x00b50633, // add a2, a0, a1
		0x40a586b3, // sub a3, a1, a0
		0x02b50733, // mul a4, a0, a1
		0x00b527b3, // slt a5, a0, a1
		0x00100073, // ebreak
	}
	x := runProgram(t, code, nil)
	if x[12] != 12 {
		t.Errorf("a2 = %d, want 12", x[12])
	}
	if x[13] != 2 {
		t.Errorf("a3 = %d, want 2", x[13])
	}
	if x[14] != 35 {
		t.Errorf("a4 = %d, want 35", x[14])
	}
	if x[15] != 1 {
		t.Errorf("a5 = %d, want 1", x[15])
	}
}

func TestInterpBranchLoop(t *testing.T) {
	// Sums 1..10 into a0.
	code := []uint32{
		0x00000513, // li a0, 0
		0x00100593, // li a1, 1
		0x00a00613, // li a2, 10
		0x00b50533, // loop: add a0, a0, a1
		0x00158593, // addi a1, a1, 1
		0xfeb65ce3, // bge a2, a1, loop
		0x00100073, // ebreak
	}
	x := runProgram(t, code, nil)
	if x[10] != 55 {
		t.Errorf("a0 = %d, want 55", x[10])
	}
}

func TestInterpLoadStore(t *testing.T) {
	addr := uint64(RAMBase + 0x1000)
	code := []uint32{
		0x00b53023, // sd a1, 0(a0)
		0x00053603, // ld a2, 0(a0)
		0x00052683, // lw a3, 0(a0)
		0x00056703, // lwu a4, 0(a0)
		0x00054783, // lbu a5, 0(a0)
		0x00455803, // lhu a6, 4(a0)
		0x00100073, // ebreak
	}
	x := runProgram(t, code, func(x *[32]uint64) {
		x[10] = addr
		x[11] = 0xfedcba9876543210
	})
	if x[12] != 0xfedcba9876543210 {
		t.Errorf("ld = %#x", x[12])
	}
	if x[13] != 0x0000000076543210 {
		t.Errorf("lw = %#x, want sign-extended low word", x[13])
	}
	if x[14] != 0x76543210 {
		t.Errorf("lwu = %#x", x[14])
	}
	if x[15] != 0x10 {
		t.Errorf("lbu = %#x", x[15])
	}
	if x[16] != 0xba98 {
		t.Errorf("lhu = %#x", x[16])
	}
}

func TestInterpDivEdgeCases(t *testing.T) {
	cases := []struct {
		name   string
		op     Op
		a, b   uint64
		expect uint64
	}{
		{"div by zero", OpDIV, 7, 0, ^uint64(0)},
		{"divu by zero", OpDIVU, 7, 0, ^uint64(0)},
		{"rem by zero", OpREM, 7, 0, 7},
		{"remu by zero", OpREMU, 7, 0, 7},
		{"div overflow", OpDIV, 1 << 63, ^uint64(0), 1 << 63},
		{"rem overflow", OpREM, 1 << 63, ^uint64(0), 0},
		{"divw by zero", OpDIVW, 7, 0, ^uint64(0)},
		{"remw by zero", OpREMW, 0xffffffff80000001, 0, 0xffffffff80000001},
		{"divw overflow", OpDIVW, 0xffffffff80000000, ^uint64(0), 0xffffffff80000000},
		{"divuw", OpDIVUW, 0x1_0000_0010, 4, 4},
	}

	mem := newTestMem(1 << 12)
	ip := NewInterp(mem)
	for _, tc := range cases {
		var x [32]uint64
		x[11] = tc.a
		x[12] = tc.b
		in := Inst{Op: tc.op, Rd: 10, Rs1: 11, Rs2: 12, Len: 4}
		if _, err := ip.Step(&x, RAMBase, in); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if x[10] != tc.expect {
			t.Errorf("%s: got %#x, want %#x", tc.name, x[10], tc.expect)
		}
	}
}

func TestInterpMulHigh(t *testing.T) {
	cases := []struct {
		op     Op
		a, b   uint64
		expect uint64
	}{
		{OpMULHU, ^uint64(0), ^uint64(0), ^uint64(0) - 1},
		{OpMULH, ^uint64(0), ^uint64(0), 0},
		{OpMULH, 1 << 63, 2, ^uint64(0)},
		{OpMULHSU, ^uint64(0), ^uint64(0), ^uint64(0)},
		{OpMULHSU, 2, ^uint64(0), 1},
	}

	mem := newTestMem(1 << 12)
	ip := NewInterp(mem)
	for _, tc := range cases {
		var x [32]uint64
		x[11] = tc.a
		x[12] = tc.b
		in := Inst{Op: tc.op, Rd: 10, Rs1: 11, Rs2: 12, Len: 4}
		if _, err := ip.Step(&x, RAMBase, in); err != nil {
			t.Fatalf("%v: %v", tc.op, err)
		}
		if x[10] != tc.expect {
			t.Errorf("%v(%#x, %#x) = %#x, want %#x", tc.op, tc.a, tc.b, x[10], tc.expect)
		}
	}
}

func TestInterpAMO(t *testing.T) {
	addr := uint64(RAMBase + 0x100)
	code := []uint32{
		0x08c5262f, // amoswap.w a2, a2, (a0)
		0x00d5272f, // amoadd.w a4, a3, (a0)
		0x00100073, // ebreak
	}
	x := runProgram(t, code, func(x *[32]uint64) {
		x[10] = addr
		x[12] = 0x1111
		x[13] = 3
	})
	if x[12] != 0 {
		t.Errorf("amoswap old value = %#x, want 0", x[12])
	}
	if x[14] != 0x1111 {
		t.Errorf("amoadd old value = %#x, want 0x1111", x[14])
	}

	mem := newTestMem(1 << 12)
	ip := NewInterp(mem)
	var regs [32]uint64
	regs[10] = RAMBase + 8
	regs[12] = 42

	// lr.d / sc.d pair succeeds with an intact reservation.
	lr, err := Decode(0x100535af, RAMBase) // lr.d a1, (a0)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := Decode(0x18c535af, RAMBase) // sc.d a1, a2, (a0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ip.Step(&regs, RAMBase, lr); err != nil {
		t.Fatal(err)
	}
	if _, err := ip.Step(&regs, RAMBase, sc); err != nil {
		t.Fatal(err)
	}
	if regs[11] != 0 {
		t.Errorf("sc.d result = %d, want success (0)", regs[11])
	}
	if v, _ := mem.ReadU64(RAMBase + 8); v != 42 {
		t.Errorf("sc.d stored %d, want 42", v)
	}

	// A second sc.d without a fresh reservation fails.
	if _, err := ip.Step(&regs, RAMBase, sc); err != nil {
		t.Fatal(err)
	}
	if regs[11] == 0 {
		t.Error("sc.d without reservation reported success")
	}
}

func TestInterpCSR(t *testing.T) {
	mem := newTestMem(1 << 12)
	ip := NewInterp(mem)
	var x [32]uint64
	x[11] = 0xf0

	step := func(word uint32) {
		t.Helper()
		in, err := Decode(word, RAMBase)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ip.Step(&x, RAMBase, in); err != nil {
			t.Fatal(err)
		}
	}

	step(0x10059573) // csrrw a0, 0x100, a1
	if x[10] != 0 {
		t.Errorf("initial csr read = %#x, want 0", x[10])
	}
	step(0x10002573) // csrrs a0, 0x100, zero
	if x[10] != 0xf0 {
		t.Errorf("csr readback = %#x, want 0xf0", x[10])
	}
	x[11] = 0x0f
	step(0x1005a573) // csrrs a0, 0x100, a1
	step(0x10002573) // csrrs a0, 0x100, zero
	if x[10] != 0xff {
		t.Errorf("csr after set = %#x, want 0xff", x[10])
	}
	step(0x1005b573) // csrrc a0, 0x100, a1
	step(0x10002573) // csrrs a0, 0x100, zero
	if x[10] != 0xf0 {
		t.Errorf("csr after clear = %#x, want 0xf0", x[10])
	}
}

func TestInterpEnvCalls(t *testing.T) {
	mem := newTestMem(1 << 12)
	binary.LittleEndian.PutUint32(mem.data, 0x00000073)    // ecall
	binary.LittleEndian.PutUint32(mem.data[4:], 0x00100073) // ebreak

	ip := NewInterp(mem)
	var x [32]uint64

	in, err := ip.Fetch(RAMBase)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := ip.Step(&x, RAMBase, in)
	if !errors.Is(err, ErrEnvCall) {
		t.Fatalf("ecall: %v, want ErrEnvCall", err)
	}
	if pc != RAMBase {
		t.Errorf("ecall pc = %#x, want unadvanced %#x", pc, uint64(RAMBase))
	}

	in, err = ip.Fetch(RAMBase + 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ip.Step(&x, RAMBase+4, in); !errors.Is(err, ErrBreakpoint) {
		t.Fatalf("ebreak: %v, want ErrBreakpoint", err)
	}
}

func TestInterpAccessFault(t *testing.T) {
	mem := newTestMem(1 << 12)
	ip := NewInterp(mem)
	var x [32]uint64
	x[11] = 0x1000 // below RAMBase

	in := Inst{Op: OpLD, Rd: 10, Rs1: 11, Len: 4}
	_, err := ip.Step(&x, RAMBase, in)
	var fault *AccessFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("load below RAM: %v, want AccessFaultError", err)
	}
	if fault.Addr != 0x1000 {
		t.Errorf("fault addr = %#x, want 0x1000", fault.Addr)
	}
}

func TestInterpCompressedFetch(t *testing.T) {
	code := []uint16{
		0x4529, // c.li a0, 10
		0x0505, // c.addi a0, 1
		0x852a, // c.mv a0, a0 (placeholder, keeps alignment)
		0x9002, // c.ebreak
	}
	mem := newTestMem(1 << 12)
	for i, h := range code {
		binary.LittleEndian.PutUint16(mem.data[i*2:], h)
	}

	ip := NewInterp(mem)
	var x [32]uint64
	pc := uint64(RAMBase)
	for {
		in, err := ip.Fetch(pc)
		if err != nil {
			t.Fatalf("fetch at %#x: %v", pc, err)
		}
		if in.Len != 2 {
			t.Fatalf("at %#x: Len = %d, want 2", pc, in.Len)
		}
		next, err := ip.Step(&x, pc, in)
		if errors.Is(err, ErrBreakpoint) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		pc = next
	}
	if x[10] != 11 {
		t.Errorf("a0 = %d, want 11", x[10])
	}
}
