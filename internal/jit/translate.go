package jit

import (
	"unsafe"

	"github.com/tinyrange/rvjit/internal/arm64"
	"github.com/tinyrange/rvjit/internal/rv64"
)

// State field offsets baked into emitted code. Guest register n lives
// at offset n*8.
var (
	offPC         = uint32(unsafe.Offsetof(State{}.PC))
	offIntr       = uint32(unsafe.Offsetof(State{}.IntrPending))
	offFaultAddr  = uint32(unsafe.Offsetof(State{}.FaultAddr))
	offTLBRefills = uint32(unsafe.Offsetof(State{}.TLBRefills))
	offTLB        = uint32(unsafe.Offsetof(State{}.TLB))
)

// Scratch registers for emitted sequences. These are caller-saved in
// AAPCS64 and never assigned to guest registers, so sequences can use
// them freely between guest operations. X15 stashes the trampoline
// return address around the refill stub call; the stub's fault path
// leaves through it.
const (
	tmpAddr   = arm64.X8  // guest effective address
	tmpTag    = arm64.X9  // page tag
	tmpIdx    = arm64.X10 // TLB index
	tmpEntry  = arm64.X11 // TLB entry pointer
	tmpA      = arm64.X12
	tmpHost   = arm64.X13 // host page base, then host offset
	tmpB      = arm64.X14
	regLRSave = arm64.X15
)

// Worst-case emitted words, used to reserve code buffer space before a
// block is translated so emission never runs off the end.
const (
	maxWordsPerInsn = 32
	prologueWords   = 12
	epilogueWords   = 8
)

// translator compiles one basic block. Translation stops at the first
// control transfer, at anything the dispatcher must service, or at the
// per-block instruction ceiling.
type translator struct {
	eng   *Engine
	a     blockAsm
	ra    regAlloc
	start uint64
	pc    uint64
	open  bool
}

func (t *translator) init(e *Engine, pc uint64) {
	t.eng = e
	t.a = blockAsm{buf: e.buf}
	t.ra.reset(&t.a)
	t.start = pc
	t.pc = pc
	t.open = true
}

// emitMovImm materializes v into rd with MOVZ/MOVN plus MOVKs.
func (t *translator) emitMovImm(rd arm64.Reg, v uint64) {
	if v|0xffff == ^uint64(0) {
		t.a.op(arm64.Movn(rd, uint16(^v), 0))
		return
	}
	emitted := false
	for i := uint32(0); i < 4; i++ {
		chunk := uint16(v >> (16 * i))
		if chunk == 0 {
			continue
		}
		if !emitted {
			t.a.op(arm64.Movz(rd, chunk, 16*i))
			emitted = true
		} else {
			t.a.op(arm64.Movk(rd, chunk, 16*i))
		}
	}
	if !emitted {
		t.a.op(arm64.Movz(rd, 0, 0))
	}
}

// prologue records the block's own address in State.PC and takes the
// interrupt exit if the pending flag is set.
func (t *translator) prologue() {
	t.emitMovImm(tmpAddr, t.start)
	t.a.op(arm64.StrImm(tmpAddr, regState, offPC))
	t.a.op(arm64.LdrImmW(tmpTag, regState, offIntr))
	hole := t.a.reserve() // cbz over the interrupt exit
	t.a.op(arm64.Movz(arm64.X0, uint16(ExitInterrupt), 0))
	t.a.op(arm64.Ret())
	w, err := arm64.CbzW(tmpTag, int64(t.a.here()-hole))
	t.a.patch(hole, w, err)
}

// emitExit stores target into State.PC and returns to the dispatcher.
// Registers must already be flushed.
func (t *translator) emitExit(reason ExitReason, target uint64) {
	t.emitMovImm(tmpAddr, target)
	t.a.op(arm64.StrImm(tmpAddr, regState, offPC))
	t.a.op(arm64.Movz(arm64.X0, uint16(reason), 0))
	t.a.op(arm64.Ret())
}

// emitChain emits the edge to target: a direct branch if target is
// already compiled, otherwise an exit stub whose first word is
// recorded for backpatching.
func (t *translator) emitChain(target uint64) {
	if off, ok := t.eng.cache.lookup(target); ok {
		t.a.op(arm64.B(int64(off - t.a.here())))
		return
	}
	site := t.a.here()
	t.emitExit(ExitBranch, target)
	t.eng.cache.recordFixup(target, site)
	t.eng.stats.FixupsRecorded++
}

// emitAddImm computes s+imm into d. Register 31 encodes SP in the
// immediate arithmetic forms, so the zero register takes the move and
// shifted-register paths, where 31 really is XZR. A discarded
// destination emits nothing.
func (t *translator) emitAddImm(d, s arm64.Reg, imm int64) {
	if d == arm64.XZR {
		return
	}
	if s == arm64.XZR {
		t.emitMovImm(d, uint64(imm))
		return
	}
	switch {
	case imm == 0:
		t.a.op(arm64.MovReg(d, s))
	case imm > 0 && imm < 4096:
		t.a.op(arm64.AddImm(d, s, uint32(imm)))
	case imm < 0 && imm > -4096:
		t.a.op(arm64.SubImm(d, s, uint32(-imm)))
	default:
		t.emitMovImm(tmpA, uint64(imm))
		t.a.op(arm64.AddReg(d, s, tmpA))
	}
}

// emitGuestAddr computes rs1+imm into tmpAddr.
func (t *translator) emitGuestAddr(in rv64.Inst) {
	t.emitAddImm(tmpAddr, t.ra.src(in.Rs1), in.Imm)
}

// emitTLBLookup translates the guest address in tmpAddr to a host
// offset in tmpHost. Hits stay inline; misses call the shared refill
// stub, whose fault path exits the block directly.
func (t *translator) emitTLBLookup() {
	t.a.op(arm64.Ubfx(tmpTag, tmpAddr, pageShift, 64-pageShift))
	t.a.op(arm64.Ubfx(tmpIdx, tmpAddr, pageShift, tlbBits))
	t.a.op(arm64.AddShifted(tmpEntry, regState, tmpIdx, 4))
	t.a.op(arm64.LdrImm(tmpA, tmpEntry, offTLB))
	t.a.op(arm64.CmpReg(tmpA, tmpTag))
	hit := t.a.reserve() // b.eq to the entry reload
	t.a.op(arm64.MovReg(regLRSave, arm64.LR))
	site := t.a.here()
	t.a.op(arm64.Bl(int64(t.eng.stubOff - site)))
	t.a.op(arm64.MovReg(arm64.LR, regLRSave))
	join := t.a.reserve() // the stub left the host base in tmpHost
	w, err := arm64.BCond(arm64.EQ, int64(t.a.here()-hit))
	t.a.patch(hit, w, err)
	t.a.op(arm64.LdrImm(tmpHost, tmpEntry, offTLB+8))
	w, err = arm64.B(int64(t.a.here()-join))
	t.a.patch(join, w, err)
	t.a.op(arm64.Ubfx(tmpB, tmpAddr, 0, pageShift))
	t.a.op(arm64.AddReg(tmpHost, tmpHost, tmpB))
}

func (t *translator) emitLoad(in rv64.Inst) {
	t.emitGuestAddr(in)
	t.emitTLBLookup()
	d := t.ra.dst(in.Rd)
	switch in.Op {
	case rv64.OpLB:
		t.a.op(arm64.LdrsbReg(d, regMem, tmpHost))
	case rv64.OpLH:
		t.a.op(arm64.LdrshReg(d, regMem, tmpHost))
	case rv64.OpLW:
		t.a.op(arm64.LdrswReg(d, regMem, tmpHost))
	case rv64.OpLD:
		t.a.op(arm64.LdrxReg(d, regMem, tmpHost))
	case rv64.OpLBU:
		t.a.op(arm64.LdrbReg(d, regMem, tmpHost))
	case rv64.OpLHU:
		t.a.op(arm64.LdrhReg(d, regMem, tmpHost))
	case rv64.OpLWU:
		t.a.op(arm64.LdrwReg(d, regMem, tmpHost))
	}
}

func (t *translator) emitStore(in rv64.Inst) {
	t.emitGuestAddr(in)
	t.emitTLBLookup()
	v := t.ra.src(in.Rs2)
	switch in.Op {
	case rv64.OpSB:
		t.a.op(arm64.StrbReg(v, regMem, tmpHost))
	case rv64.OpSH:
		t.a.op(arm64.StrhReg(v, regMem, tmpHost))
	case rv64.OpSW:
		t.a.op(arm64.StrwReg(v, regMem, tmpHost))
	case rv64.OpSD:
		t.a.op(arm64.StrxReg(v, regMem, tmpHost))
	}
}

var branchConds = map[rv64.Op]arm64.Cond{
	rv64.OpBEQ:  arm64.EQ,
	rv64.OpBNE:  arm64.NE,
	rv64.OpBLT:  arm64.LT,
	rv64.OpBGE:  arm64.GE,
	rv64.OpBLTU: arm64.LO,
	rv64.OpBGEU: arm64.HS,
}

func (t *translator) emitBranch(in rv64.Inst) {
	a := t.ra.src(in.Rs1)
	b := t.ra.src(in.Rs2, a)
	t.ra.flush()
	t.a.op(arm64.CmpReg(a, b))
	hole := t.a.reserve()
	t.emitChain(t.pc + uint64(in.Len))
	taken := t.a.here()
	w, err := arm64.BCond(branchConds[in.Op], int64(taken-hole))
	t.a.patch(hole, w, err)
	t.emitChain(t.pc + uint64(in.Imm))
	t.open = false
}

func (t *translator) emitJAL(in rv64.Inst) {
	if in.Rd != 0 {
		d := t.ra.dst(in.Rd)
		t.emitMovImm(d, t.pc+uint64(in.Len))
	}
	t.ra.flush()
	t.emitChain(t.pc + uint64(in.Imm))
	t.open = false
}

func (t *translator) emitJALR(in rv64.Inst) {
	t.emitGuestAddr(in)
	// Clear bit zero of the target.
	t.a.op(arm64.LsrImm(tmpAddr, tmpAddr, 1))
	t.a.op(arm64.LslImm(tmpAddr, tmpAddr, 1))
	if in.Rd != 0 {
		d := t.ra.dst(in.Rd)
		t.emitMovImm(d, t.pc+uint64(in.Len))
	}
	t.ra.flush()
	t.a.op(arm64.StrImm(tmpAddr, regState, offPC))
	t.a.op(arm64.Movz(arm64.X0, uint16(ExitIndirect), 0))
	t.a.op(arm64.Ret())
	t.open = false
}

// emitServiceExit ends the block at an instruction the dispatcher
// services in Go, with State.PC pointing at the instruction itself.
func (t *translator) emitServiceExit(reason ExitReason) {
	t.ra.flush()
	t.emitExit(reason, t.pc)
	t.open = false
}

// emitCmp emits the comparison against a signed immediate. The
// register form is used when a is the zero register, which would read
// SP in the immediate encoding.
func (t *translator) emitCmpImm(a arm64.Reg, imm int64) {
	if a != arm64.XZR && imm >= 0 && imm < 4096 {
		t.a.op(arm64.CmpImm(a, uint32(imm)))
		return
	}
	t.emitMovImm(tmpA, uint64(imm))
	t.a.op(arm64.CmpReg(a, tmpA))
}

// emitDiv handles the DIV/REM family including the RISC-V divide by
// zero results, which differ from the AArch64 hardware behavior.
func (t *translator) emitDiv(in rv64.Inst) {
	a := t.ra.src(in.Rs1)
	b := t.ra.src(in.Rs2, a)
	d := t.ra.dst(in.Rd, a, b)

	wide := in.Op == rv64.OpDIV || in.Op == rv64.OpDIVU ||
		in.Op == rv64.OpREM || in.Op == rv64.OpREMU
	signed := in.Op == rv64.OpDIV || in.Op == rv64.OpDIVW ||
		in.Op == rv64.OpREM || in.Op == rv64.OpREMW
	rem := in.Op == rv64.OpREM || in.Op == rv64.OpREMU ||
		in.Op == rv64.OpREMW || in.Op == rv64.OpREMUW

	hole := t.a.reserve() // cbnz b, divide

	// Divisor is zero: quotient is all ones, remainder the dividend.
	switch {
	case !rem:
		t.a.op(arm64.Movn(d, 0, 0))
	case wide:
		t.a.op(arm64.MovReg(d, a))
	default:
		t.a.op(arm64.Sxtw(d, a))
	}
	skip := t.a.reserve() // b done

	divide := t.a.here()
	if wide {
		w, err := arm64.Cbnz(b, int64(divide-hole))
		t.a.patch(hole, w, err)
	} else {
		w, err := arm64.CbnzW(b, int64(divide-hole))
		t.a.patch(hole, w, err)
	}

	divOp := arm64.Udiv
	if signed {
		divOp = arm64.Sdiv
	}
	if !wide {
		divOp = arm64.UdivW
		if signed {
			divOp = arm64.SdivW
		}
	}

	if rem {
		t.a.op(divOp(tmpA, a, b))
		if wide {
			t.a.op(arm64.Msub(d, tmpA, b, a))
		} else {
			t.a.op(arm64.MsubW(d, tmpA, b, a))
			t.a.op(arm64.Sxtw(d, d))
		}
	} else {
		t.a.op(divOp(d, a, b))
		if !wide {
			t.a.op(arm64.Sxtw(d, d))
		}
	}

	done := t.a.here()
	w, err := arm64.B(int64(done - skip))
	t.a.patch(skip, w, err)
}

// translate emits one instruction and advances the guest PC. Blocks
// close on control transfers and on anything serviced by the
// dispatcher.
func (t *translator) translate(in rv64.Inst) {
	ra := &t.ra
	a := &t.a

	switch in.Op {
	case rv64.OpLUI:
		t.emitMovImm(ra.dst(in.Rd), uint64(in.Imm))
	case rv64.OpAUIPC:
		t.emitMovImm(ra.dst(in.Rd), t.pc+uint64(in.Imm))

	case rv64.OpJAL:
		t.emitJAL(in)
		return
	case rv64.OpJALR:
		t.emitJALR(in)
		return
	case rv64.OpBEQ, rv64.OpBNE, rv64.OpBLT, rv64.OpBGE, rv64.OpBLTU, rv64.OpBGEU:
		t.emitBranch(in)
		return

	case rv64.OpLB, rv64.OpLH, rv64.OpLW, rv64.OpLD,
		rv64.OpLBU, rv64.OpLHU, rv64.OpLWU:
		t.emitLoad(in)
	case rv64.OpSB, rv64.OpSH, rv64.OpSW, rv64.OpSD:
		t.emitStore(in)

	case rv64.OpADDI:
		s := ra.src(in.Rs1)
		t.emitAddImm(ra.dst(in.Rd, s), s, in.Imm)
	case rv64.OpSLTI:
		s := ra.src(in.Rs1)
		t.emitCmpImm(s, in.Imm)
		a.op(arm64.Cset(ra.dst(in.Rd, s), arm64.LT))
	case rv64.OpSLTIU:
		s := ra.src(in.Rs1)
		t.emitCmpImm(s, in.Imm)
		a.op(arm64.Cset(ra.dst(in.Rd, s), arm64.LO))
	case rv64.OpXORI:
		s := ra.src(in.Rs1)
		t.emitMovImm(tmpA, uint64(in.Imm))
		a.op(arm64.EorReg(ra.dst(in.Rd, s), s, tmpA))
	case rv64.OpORI:
		s := ra.src(in.Rs1)
		t.emitMovImm(tmpA, uint64(in.Imm))
		a.op(arm64.OrrReg(ra.dst(in.Rd, s), s, tmpA))
	case rv64.OpANDI:
		s := ra.src(in.Rs1)
		t.emitMovImm(tmpA, uint64(in.Imm))
		a.op(arm64.AndReg(ra.dst(in.Rd, s), s, tmpA))

	case rv64.OpSLLI:
		s := ra.src(in.Rs1)
		a.op(arm64.LslImm(ra.dst(in.Rd, s), s, uint32(in.Imm)))
	case rv64.OpSRLI:
		s := ra.src(in.Rs1)
		a.op(arm64.LsrImm(ra.dst(in.Rd, s), s, uint32(in.Imm)))
	case rv64.OpSRAI:
		s := ra.src(in.Rs1)
		a.op(arm64.AsrImm(ra.dst(in.Rd, s), s, uint32(in.Imm)))

	case rv64.OpADDIW:
		s := ra.src(in.Rs1)
		d := ra.dst(in.Rd, s)
		t.emitAddImm(d, s, in.Imm)
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSLLIW:
		s := ra.src(in.Rs1)
		d := ra.dst(in.Rd, s)
		a.op(arm64.LslImmW(d, s, uint32(in.Imm)))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSRLIW:
		s := ra.src(in.Rs1)
		d := ra.dst(in.Rd, s)
		a.op(arm64.LsrImmW(d, s, uint32(in.Imm)))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSRAIW:
		s := ra.src(in.Rs1)
		d := ra.dst(in.Rd, s)
		a.op(arm64.AsrImmW(d, s, uint32(in.Imm)))
		a.op(arm64.Sxtw(d, d))

	case rv64.OpADD:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.AddReg(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpSUB:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.SubReg(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpSLL:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Lslv(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpSLT:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.CmpReg(x, y))
		a.op(arm64.Cset(ra.dst(in.Rd, x, y), arm64.LT))
	case rv64.OpSLTU:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.CmpReg(x, y))
		a.op(arm64.Cset(ra.dst(in.Rd, x, y), arm64.LO))
	case rv64.OpXOR:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.EorReg(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpSRL:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Lsrv(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpSRA:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Asrv(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpOR:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.OrrReg(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpAND:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.AndReg(ra.dst(in.Rd, x, y), x, y))

	case rv64.OpADDW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.AddReg(d, x, y))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSUBW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.SubReg(d, x, y))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSLLW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.LslvW(d, x, y))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSRLW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.LsrvW(d, x, y))
		a.op(arm64.Sxtw(d, d))
	case rv64.OpSRAW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.AsrvW(d, x, y))
		a.op(arm64.Sxtw(d, d))

	case rv64.OpMUL:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Mul(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpMULH:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Smulh(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpMULHU:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		a.op(arm64.Umulh(ra.dst(in.Rd, x, y), x, y))
	case rv64.OpMULHSU:
		// umulh(a, b) - ((a >> 63) & b)
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.Umulh(tmpA, x, y))
		a.op(arm64.AsrImm(tmpB, x, 63))
		a.op(arm64.AndReg(tmpB, tmpB, y))
		a.op(arm64.SubReg(d, tmpA, tmpB))
	case rv64.OpMULW:
		x := ra.src(in.Rs1)
		y := ra.src(in.Rs2, x)
		d := ra.dst(in.Rd, x, y)
		a.op(arm64.MulW(d, x, y))
		a.op(arm64.Sxtw(d, d))

	case rv64.OpDIV, rv64.OpDIVU, rv64.OpREM, rv64.OpREMU,
		rv64.OpDIVW, rv64.OpDIVUW, rv64.OpREMW, rv64.OpREMUW:
		t.emitDiv(in)

	case rv64.OpFENCE:
		// Nothing to order for a single guest hart.

	case rv64.OpFENCEI:
		t.emitServiceExit(ExitIFence)
		return
	case rv64.OpECALL:
		t.emitServiceExit(ExitSyscall)
		return
	case rv64.OpEBREAK:
		t.emitServiceExit(ExitBreak)
		return
	case rv64.OpCSRRW, rv64.OpCSRRS, rv64.OpCSRRC,
		rv64.OpCSRRWI, rv64.OpCSRRSI, rv64.OpCSRRCI:
		t.emitServiceExit(ExitCSR)
		return
	case rv64.OpAMOW, rv64.OpAMOD:
		t.emitServiceExit(ExitAtomic)
		return
	}

	t.pc += uint64(in.Len)
}
