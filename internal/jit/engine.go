package jit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinyrange/rvjit/internal/arm64"
	"github.com/tinyrange/rvjit/internal/rv64"
)

// RAMBase is the guest address where RAM begins.
const RAMBase = rv64.RAMBase

// Config configures an Engine. Zero values pick the defaults below.
type Config struct {
	// MemorySize is the guest RAM size in bytes, mapped at rv64.RAMBase.
	// Must be a multiple of 4 KiB.
	MemorySize uint64

	// CodeBufferSize is the translated-code region size in bytes. All
	// blocks must stay within direct-branch reach of each other, so the
	// limit is 128 MiB.
	CodeBufferSize int

	// MaxBlocks caps the number of cached blocks. Exceeding it is
	// treated as a sizing bug and panics.
	MaxBlocks int

	// MaxBlockInsns caps guest instructions per translated block.
	MaxBlockInsns int

	// SyscallHandler services ECALL exits. State.PC holds the ECALL's
	// address when called; Run advances past it afterwards. A nil
	// handler makes Run return on every syscall. Returning an error
	// stops Run; ErrHalt stops it cleanly.
	SyscallHandler func(*State, *Memory) error

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

const (
	defaultMemorySize     = 64 << 20
	defaultCodeBufferSize = 16 << 20
	defaultMaxBlocks      = 4096
	defaultMaxBlockInsns  = 128
	maxCodeBufferSize     = 128 << 20
)

// Engine translates and runs RV64 guest code.
type Engine struct {
	cfg     Config
	log     *slog.Logger
	state   *State
	mem     *Memory
	buf     *codeBuffer
	cache   *blockCache
	interp  *rv64.Interp
	stubOff int
	stats   Stats
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Blocks         int
	BlocksCompiled uint64
	BlockRuns      uint64
	CacheHits      uint64
	CacheMisses    uint64
	Fallbacks      uint64
	FixupsRecorded uint64
	FixupsApplied  uint64
	FixupsPending  int
	TLBRefills     uint64
}

func New(cfg Config) (*Engine, error) {
	if cfg.MemorySize == 0 {
		cfg.MemorySize = defaultMemorySize
	}
	if cfg.CodeBufferSize == 0 {
		cfg.CodeBufferSize = defaultCodeBufferSize
	}
	if cfg.CodeBufferSize > maxCodeBufferSize {
		return nil, fmt.Errorf("code buffer size %#x exceeds branch reach (max %#x)",
			cfg.CodeBufferSize, maxCodeBufferSize)
	}
	if cfg.MaxBlocks == 0 {
		cfg.MaxBlocks = defaultMaxBlocks
	}
	if cfg.MaxBlockInsns == 0 {
		cfg.MaxBlockInsns = defaultMaxBlockInsns
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mem, err := newMemory(cfg.MemorySize)
	if err != nil {
		return nil, err
	}
	buf, err := newCodeBuffer(cfg.CodeBufferSize)
	if err != nil {
		_ = mem.release()
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		log:    cfg.Logger,
		state:  &State{},
		mem:    mem,
		buf:    buf,
		cache:  newBlockCache(cfg.MaxBlocks),
		interp: rv64.NewInterp(mem),
	}
	e.state.FlushTLB()
	e.state.PC = rv64.RAMBase

	if err := e.emitRefillStub(); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the guest memory and code buffer mappings.
func (e *Engine) Close() error {
	err := e.buf.release()
	if merr := e.mem.release(); err == nil {
		err = merr
	}
	return err
}

// State returns the guest CPU state.
func (e *Engine) State() *State { return e.state }

// Memory returns the guest RAM.
func (e *Engine) Memory() *Memory { return e.mem }

// LoadImage copies a flat binary into guest RAM at addr and points the
// guest PC at it.
func (e *Engine) LoadImage(data []byte, addr uint64) error {
	if err := e.mem.WriteBytes(addr, data); err != nil {
		return fmt.Errorf("loading image at %#x: %w", addr, err)
	}
	e.state.PC = addr
	return nil
}

// Stats returns a snapshot of the perf counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Blocks = e.cache.size()
	s.FixupsPending = e.cache.pendingCount()
	s.TLBRefills = e.state.TLBRefills
	return s
}

// emitRefillStub emits the shared TLB refill routine at the start of
// the code buffer. In: tmpAddr guest address, tmpTag page tag,
// tmpEntry entry pointer. Out: tmpHost host page base. Out-of-range
// addresses take the fault path, which records the address and leaves
// through the trampoline return address in regLRSave.
func (e *Engine) emitRefillStub() error {
	t := &translator{eng: e, a: blockAsm{buf: e.buf}}
	a := &t.a

	e.stubOff = e.buf.cursor

	t.emitMovImm(tmpA, rv64.RAMBase)
	a.op(arm64.SubsReg(tmpHost, tmpAddr, tmpA))
	low := a.reserve() // b.lo fault
	t.emitMovImm(tmpA, e.mem.Size())
	a.op(arm64.CmpReg(tmpHost, tmpA))
	high := a.reserve() // b.hs fault
	a.op(arm64.LsrImm(tmpHost, tmpHost, pageShift))
	a.op(arm64.LslImm(tmpHost, tmpHost, pageShift))
	a.op(arm64.StrImm(tmpTag, tmpEntry, offTLB))
	a.op(arm64.StrImm(tmpHost, tmpEntry, offTLB+8))
	a.op(arm64.LdrImm(tmpA, regState, offTLBRefills))
	a.op(arm64.AddImm(tmpA, tmpA, 1))
	a.op(arm64.StrImm(tmpA, regState, offTLBRefills))
	a.op(arm64.Ret())

	fault := a.here()
	w, err := arm64.BCond(arm64.LO, int64(fault-low))
	a.patch(low, w, err)
	w, err = arm64.BCond(arm64.HS, int64(fault-high))
	a.patch(high, w, err)
	a.op(arm64.StrImm(tmpAddr, regState, offFaultAddr))
	a.op(arm64.Movz(arm64.X0, uint16(ExitFault), 0))
	a.op(arm64.Br(regLRSave))

	if err := a.failed(); err != nil {
		return fmt.Errorf("emitting refill stub: %w", err)
	}
	return e.buf.finish(e.stubOff)
}

// CompileOrFetch returns the code buffer offset of the block starting
// at pc, translating it first if needed.
func (e *Engine) CompileOrFetch(pc uint64) (int, error) {
	if off, ok := e.cache.lookup(pc); ok {
		e.stats.CacheHits++
		return off, nil
	}
	e.stats.CacheMisses++
	return e.compileBlock(pc)
}

func (e *Engine) compileBlock(pc uint64) (int, error) {
	need := (prologueWords + e.cfg.MaxBlockInsns*maxWordsPerInsn + epilogueWords) * 4
	if e.buf.remaining() < need {
		panic(fmt.Sprintf("jit: code buffer exhausted (%d bytes left, %d needed) compiling pc=%#x",
			e.buf.remaining(), need, pc))
	}
	if err := e.buf.beginWrite(); err != nil {
		return 0, &CompileError{PC: pc, Err: err}
	}
	start := e.buf.cursor

	var t translator
	t.init(e, pc)
	t.prologue()

	count := 0
	for t.open && count < e.cfg.MaxBlockInsns {
		in, err := e.interp.Fetch(t.pc)
		if err != nil {
			if count == 0 {
				// Nothing translated; report the decode failure so the
				// dispatcher can fall back.
				e.buf.cursor = start
				if ferr := e.buf.finish(start); ferr != nil {
					return 0, &CompileError{PC: pc, Err: ferr}
				}
				return 0, &CompileError{PC: pc, Err: err}
			}
			// Close the block before the undecodable instruction; the
			// dispatcher deals with it when execution gets there.
			break
		}
		t.translate(in)
		count++
	}

	if t.open {
		t.ra.flush()
		t.emitChain(t.pc)
	}

	if err := t.a.failed(); err != nil {
		e.buf.cursor = start
		if ferr := e.buf.finish(start); ferr != nil {
			return 0, &CompileError{PC: pc, Err: ferr}
		}
		return 0, &CompileError{PC: pc, Err: err}
	}

	e.cache.insert(pc, start)
	lo := e.applyFixups(pc, start)
	if err := e.buf.finish(lo); err != nil {
		return 0, &CompileError{PC: pc, Err: err}
	}

	e.stats.BlocksCompiled++
	e.log.Debug("compiled block",
		"pc", fmt.Sprintf("%#x", pc),
		"offset", start,
		"insns", count,
		"bytes", e.buf.cursor-start)
	return start, nil
}

// applyFixups patches every pending exit stub for target into a direct
// branch to off and returns the lowest touched offset for the icache
// flush.
func (e *Engine) applyFixups(target uint64, off int) int {
	lo := off
	for f := e.cache.takeFixups(target); f != nil; f = f.next {
		w, err := arm64.B(int64(off - f.patchOff))
		if err != nil {
			panic(fmt.Sprintf("jit: fixup at %#x out of branch reach of %#x: %v", f.patchOff, off, err))
		}
		e.buf.patch32(f.patchOff, w)
		e.stats.FixupsApplied++
		if f.patchOff < lo {
			lo = f.patchOff
		}
	}
	return lo
}

// ResetCache drops all translated code and pending fixups. Required
// after guest code is modified (FENCE.I).
func (e *Engine) ResetCache() error {
	if err := e.buf.reset(); err != nil {
		return err
	}
	e.cache.reset()
	if err := e.emitRefillStub(); err != nil {
		return err
	}
	e.log.Debug("translation cache reset")
	return nil
}

// interpretOne executes the instruction at State.PC with the reference
// interpreter. A zero reason means execution simply advanced.
func (e *Engine) interpretOne() (ExitReason, error) {
	e.stats.Fallbacks++
	pc := e.state.PC

	in, err := e.interp.Fetch(pc)
	if err != nil {
		return e.mapInterpError(pc, err)
	}
	next, err := e.interp.Step(&e.state.X, pc, in)
	if err != nil {
		switch {
		case errors.Is(err, rv64.ErrEnvCall):
			return ExitSyscall, nil
		case errors.Is(err, rv64.ErrBreakpoint):
			return ExitBreak, nil
		}
		return e.mapInterpError(pc, err)
	}
	e.state.PC = next
	return 0, nil
}

func (e *Engine) mapInterpError(pc uint64, err error) (ExitReason, error) {
	var fault *rv64.AccessFaultError
	if errors.As(err, &fault) {
		e.state.FaultAddr = fault.Addr
		return ExitFault, &FaultError{PC: pc, Addr: fault.Addr}
	}
	return 0, err
}

// Run executes guest code from State.PC until something the caller
// must handle: a syscall with no handler, a breakpoint, a pending
// interrupt, a fault, or context cancellation.
func (e *Engine) Run(ctx context.Context) (ExitReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if e.state.InterruptPending() {
			return ExitInterrupt, nil
		}

		var reason ExitReason
		off, err := e.CompileOrFetch(e.state.PC)
		if err != nil {
			var cerr *CompileError
			if !errors.As(err, &cerr) {
				return 0, err
			}
			// Let the interpreter take a swing at the instruction the
			// translator rejected.
			reason, err = e.interpretOne()
			if err != nil {
				return reason, err
			}
		} else {
			reason, err = e.enter(off)
			if err != nil {
				return reason, err
			}
			e.stats.BlockRuns++
		}

		switch reason {
		case 0, ExitBranch, ExitIndirect:
			// Keep dispatching.

		case ExitSyscall:
			h := e.cfg.SyscallHandler
			if h == nil {
				return ExitSyscall, nil
			}
			if err := h(e.state, e.mem); err != nil {
				return ExitSyscall, err
			}
			e.state.PC += 4

		case ExitBreak:
			return ExitBreak, nil

		case ExitCSR, ExitAtomic:
			if r, err := e.interpretOne(); err != nil {
				return r, err
			} else if r != 0 {
				return r, nil
			}

		case ExitIFence:
			if err := e.ResetCache(); err != nil {
				return ExitIFence, err
			}
			e.state.PC += 4

		case ExitInterrupt:
			return ExitInterrupt, nil

		case ExitFault:
			return ExitFault, &FaultError{PC: e.state.PC, Addr: e.state.FaultAddr}

		default:
			return reason, fmt.Errorf("unexpected exit reason %v", reason)
		}
	}
}
