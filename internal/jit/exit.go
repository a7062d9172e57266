package jit

import "fmt"

// ExitReason is the value a compiled block hands back to the
// dispatcher in X0 when it returns through the trampoline.
type ExitReason uint32

const (
	// ExitBranch is a direct branch to a target with no compiled block
	// yet. State.PC holds the target; once the target is compiled the
	// exit site is patched into a direct branch and never taken again.
	ExitBranch ExitReason = iota + 1

	// ExitIndirect is a register-indirect jump (JALR). State.PC holds
	// the computed target.
	ExitIndirect

	// ExitSyscall is an ECALL. State.PC holds the ECALL's own address.
	ExitSyscall

	// ExitBreak is an EBREAK. State.PC holds the EBREAK's own address.
	ExitBreak

	// ExitCSR is a CSR access, serviced by the interpreter.
	ExitCSR

	// ExitAtomic is an AMO or LR/SC, serviced by the interpreter.
	ExitAtomic

	// ExitIFence is a FENCE.I; the dispatcher drops all compiled code.
	ExitIFence

	// ExitInterrupt means the pending-interrupt flag was set at a block
	// entry. State.PC holds the block's start address.
	ExitInterrupt

	// ExitFault is an out-of-range guest memory access. State.PC holds
	// the faulting block's start address and State.FaultAddr the guest
	// address.
	ExitFault
)

func (r ExitReason) String() string {
	switch r {
	case ExitBranch:
		return "branch"
	case ExitIndirect:
		return "indirect"
	case ExitSyscall:
		return "syscall"
	case ExitBreak:
		return "break"
	case ExitCSR:
		return "csr"
	case ExitAtomic:
		return "atomic"
	case ExitIFence:
		return "ifence"
	case ExitInterrupt:
		return "interrupt"
	case ExitFault:
		return "fault"
	}
	return fmt.Sprintf("exit(%d)", uint32(r))
}
