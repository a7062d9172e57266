//go:build !((darwin || linux) && arm64)

package jit

// Hosts that cannot execute the emitted code run the guest on the
// reference interpreter instead. Translation still works everywhere,
// which keeps the compile-only paths testable; only execution differs.
func (e *Engine) enter(off int) (ExitReason, error) {
	_ = off
	for {
		if e.state.InterruptPending() {
			return ExitInterrupt, nil
		}
		r, err := e.interpretOne()
		if r != 0 || err != nil {
			return r, err
		}
	}
}
