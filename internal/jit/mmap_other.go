//go:build !darwin && !linux

package jit

// Heap-backed fallback for platforms without mmap. Compiled code is
// never executed here (see run_other.go), so the protection toggles are
// no-ops.

func mapAnon(size int) ([]byte, bool, error) {
	return make([]byte, size), false, nil
}

func unmapAnon(data []byte) error { return nil }

func protectRW(data []byte) error { return nil }

func protectRX(data []byte) error { return nil }
