//go:build arm64

package jit

// icacheInvalidate makes [addr, addr+n) visible to instruction fetch.
// Required because AArch64 instruction and data caches are not
// coherent. Implemented in icache_arm64.s.
func icacheInvalidate(addr, n uintptr)
