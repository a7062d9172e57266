//go:build darwin || linux

package jit

import "golang.org/x/sys/unix"

func mapAnon(size int) ([]byte, bool, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func unmapAnon(data []byte) error {
	return unix.Munmap(data)
}

func protectRW(data []byte) error {
	return unix.Mprotect(data, unix.PROT_READ|unix.PROT_WRITE)
}

func protectRX(data []byte) error {
	return unix.Mprotect(data, unix.PROT_READ|unix.PROT_EXEC)
}
