package rvjit

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// A guest that writes a byte into RAM, reports it through a syscall
// and exits.
func TestHelloGuest(t *testing.T) {
	code := []uint32{
		0x00000517, // auipc a0, 0
		0x10050513, // addi a0, a0, 256
		0x04800593, // li a1, 'H'
		0x00b50023, // sb a1, 0(a0)
		0x00054503, // lbu a0, 0(a0)
		0x05d00893, // li a7, 93
		0x00000073, // ecall
		0x0000006f, // j .
	}
	buf := make([]byte, len(code)*4)
	for i, w := range code {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}

	var exitArg uint64
	e, err := New(Config{
		MemorySize: 1 << 20,
		SyscallHandler: func(s *State, _ *Memory) error {
			if s.ReadReg(17) != 93 {
				t.Errorf("a7 = %d, want 93", s.ReadReg(17))
			}
			exitArg = s.ReadReg(10)
			return ErrHalt
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.LoadImage(buf, RAMBase); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reason, err := e.Run(ctx)
	if !errors.Is(err, ErrHalt) {
		t.Fatalf("Run: reason %v, err %v, want ErrHalt", reason, err)
	}
	if exitArg != 'H' {
		t.Errorf("exit argument = %d, want %d", exitArg, 'H')
	}
}
