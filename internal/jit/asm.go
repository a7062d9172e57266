package jit

// blockAsm collects the host words for one block. Encoder errors stick
// to the assembler; the translator checks once at the end and rolls
// the buffer back, so individual emit sites stay unconditional.
type blockAsm struct {
	buf *codeBuffer
	err error
}

// brk #0, used as the placeholder for reserved words so an unpatched
// hole traps instead of executing garbage.
const holeWord = 0xD4200000

func (a *blockAsm) op(w uint32, err error) int {
	if a.err == nil && err != nil {
		a.err = err
	}
	if a.err != nil {
		return -1
	}
	return a.buf.emit32(w)
}

// raw emits a pre-encoded word.
func (a *blockAsm) raw(w uint32) int {
	return a.op(w, nil)
}

// here returns the offset the next word will land at.
func (a *blockAsm) here() int {
	return a.buf.cursor
}

// reserve emits a placeholder for a branch whose displacement is not
// known yet.
func (a *blockAsm) reserve() int {
	return a.op(holeWord, nil)
}

// patch rewrites a reserved word.
func (a *blockAsm) patch(off int, w uint32, err error) {
	if a.err == nil && err != nil {
		a.err = err
	}
	if a.err != nil || off < 0 {
		return
	}
	a.buf.patch32(off, w)
}

func (a *blockAsm) failed() error {
	return a.err
}
