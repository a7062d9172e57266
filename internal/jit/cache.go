package jit

import "fmt"

// fixup records one exit-stub branch waiting for its target block.
// Fixups for the same target form a singly linked list.
type fixup struct {
	patchOff int // byte offset of the word to rewrite into a direct B
	next     *fixup
}

// blockCache maps guest block start addresses to code buffer offsets
// and tracks the pending branch fixups per uncompiled target. The map
// is append-only between resets; capacity overflow is a configuration
// bug and panics.
type blockCache struct {
	blocks    map[uint64]int
	pending   map[uint64]*fixup
	maxBlocks int
}

func newBlockCache(maxBlocks int) *blockCache {
	return &blockCache{
		blocks:    make(map[uint64]int),
		pending:   make(map[uint64]*fixup),
		maxBlocks: maxBlocks,
	}
}

func (c *blockCache) lookup(pc uint64) (int, bool) {
	off, ok := c.blocks[pc]
	return off, ok
}

func (c *blockCache) insert(pc uint64, off int) {
	if len(c.blocks) >= c.maxBlocks {
		panic(fmt.Sprintf("jit: block cache full (%d blocks) inserting pc=%#x", len(c.blocks), pc))
	}
	c.blocks[pc] = off
}

// recordFixup remembers that the word at patchOff wants to become a
// direct branch to the block for target.
func (c *blockCache) recordFixup(target uint64, patchOff int) {
	c.pending[target] = &fixup{patchOff: patchOff, next: c.pending[target]}
}

// takeFixups removes and returns the pending list for target.
func (c *blockCache) takeFixups(target uint64) *fixup {
	f := c.pending[target]
	delete(c.pending, target)
	return f
}

// pendingCount returns the number of unresolved fixups across all
// targets.
func (c *blockCache) pendingCount() int {
	n := 0
	for _, f := range c.pending {
		for ; f != nil; f = f.next {
			n++
		}
	}
	return n
}

func (c *blockCache) size() int { return len(c.blocks) }

func (c *blockCache) reset() {
	c.blocks = make(map[uint64]int)
	c.pending = make(map[uint64]*fixup)
}
