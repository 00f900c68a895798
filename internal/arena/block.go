// Package arena implements a fixed-size slab allocator with page-aware LRU
// eviction, modeled on cachelot's memalloc: a contiguous byte arena is split
// into power-of-two pages, pages are split into variable-size blocks, and
// blocks carry just enough intrusive metadata to be split, coalesced and
// evicted in O(1).
//
// Blocks are addressed by offset into the arena rather than by pointer -
// the index-based free list called out as the strict-aliasing-safe choice
// in the source design notes.
package arena

import "encoding/binary"

// block header layout, written inline at the block's offset in the arena:
//
//	[0:4)   size                uint32  user-visible bytes available
//	[4:8)   leftAdjacentOffset  uint32  distance back to the previous block header
//	[8:9)   used                byte    1 if in use, 0 if free
//	[9:12)  reserved
//	[12:16) freePrev            uint32  offset of previous block in same size-class list
//	[16:20) freeNext            uint32  offset of next block in same size-class list
//	[20:24) reserved (padding, rounds header to scalar alignment)
const (
	headerSize = 24

	sizeOff     = 0
	leftAdjOff  = 4
	usedOff     = 8
	freePrevOff = 12
	freeNextOff = 16

	// minUserMemory is the minimum number of user-visible bytes a block
	// carries, even when the request is tiny - mirrors memalloc's 64-byte
	// floor (block::min_memory).
	minUserMemory = 64

	// splitThreshold is the minimum leftover size (including its own
	// header) required to split a block instead of handing it out whole.
	splitThreshold = headerSize + minUserMemory

	// noOffset is the sentinel "no block" value, used both for free-list
	// links and for "no left neighbor" (block is first in its page).
	noOffset = ^uint32(0)
)

// block is a thin accessor over a header at a fixed offset in an arena's
// backing buffer. It carries no state of its own.
type block struct {
	buf []byte
	off uint32
}

func blockAt(buf []byte, off uint32) block {
	return block{buf: buf, off: off}
}

func (b block) size() uint32 {
	return binary.LittleEndian.Uint32(b.buf[b.off+sizeOff:])
}

func (b block) setSize(n uint32) {
	binary.LittleEndian.PutUint32(b.buf[b.off+sizeOff:], n)
}

func (b block) sizeWithHeader() uint32 { return b.size() + headerSize }

func (b block) leftAdjacentOffset() uint32 {
	return binary.LittleEndian.Uint32(b.buf[b.off+leftAdjOff:])
}

func (b block) setLeftAdjacentOffset(off uint32) {
	binary.LittleEndian.PutUint32(b.buf[b.off+leftAdjOff:], off)
}

func (b block) used() bool { return b.buf[b.off+usedOff] != 0 }

func (b block) setUsed(used bool) {
	if used {
		b.buf[b.off+usedOff] = 1
	} else {
		b.buf[b.off+usedOff] = 0
	}
}

func (b block) freePrev() uint32 {
	return binary.LittleEndian.Uint32(b.buf[b.off+freePrevOff:])
}

func (b block) setFreePrev(off uint32) {
	binary.LittleEndian.PutUint32(b.buf[b.off+freePrevOff:], off)
}

func (b block) freeNext() uint32 {
	return binary.LittleEndian.Uint32(b.buf[b.off+freeNextOff:])
}

func (b block) setFreeNext(off uint32) {
	binary.LittleEndian.PutUint32(b.buf[b.off+freeNextOff:], off)
}

// memory returns the user-visible region of the block.
func (b block) memory() []byte {
	start := b.off + headerSize
	return b.buf[start : start+b.size() : start+b.size()]
}

// rightAdjacentOffset is the offset of the block immediately to the right
// in the arena, irrespective of page boundaries - callers must check that
// offset remains within the current page before dereferencing it.
func (b block) rightAdjacentOffset() uint32 {
	return b.off + b.sizeWithHeader()
}

// initBlock writes a fresh free-block header at off.
func initBlock(buf []byte, off, size, leftAdjacentOffset uint32) block {
	b := blockAt(buf, off)
	b.setSize(size)
	b.setLeftAdjacentOffset(leftAdjacentOffset)
	b.setUsed(false)
	b.setFreePrev(noOffset)
	b.setFreeNext(noOffset)
	return b
}

// split carves newSize bytes off blk, returning the (possibly shrunk) block
// and, if enough was left over, a second free block for the remainder. The
// leftover always takes the tail of the original block. pageEnd is the
// offset one past the last byte of blk's page: pages are never split across
// each other, so a border at the page's own end has no right neighbor to
// fix up, and touching it would read/write outside the page (or the arena,
// for the last page) - this mirrors the original's border blocks, which
// exist precisely so every in-page neighbor access stays in bounds.
func split(buf []byte, blk block, newSize, pageEnd uint32) (block, block, bool) {
	if newSize < minUserMemory {
		newSize = minUserMemory
	}
	if blk.size() < newSize || blk.size()-newSize < splitThreshold {
		return blk, block{}, false
	}
	oldSize := blk.size()
	rightOff := blk.rightAdjacentOffset() // offset of block after blk, pre-split
	blk.setSize(newSize)
	leftoverOff := blk.rightAdjacentOffset()
	leftoverSize := oldSize - newSize - headerSize
	leftover := initBlock(buf, leftoverOff, leftoverSize, newSize+headerSize)
	// fix up the block that used to sit right after the original blk, if
	// one exists within this page.
	if rightOff < pageEnd {
		blockAt(buf, rightOff).setLeftAdjacentOffset(leftover.sizeWithHeader())
	}
	return blk, leftover, true
}

// merge combines two adjacent free blocks into one, returning the result at
// left's offset. Both blocks must already be free and unlinked from any
// free list. pageEnd is the offset one past the last byte of left/right's
// page - see split for why the right neighbor's fix-up must be guarded
// against it.
func merge(buf []byte, left, right block, pageEnd uint32) block {
	afterRightOff := right.rightAdjacentOffset()
	left.setSize(left.size() + right.sizeWithHeader())
	if afterRightOff < pageEnd {
		blockAt(buf, afterRightOff).setLeftAdjacentOffset(left.sizeWithHeader())
	}
	return left
}
