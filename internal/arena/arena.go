package arena

import "fmt"

// Stats mirrors the counters memalloc keeps alongside allocation: every
// field is a plain uint64 because the engine built on top of Arena runs
// single-threaded (spec.md §5) - no atomics, no locks.
type Stats struct {
	Mallocs        uint64
	Frees          uint64
	Evictions      uint64
	AllocErrors    uint64
	ExactHits      uint64 // request satisfied from its own size-class bucket
	WeakHits       uint64 // request satisfied from a larger bucket
	BytesRequested uint64
	BytesServed    uint64
}

// Arena is a fixed-capacity slab allocator. It carves a single backing
// []byte into fixed-size pages, each page into variable-size blocks, and
// exposes offsets into that []byte as the only handle to allocated memory -
// there is no pointer type, so nothing here can dangle across a Go GC move
// and nothing needs unsafe.
type Arena struct {
	buf      []byte
	pageSize uint32
	numPages uint32
	sc       *sizeClasses
	lru      *pageLRU
	stats    Stats
}

// New allocates an arena of arenaSize bytes, split into pages of pageSize
// bytes each. pageSize must be a power of two and arenaSize a multiple of
// it, mirroring memalloc's constructor preconditions.
func New(arenaSize, pageSize uint32) (*Arena, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("arena: page size must be a power of two, got %d", pageSize)
	}
	if pageSize < splitThreshold {
		return nil, fmt.Errorf("arena: page size %d too small to hold even one block", pageSize)
	}
	if arenaSize < pageSize {
		return nil, fmt.Errorf("arena: arena size %d smaller than page size %d", arenaSize, pageSize)
	}
	numPages := arenaSize / pageSize

	a := &Arena{
		buf:      make([]byte, numPages*pageSize),
		pageSize: pageSize,
		numPages: numPages,
		sc:       newSizeClasses(pageSize),
		lru:      newPageLRU(numPages),
	}
	for i := uint32(0); i < numPages; i++ {
		off := i * pageSize
		blk := initBlock(a.buf, off, pageSize-headerSize, noOffset)
		a.sc.putBlock(a.buf, blk)
	}
	return a, nil
}

func (a *Arena) PageSize() uint32 { return a.pageSize }
func (a *Arena) NumPages() uint32 { return a.numPages }

// AllocationLimit is the largest single request Alloc/AllocOrEvict can
// ever satisfy - a request for user memory plus header that does not fit
// in one page.
func (a *Arena) AllocationLimit() uint32 { return a.sc.allocationLimit }

func (a *Arena) Stats() Stats { return a.stats }

func (a *Arena) pageOf(off uint32) uint32 { return off / a.pageSize }

func (a *Arena) pageBounds(pageIdx uint32) (start, end uint32) {
	start = pageIdx * a.pageSize
	return start, start + a.pageSize
}

// Alloc hands out a block with at least size bytes of user memory, or
// reports failure if no free block is large enough. It never evicts.
func (a *Arena) Alloc(size uint32) (uint32, bool) {
	a.stats.Mallocs++
	a.stats.BytesRequested += uint64(size)
	if size > a.sc.allocationLimit {
		a.stats.AllocErrors++
		return 0, false
	}
	blk, ok, weak := a.sc.tryGetBlock(a.buf, size)
	if !ok {
		a.stats.AllocErrors++
		return 0, false
	}
	if weak {
		a.stats.WeakHits++
	} else {
		a.stats.ExactHits++
	}
	_, pageEnd := a.pageBounds(a.pageOf(blk.off))
	if fitted, leftover, didSplit := split(a.buf, blk, size, pageEnd); didSplit {
		a.sc.putBlock(a.buf, leftover)
		blk = fitted
	}
	blk.setUsed(true)
	a.stats.BytesServed += uint64(blk.size())
	a.lru.touch(a.pageOf(blk.off))
	return blk.off, true
}

// AllocOrEvict behaves like Alloc, but on failure - if evict is true - it
// reclaims whole pages in least-recently-used order until the request can
// be satisfied or every page has been tried once. onEvict is invoked once
// per live block on a reclaimed page, before that block's memory is
// reused, so the caller (the dict/cache layer) can drop its own reference
// to the evicted item first.
func (a *Arena) AllocOrEvict(size uint32, evict bool, onEvict func(off uint32)) (uint32, bool) {
	if off, ok := a.Alloc(size); ok {
		return off, ok
	}
	if !evict {
		return 0, false
	}
	for attempt := uint32(0); attempt < a.numPages; attempt++ {
		a.evictPage(a.lru.pageToReuse(), onEvict)
		if off, ok := a.Alloc(size); ok {
			return off, ok
		}
	}
	return 0, false
}

// evictPage walks every block on a page, reports live ones via onEvict,
// then collapses the whole page back into one free block. Pages are never
// coalesced across page boundaries, so this is the only way a used block
// in the middle of a page is ever reclaimed without an explicit Free.
func (a *Arena) evictPage(pageIdx uint32, onEvict func(off uint32)) {
	start, end := a.pageBounds(pageIdx)
	off := start
	for off < end {
		blk := blockAt(a.buf, off)
		next := blk.rightAdjacentOffset()
		if blk.used() {
			a.stats.Evictions++
			onEvict(off)
		} else {
			a.sc.remove(a.buf, blk)
		}
		off = next
	}
	fresh := initBlock(a.buf, start, a.pageSize-headerSize, noOffset)
	a.sc.putBlock(a.buf, fresh)
}

// Free returns a block to its page's free pool, coalescing with adjacent
// free blocks first. Coalescing never crosses a page boundary.
func (a *Arena) Free(off uint32) {
	blk := blockAt(a.buf, off)
	blk.setUsed(false)
	start, end := a.pageBounds(a.pageOf(off))

	for {
		rightOff := blk.rightAdjacentOffset()
		if rightOff >= end {
			break
		}
		right := blockAt(a.buf, rightOff)
		if right.used() {
			break
		}
		a.sc.remove(a.buf, right)
		blk = merge(a.buf, blk, right, end)
	}
	for {
		leftAdj := blk.leftAdjacentOffset()
		if leftAdj == noOffset || blk.off-leftAdj < start {
			break
		}
		left := blockAt(a.buf, blk.off-leftAdj)
		if left.used() {
			break
		}
		a.sc.remove(a.buf, left)
		blk = merge(a.buf, left, blk, end)
	}
	a.sc.putBlock(a.buf, blk)
	a.stats.Frees++
}

// Touch records that the block at off was accessed, bumping its page's
// recency without moving any memory.
func (a *Arena) Touch(off uint32) {
	a.lru.touch(a.pageOf(off))
}

// UserMemory returns the user-visible bytes of the block at off.
func (a *Arena) UserMemory(off uint32) []byte {
	return blockAt(a.buf, off).memory()
}

// BlockSize returns the number of user-visible bytes available at off,
// which may be larger than originally requested (blocks are only split
// down to splitThreshold granularity).
func (a *Arena) BlockSize(off uint32) uint32 {
	return blockAt(a.buf, off).size()
}
