package arena

// pageInfo tracks per-page recency and observability counters. Pages are
// linked in a doubly-linked LRU list, exactly as the teacher's item-level
// lru.go links nodes - only the granularity differs: here a link covers a
// whole page of items rather than a single item, so LRU bookkeeping cost
// is amortized across every item on the page.
type pageInfo struct {
	hits, evictions uint64
	prev, next      uint32 // index into pageLRU.pages, including the two fake sentinels
}

// pageLRU is a doubly-linked recency list over a fixed number of pages,
// ordered oldest (fakeHead side) to newest (fakeTail side) - the same
// fakeHead/fakeTail sentinel convention the teacher's cache/lru.go uses to
// avoid nil checks on link/unlink. Newly touched pages move toward
// fakeTail; pageToReuse always takes the page next to fakeHead.
type pageLRU struct {
	pages    []pageInfo
	fakeHead uint32
	fakeTail uint32
}

func newPageLRU(numPages uint32) *pageLRU {
	l := &pageLRU{
		pages:    make([]pageInfo, numPages+2),
		fakeHead: numPages,
		fakeTail: numPages + 1,
	}
	l.link(l.fakeHead, l.fakeTail)
	for i := uint32(0); i < numPages; i++ {
		l.linkBefore(l.fakeTail, i)
	}
	return l
}

func (l *pageLRU) link(a, b uint32) {
	l.pages[a].next = b
	l.pages[b].prev = a
}

// linkBefore inserts page `n` immediately before `at` in the list.
func (l *pageLRU) linkBefore(at, n uint32) {
	prev := l.pages[at].prev
	l.link(prev, n)
	l.link(n, at)
}

func (l *pageLRU) detach(n uint32) {
	l.link(l.pages[n].prev, l.pages[n].next)
}

// touch moves page n one step toward the most-recently-used (fakeTail)
// end - a cheap "bubble up" rather than a full promote-to-front, stable
// under bursty access and sufficient since pageToReuse always takes the
// opposite, least-recently-used end.
func (l *pageLRU) touch(n uint32) {
	l.pages[n].hits++
	next := l.pages[n].next
	if next == l.fakeTail {
		return
	}
	prev := l.pages[n].prev
	nextNext := l.pages[next].next
	l.link(prev, next)
	l.link(next, n)
	l.link(n, nextNext)
}

// pageToReuse returns the least-recently-used page index and promotes it
// to the most-recently-used position, so a page is never immediately
// recycled again right after being refilled.
func (l *pageLRU) pageToReuse() uint32 {
	victim := l.pages[l.fakeHead].next
	l.pages[victim].evictions++
	l.detach(victim)
	l.linkBefore(l.fakeTail, victim)
	return victim
}
