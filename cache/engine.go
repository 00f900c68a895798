package cache

import (
	"fmt"
	"time"

	"github.com/cachelot/cachelot-sub000/internal/arena"
	"github.com/cachelot/cachelot-sub000/internal/dict"
)

const defaultInitialDictSize = 1 << 16

// Engine is the single-threaded cache: item storage in an Arena, looked up
// through a Dict keyed by hash/key. Nothing here is safe for concurrent
// use - serializing access (one goroutine, or an external lock) is the
// caller's job, per spec.md §5.
type Engine struct {
	arena            *arena.Arena
	dict             *dict.Dict
	evictionsEnabled bool
	newestTimestamp  uint64
	stats            Stats
}

// New builds an Engine with the given memory budget, split into pages of
// pageSize bytes, with a dict whose initial table capacity is
// initialDictSize rounded up to a power of two.
// Validation mirrors the original's Cache::Create preconditions.
func New(memoryLimit, pageSize uint32, initialDictSize int, enableEvictions bool) (*Engine, error) {
	if !isPow2(memoryLimit) {
		return nil, fmt.Errorf("%w: memory_limit must be a power of two", ErrInvalidArgument)
	}
	if memoryLimit < pageSize*4 {
		return nil, fmt.Errorf("%w: memory_limit must fit at least 4 pages", ErrInvalidArgument)
	}
	if !isPow2(pageSize) {
		return nil, fmt.Errorf("%w: mem_page_size must be a power of two", ErrInvalidArgument)
	}
	if memoryLimit%pageSize != 0 {
		return nil, fmt.Errorf("%w: memory_limit must divide evenly by mem_page_size", ErrInvalidArgument)
	}
	if initialDictSize <= 0 {
		initialDictSize = defaultInitialDictSize
	}

	a, err := arena.New(memoryLimit, pageSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		arena:            a,
		dict:             dict.New(initialDictSize),
		evictionsEnabled: enableEvictions,
	}, nil
}

func isPow2(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// Stats returns a snapshot of the engine's command counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.CurrItems = uint64(e.dict.Len())
	return s
}

// ArenaStats returns the underlying allocator's counters.
func (e *Engine) ArenaStats() arena.Stats { return e.arena.Stats() }

// retrieveItem looks a key up and, if its TTL has elapsed, removes it
// immediately and reports a miss instead - matching retrieve_item's
// "expired items are invisible and get reclaimed on next touch" behavior.
func (e *Engine) retrieveItem(key []byte, hash uint64) (Item, bool) {
	off, found := e.dict.Get(string(key), hash)
	if !found {
		return Item{}, false
	}
	it := Bind(e.arena, off)
	if it.IsExpired() {
		e.dict.Del(string(key), hash)
		e.destroyItem(it)
		e.stats.Expired++
		return Item{}, false
	}
	e.arena.Touch(off)
	return it, true
}

// createItem allocates and initializes a fresh item. evict controls
// whether AllocOrEvict may reclaim other items' memory to make room - the
// extend operations (append/prepend) pass false so they can never free
// the very item they are about to read from.
func (e *Engine) createItem(key []byte, valueLen int, flags uint16, ttl time.Duration, evict bool) (Item, error) {
	if len(key) > MaxKeyLength {
		return Item{}, ErrKeyTooLong
	}
	size := CalcSizeRequired(len(key), valueLen)
	if size > e.arena.AllocationLimit() {
		return Item{}, ErrItemTooBig
	}
	off, ok := e.arena.AllocOrEvict(size, evict, e.onEvict)
	if !ok {
		return Item{}, ErrOutOfMemory
	}
	e.newestTimestamp++
	mem := e.arena.UserMemory(off)
	return Init(mem, off, key, uint32(valueLen), flags, ttl, e.newestTimestamp), nil
}

// onEvict is called by the allocator just before reclaiming a still-live
// block's memory: the dict entry must be dropped first so nothing can
// look it up again.
func (e *Engine) onEvict(off uint32) {
	it := Bind(e.arena, off)
	e.dict.Del(string(it.Key()), HashKey(it.Key()))
	e.stats.Evictions++
}

func (e *Engine) destroyItem(it Item) {
	e.arena.Free(it.Off)
}

func (e *Engine) insertItemAt(key []byte, hash uint64, it Item) {
	e.dict.Put(string(key), hash, it.Off)
}

// replaceItemAt publishes next under key and releases old's memory. old was
// read before next was allocated, and allocating next can itself evict
// pages to make room - including old's own page. When that happens onEvict
// has already dropped old from the dict and collapsed its page back into a
// single free block, so old.Off no longer names a live block: freeing it
// again would corrupt the free list. Re-checking the dict catches exactly
// that case, mirroring do_store's re-validation of the found item after
// allocation.
func (e *Engine) replaceItemAt(key []byte, hash uint64, old, next Item) {
	liveOff, stillLive := e.dict.Get(string(key), hash)
	e.dict.Put(string(key), hash, next.Off)
	if stillLive && liveOff == old.Off {
		e.destroyItem(old)
	}
}
