package cache

import (
	"strconv"
	"time"
)

// Get retrieves an item by key. The returned Value/Flags/CAS are only
// valid until the next engine call: a later Set/Delete/eviction can reuse
// the same arena memory, exactly as the original's ConstItemPtr warning
// states.
func (e *Engine) Get(key []byte) (value []byte, flags uint16, cas uint64, found bool) {
	e.stats.CmdGet++
	it, found := e.retrieveItem(key, HashKey(key))
	if !found {
		e.stats.GetMisses++
		return nil, 0, 0, false
	}
	e.stats.GetHits++
	return it.Value(), it.Flags(), it.Timestamp(), true
}

// Set stores value under key unconditionally, overwriting any existing
// item.
func (e *Engine) Set(key, value []byte, flags uint16, ttl time.Duration) error {
	e.stats.CmdSet++
	hash := HashKey(key)
	old, found := e.retrieveItem(key, hash)
	next, err := e.createItem(key, len(value), flags, ttl, e.evictionsEnabled)
	if err != nil {
		return err
	}
	next.AssignValue(value)
	if found {
		e.stats.SetExisting++
		e.replaceItemAt(key, hash, old, next)
	} else {
		e.stats.SetNew++
		e.insertItemAt(key, hash, next)
	}
	return nil
}

// Add stores value under key only if key does not already exist.
func (e *Engine) Add(key, value []byte, flags uint16, ttl time.Duration) (stored bool, err error) {
	e.stats.CmdAdd++
	hash := HashKey(key)
	if _, found := e.retrieveItem(key, hash); found {
		e.stats.AddNotStored++
		return false, nil
	}
	next, err := e.createItem(key, len(value), flags, ttl, e.evictionsEnabled)
	if err != nil {
		return false, err
	}
	next.AssignValue(value)
	e.insertItemAt(key, hash, next)
	e.stats.AddStored++
	return true, nil
}

// Replace stores value under key only if key already exists.
func (e *Engine) Replace(key, value []byte, flags uint16, ttl time.Duration) (stored bool, err error) {
	e.stats.CmdReplace++
	hash := HashKey(key)
	old, found := e.retrieveItem(key, hash)
	if !found {
		e.stats.ReplaceNotStored++
		return false, nil
	}
	next, err := e.createItem(key, len(value), flags, ttl, e.evictionsEnabled)
	if err != nil {
		return false, err
	}
	next.AssignValue(value)
	e.replaceItemAt(key, hash, old, next)
	e.stats.ReplaceStored++
	return true, nil
}

// Cas stores value under key only if the stored item's CAS timestamp
// equals casUnique. found reports whether the key existed at all; stored
// reports whether the write happened.
func (e *Engine) Cas(key, value []byte, flags uint16, ttl time.Duration, casUnique uint64) (found, stored bool, err error) {
	e.stats.CmdCas++
	hash := HashKey(key)
	old, found := e.retrieveItem(key, hash)
	if !found {
		e.stats.CasMisses++
		return false, false, nil
	}
	if old.Timestamp() != casUnique {
		e.stats.CasBadval++
		return true, false, nil
	}
	next, err := e.createItem(key, len(value), flags, ttl, e.evictionsEnabled)
	if err != nil {
		return true, false, err
	}
	next.AssignValue(value)
	e.replaceItemAt(key, hash, old, next)
	e.stats.CasStored++
	return true, true, nil
}

// Append appends piece to the existing value stored under key.
func (e *Engine) Append(key, piece []byte) (stored bool, err error) {
	return e.extend(key, piece, true)
}

// Prepend prepends piece to the existing value stored under key.
func (e *Engine) Prepend(key, piece []byte) (stored bool, err error) {
	return e.extend(key, piece, false)
}

// extend implements Append/Prepend. It never lets the allocator evict,
// because an eviction could free the very item being read from (old) or
// the caller's source bytes (piece) before the concatenation finishes.
func (e *Engine) extend(key, piece []byte, isAppend bool) (bool, error) {
	if isAppend {
		e.stats.CmdAppend++
	} else {
		e.stats.CmdPrepend++
	}
	hash := HashKey(key)
	old, found := e.retrieveItem(key, hash)
	if !found {
		if isAppend {
			e.stats.AppendMisses++
		} else {
			e.stats.PrependMisses++
		}
		return false, nil
	}
	oldValue := old.Value()
	newLen := len(oldValue) + len(piece)
	next, err := e.createItem(key, newLen, old.Flags(), old.TTL(), false)
	if err != nil {
		return false, err
	}
	if isAppend {
		next.AssignCompose(oldValue, piece)
		e.stats.AppendStored++
	} else {
		next.AssignCompose(piece, oldValue)
		e.stats.PrependStored++
	}
	e.replaceItemAt(key, hash, old, next)
	return true, nil
}

// Delete removes an existing item.
func (e *Engine) Delete(key []byte) bool {
	e.stats.CmdDelete++
	hash := HashKey(key)
	it, found := e.retrieveItem(key, hash)
	if !found {
		e.stats.DeleteMisses++
		return false
	}
	e.dict.Del(string(key), hash)
	e.destroyItem(it)
	e.stats.DeleteHits++
	return true
}

// Touch validates an item and resets its TTL without altering its value.
func (e *Engine) Touch(key []byte, ttl time.Duration) bool {
	e.stats.CmdTouch++
	hash := HashKey(key)
	it, found := e.retrieveItem(key, hash)
	if !found {
		e.stats.TouchMisses++
		return false
	}
	it.SetTTL(ttl)
	e.stats.TouchHits++
	return true
}

// FlushAll purges every item whose TTL has already elapsed. It does not
// wipe live items outright and accepts no deferred-flush delay, per
// spec.md §4.5 / the Open Question resolution recorded in SPEC_FULL.md §5.
func (e *Engine) FlushAll() {
	e.stats.CmdFlush++
	e.dict.RemoveIf(func(off uint32) bool {
		it := Bind(e.arena, off)
		if !it.IsExpired() {
			return false
		}
		e.destroyItem(it)
		return true
	})
}

// Incr adds delta to the integer stored under key, saturating at
// math.MaxUint64 on overflow instead of wrapping.
func (e *Engine) Incr(key []byte, delta uint64) (newValue uint64, found bool, err error) {
	return e.arithmetic(key, delta, true)
}

// Decr subtracts delta from the integer stored under key, floored at zero
// instead of wrapping on underflow.
func (e *Engine) Decr(key []byte, delta uint64) (newValue uint64, found bool, err error) {
	return e.arithmetic(key, delta, false)
}

func (e *Engine) arithmetic(key []byte, delta uint64, incr bool) (uint64, bool, error) {
	if incr {
		e.stats.CmdIncr++
	} else {
		e.stats.CmdDecr++
	}
	hash := HashKey(key)
	old, found := e.retrieveItem(key, hash)
	if !found {
		if incr {
			e.stats.IncrMisses++
		} else {
			e.stats.DecrMisses++
		}
		return 0, false, nil
	}
	oldInt, parseErr := strconv.ParseUint(string(old.Value()), 10, 64)
	if parseErr != nil {
		return 0, true, ErrInvalidArgument
	}
	var newInt uint64
	if incr {
		const max = ^uint64(0)
		if max-oldInt >= delta {
			newInt = oldInt + delta
		} else {
			newInt = max
		}
		e.stats.IncrHits++
	} else {
		if oldInt >= delta {
			newInt = oldInt - delta
		} else {
			newInt = 0
		}
		e.stats.DecrHits++
	}
	newAscii := strconv.FormatUint(newInt, 10)
	next, err := e.createItem(key, len(newAscii), old.Flags(), old.TTL(), e.evictionsEnabled)
	if err != nil {
		return 0, true, err
	}
	next.AssignValue([]byte(newAscii))
	e.replaceItemAt(key, hash, old, next)
	return newInt, true, nil
}
