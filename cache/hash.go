package cache

import "github.com/cespare/xxhash/v2"

// HashKey computes the hash used for dict lookups. Hash 0 is reserved by
// internal/dict as the "empty slot" marker, so it is remapped to 1 - the
// same reasoning the original's fnv1a-based HashFunction relies on
// (debug_assert(hash != 0) at every call site).
func HashKey(key []byte) uint64 {
	h := xxhash.Sum64(key)
	if h == 0 {
		return 1
	}
	return h
}
