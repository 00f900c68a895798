// Package cache implements the in-process key/value engine: item storage
// on top of an arena allocator, a hash index for lookup, and the
// memcached-flavored command semantics (get/set/add/replace/cas/append/
// prepend/delete/touch/incr/decr/flush_all) layered over both.
package cache

import (
	"encoding/binary"
	"time"

	"github.com/cachelot/cachelot-sub000/internal/arena"
)

// MaxKeyLength is the longest key the cache will accept, matching the
// memcached protocol's historical limit.
const MaxKeyLength = 250

// item record layout, written inline into the arena block's user memory:
//
//	[0:8)   timestamp   uint64  monotonically increasing, used for CAS
//	[8:16)  expireUnix  int64   unix seconds, 0 means "never expires"
//	[16:20) valueLen    uint32
//	[20:22) flags       uint16
//	[22:23) keyLen      uint8
//	[23:24) reserved
//	[24:24+keyLen)                key bytes
//	[24+keyLen : 24+keyLen+valueLen) value bytes
const (
	itemHeaderSize = 24

	tsOff       = 0
	expireOff   = 8
	valueLenOff = 16
	flagsOff    = 20
	keyLenOff   = 22
)

// CalcSizeRequired returns the total arena bytes an item with a key of
// keyLen bytes and a value of valueLen bytes would occupy, header
// included.
func CalcSizeRequired(keyLen, valueLen int) uint32 {
	return itemHeaderSize + uint32(keyLen) + uint32(valueLen)
}

// Item is a handle to a record living inside an arena. It carries no data
// of its own - every accessor reads or writes through to the arena's
// backing buffer at Off, the same way internal/arena's block type is a
// thin accessor rather than a value type.
type Item struct {
	mem []byte // arena.UserMemory(Off), cached at construction time
	Off uint32
}

func newItem(mem []byte, off uint32) Item {
	return Item{mem: mem, Off: off}
}

// Init writes a fresh item header plus key into mem (which must be at
// least CalcSizeRequired(key, valueLen) bytes, typically the arena's
// UserMemory(off)). The value region is left uninitialized for the caller
// to fill via AssignValue/AssignCompose.
func Init(mem []byte, off uint32, key []byte, valueLen uint32, flags uint16, ttl time.Duration, timestamp uint64) Item {
	it := newItem(mem, off)
	binary.LittleEndian.PutUint64(mem[tsOff:], timestamp)
	it.SetTTL(ttl)
	binary.LittleEndian.PutUint32(mem[valueLenOff:], valueLen)
	binary.LittleEndian.PutUint16(mem[flagsOff:], flags)
	mem[keyLenOff] = uint8(len(key))
	copy(mem[itemHeaderSize:], key)
	return it
}

func (it Item) keyLen() int { return int(it.mem[keyLenOff]) }

func (it Item) valueLen() uint32 { return binary.LittleEndian.Uint32(it.mem[valueLenOff:]) }

// Key returns the item's key bytes.
func (it Item) Key() []byte {
	return it.mem[itemHeaderSize : itemHeaderSize+it.keyLen()]
}

// Value returns the item's value bytes.
func (it Item) Value() []byte {
	start := itemHeaderSize + it.keyLen()
	return it.mem[start : start+int(it.valueLen())]
}

func (it Item) Flags() uint16 { return binary.LittleEndian.Uint16(it.mem[flagsOff:]) }

func (it Item) SetFlags(f uint16) { binary.LittleEndian.PutUint16(it.mem[flagsOff:], f) }

// Timestamp is the value compared by CAS: every stored item gets the next
// tick of a monotonically increasing counter.
func (it Item) Timestamp() uint64 { return binary.LittleEndian.Uint64(it.mem[tsOff:]) }

func (it Item) expireUnix() int64 { return int64(binary.LittleEndian.Uint64(it.mem[expireOff:])) }

func (it Item) setExpireUnix(sec int64) {
	binary.LittleEndian.PutUint64(it.mem[expireOff:], uint64(sec))
}

// SetTTL sets the item's expiration ttl from now. A zero ttl means "never
// expires"; a negative ttl leaves the item already expired.
func (it Item) SetTTL(ttl time.Duration) {
	if ttl == 0 {
		it.setExpireUnix(0)
		return
	}
	it.setExpireUnix(time.Now().Add(ttl).Unix())
}

// TTL returns the remaining time to live, or 0 if the item never expires.
func (it Item) TTL() time.Duration {
	exp := it.expireUnix()
	if exp == 0 {
		return 0
	}
	remaining := time.Unix(exp, 0).Sub(time.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether the item's TTL has elapsed.
func (it Item) IsExpired() bool {
	exp := it.expireUnix()
	return exp != 0 && exp <= time.Now().Unix()
}

// AssignValue overwrites the item's value in place. newValue must not be
// longer than the value region the item was allocated with.
func (it Item) AssignValue(newValue []byte) {
	start := itemHeaderSize + it.keyLen()
	copy(it.mem[start:], newValue)
	binary.LittleEndian.PutUint32(it.mem[valueLenOff:], uint32(len(newValue)))
}

// AssignCompose overwrites the item's value with the concatenation of left
// and right, used by append/prepend to build the combined value directly
// into the new item's backing memory without an intermediate buffer.
func (it Item) AssignCompose(left, right []byte) {
	start := itemHeaderSize + it.keyLen()
	n := copy(it.mem[start:], left)
	n += copy(it.mem[start+n:], right)
	binary.LittleEndian.PutUint32(it.mem[valueLenOff:], uint32(n))
}

// Bind reconstructs an Item handle for a block already allocated at off -
// used when a dict lookup returns an offset and the engine needs the full
// accessor back.
func Bind(a *arena.Arena, off uint32) Item {
	return newItem(a.UserMemory(off), off)
}
