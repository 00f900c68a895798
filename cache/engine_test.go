package cache

import (
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestSetGet(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Set([]byte("foo"), []byte("bar"), 42, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, flags, _, found := e.Get([]byte("foo"))
	if !found {
		t.Fatalf("expected hit")
	}
	if string(value) != "bar" || flags != 42 {
		t.Fatalf("Get() = (%q, %d), want (bar, 42)", value, flags)
	}
}

func TestGetMiss(t *testing.T) {
	e := newTestEngine(t)
	if _, _, _, found := e.Get([]byte("missing")); found {
		t.Fatalf("expected miss")
	}
	if e.Stats().GetMisses != 1 {
		t.Fatalf("expected GetMisses=1")
	}
}

func TestAddOnlyWhenAbsent(t *testing.T) {
	e := newTestEngine(t)
	stored, err := e.Add([]byte("k"), []byte("v1"), 0, 0)
	if err != nil || !stored {
		t.Fatalf("first Add should succeed: stored=%v err=%v", stored, err)
	}
	stored, err = e.Add([]byte("k"), []byte("v2"), 0, 0)
	if err != nil || stored {
		t.Fatalf("second Add should not store: stored=%v err=%v", stored, err)
	}
	value, _, _, _ := e.Get([]byte("k"))
	if string(value) != "v1" {
		t.Fatalf("Add should not have overwritten existing value, got %q", value)
	}
}

func TestReplaceOnlyWhenPresent(t *testing.T) {
	e := newTestEngine(t)
	stored, err := e.Replace([]byte("k"), []byte("v"), 0, 0)
	if err != nil || stored {
		t.Fatalf("Replace on missing key should not store")
	}
	e.Set([]byte("k"), []byte("v1"), 0, 0)
	stored, err = e.Replace([]byte("k"), []byte("v2"), 0, 0)
	if err != nil || !stored {
		t.Fatalf("Replace on existing key should store")
	}
	value, _, _, _ := e.Get([]byte("k"))
	if string(value) != "v2" {
		t.Fatalf("got %q, want v2", value)
	}
}

func TestCasSemantics(t *testing.T) {
	e := newTestEngine(t)
	if found, stored, _ := e.Cas([]byte("k"), []byte("v"), 0, 0, 1); found || stored {
		t.Fatalf("Cas on missing key should report not-found")
	}
	e.Set([]byte("k"), []byte("v1"), 0, 0)
	_, _, cas, _ := e.Get([]byte("k"))

	found, stored, _ := e.Cas([]byte("k"), []byte("v2"), 0, 0, cas+1)
	if !found || stored {
		t.Fatalf("Cas with stale token should find but not store")
	}
	found, stored, _ = e.Cas([]byte("k"), []byte("v2"), 0, 0, cas)
	if !found || !stored {
		t.Fatalf("Cas with matching token should store")
	}
	value, _, _, _ := e.Get([]byte("k"))
	if string(value) != "v2" {
		t.Fatalf("got %q, want v2", value)
	}
}

func TestAppendPrepend(t *testing.T) {
	e := newTestEngine(t)
	e.Set([]byte("k"), []byte("mid"), 0, 0)
	if stored, err := e.Append([]byte("k"), []byte("-end")); err != nil || !stored {
		t.Fatalf("Append failed: stored=%v err=%v", stored, err)
	}
	if stored, err := e.Prepend([]byte("k"), []byte("start-")); err != nil || !stored {
		t.Fatalf("Prepend failed: stored=%v err=%v", stored, err)
	}
	value, _, _, _ := e.Get([]byte("k"))
	if string(value) != "start-mid-end" {
		t.Fatalf("got %q, want start-mid-end", value)
	}
}

func TestAppendMissingKey(t *testing.T) {
	e := newTestEngine(t)
	stored, err := e.Append([]byte("nope"), []byte("x"))
	if err != nil || stored {
		t.Fatalf("Append on missing key should report not-stored")
	}
}

func TestDelete(t *testing.T) {
	e := newTestEngine(t)
	if e.Delete([]byte("k")) {
		t.Fatalf("Delete on missing key should report false")
	}
	e.Set([]byte("k"), []byte("v"), 0, 0)
	if !e.Delete([]byte("k")) {
		t.Fatalf("Delete on existing key should report true")
	}
	if _, _, _, found := e.Get([]byte("k")); found {
		t.Fatalf("expected key gone after Delete")
	}
}

func TestTouchUpdatesTTL(t *testing.T) {
	e := newTestEngine(t)
	if e.Touch([]byte("k"), time.Hour) {
		t.Fatalf("Touch on missing key should report false")
	}
	e.Set([]byte("k"), []byte("v"), 0, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, _, _, found := e.Get([]byte("k")); found {
		t.Fatalf("expected item expired before touch")
	}

	e.Set([]byte("t"), []byte("v"), 0, 0)
	if !e.Touch([]byte("t"), time.Millisecond) {
		t.Fatalf("Touch on existing key should report true")
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, _, found := e.Get([]byte("t")); found {
		t.Fatalf("expected item expired after Touch shortened its TTL")
	}
}

func TestIncrDecrSaturate(t *testing.T) {
	e := newTestEngine(t)
	e.Set([]byte("counter"), []byte("10"), 0, 0)

	newValue, found, err := e.Incr([]byte("counter"), 5)
	if err != nil || !found || newValue != 15 {
		t.Fatalf("Incr() = (%d, %v, %v), want (15, true, nil)", newValue, found, err)
	}
	newValue, found, err = e.Decr([]byte("counter"), 100)
	if err != nil || !found || newValue != 0 {
		t.Fatalf("Decr() = (%d, %v, %v), want (0, true, nil) on underflow floor", newValue, found, err)
	}

	e.Set([]byte("big"), []byte("18446744073709551615"), 0, 0) // max uint64
	newValue, found, err = e.Incr([]byte("big"), 100)
	if err != nil || !found || newValue != ^uint64(0) {
		t.Fatalf("Incr() should saturate at max uint64, got %d", newValue)
	}
}

func TestIncrMissingKey(t *testing.T) {
	e := newTestEngine(t)
	if _, found, _ := e.Incr([]byte("nope"), 1); found {
		t.Fatalf("Incr on missing key should report not-found")
	}
}

func TestFlushAllOnlyRemovesExpired(t *testing.T) {
	e := newTestEngine(t)
	e.Set([]byte("live"), []byte("v"), 0, 0)
	e.Set([]byte("dead"), []byte("v"), 0, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	e.FlushAll()

	if _, _, _, found := e.Get([]byte("live")); !found {
		t.Fatalf("FlushAll should not remove live items")
	}
}

func TestKeyTooLong(t *testing.T) {
	e := newTestEngine(t)
	longKey := make([]byte, MaxKeyLength+1)
	if err := e.Set(longKey, []byte("v"), 0, 0); err != ErrKeyTooLong {
		t.Fatalf("expected ErrKeyTooLong, got %v", err)
	}
}

func TestItemTooBig(t *testing.T) {
	e := newTestEngine(t)
	tooBig := make([]byte, 1<<20)
	if err := e.Set([]byte("k"), tooBig, 0, 0); err != ErrItemTooBig {
		t.Fatalf("expected ErrItemTooBig, got %v", err)
	}
}

func TestEvictionReclaimsMemoryUnderPressure(t *testing.T) {
	e, err := New(1<<16, 1<<12, 16, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	value := make([]byte, 512)
	for i := 0; i < 200; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		if err := e.Set(key, value, 0, 0); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
	}
	if e.ArenaStats().Evictions == 0 {
		t.Fatalf("expected at least one eviction under memory pressure")
	}
}

func TestSetWithoutEvictionsFailsWhenFull(t *testing.T) {
	e, err := New(1<<16, 1<<12, 16, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	value := make([]byte, 512)
	var lastErr error
	for i := 0; i < 200; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		lastErr = e.Set(key, value, 0, 0)
		if lastErr != nil {
			break
		}
	}
	if lastErr != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory once arena fills without evictions, got %v", lastErr)
	}
}
