package server

import (
	"sync"
	"testing"

	"github.com/cachelot/cachelot-sub000/cache"
)

func TestHandlerSerializesConcurrentDo(t *testing.T) {
	engine, err := cache.New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	h := NewHandler(engine)
	defer h.Close()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			h.Do(func(e *cache.Engine) {
				e.Set([]byte("k"), []byte("v"), 0, 0)
			})
		}(i)
	}
	wg.Wait()

	var found bool
	h.Do(func(e *cache.Engine) {
		_, _, _, found = e.Get([]byte("k"))
	})
	if !found {
		t.Fatalf("expected key to be set after concurrent Do calls")
	}
}
