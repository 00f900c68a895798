package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatsReflectsSetAndGet(t *testing.T) {
	e, err := New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Set([]byte("k"), []byte("v"), 0, 0)
	e.Get([]byte("k"))
	e.Get([]byte("missing"))

	want := Stats{
		CmdSet:    1,
		SetNew:    1,
		CmdGet:    2,
		GetHits:   1,
		GetMisses: 1,
		CurrItems: 1,
	}
	if diff := cmp.Diff(want, e.Stats()); diff != "" {
		t.Fatalf("Stats() mismatch (-want +got):\n%s", diff)
	}
}
