package recycle

import "testing"

func TestGetReturnsRequestedLength(t *testing.T) {
	p := NewPool()
	buf := p.Get(100)
	if len(buf) != 100 {
		t.Fatalf("len(buf) = %d, want 100", len(buf))
	}
}

func TestPutGetReuse(t *testing.T) {
	p := NewPool()
	buf := p.Get(1000)
	p.Put(buf)
	reused := p.Get(1000)
	if cap(reused) < 1000 {
		t.Fatalf("expected reused buffer to have adequate capacity")
	}
}

func TestMaxChunkSizeCoversCommandLength(t *testing.T) {
	p := NewPool()
	if p.MaxChunkSize() < 1024 {
		t.Fatalf("MaxChunkSize() = %d, too small for a typical command buffer", p.MaxChunkSize())
	}
}

func TestGetBeyondMaxChunkSizeFallsBack(t *testing.T) {
	p := NewPool()
	big := p.Get(p.MaxChunkSize() + 1)
	if len(big) != p.MaxChunkSize()+1 {
		t.Fatalf("expected exact-length fallback allocation")
	}
	p.Put(big) // must not panic
}
