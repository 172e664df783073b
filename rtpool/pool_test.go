package rtpool

import "testing"

func TestPoolAllocFreeReturnsToInitialState(t *testing.T) {
	p := New[int](8)
	initial := *p

	refs := make([]Ref, 8)
	for i := range refs {
		refs[i] = p.Alloc()
		if refs[i] == Nil {
			t.Fatalf("unexpected exhaustion at %d", i)
		}
		*p.Get(refs[i]) = i
	}
	if p.Alloc() != Nil {
		t.Fatalf("expected sentinel once pool is exhausted")
	}
	// Free pushes each slot onto the free-list head, so releasing in reverse
	// allocation order rebuilds the initial 1 -> 2 -> ... -> 8 chain.
	for i := len(refs) - 1; i >= 0; i-- {
		p.Free(refs[i])
	}

	if p.Len() != 0 {
		t.Fatalf("Len = %d after freeing everything, want 0", p.Len())
	}
	if p.freeHead != initial.freeHead {
		t.Fatalf("free list head diverged: got %v want %v", p.freeHead, initial.freeHead)
	}
	if p.liveHead != Nil || p.liveTail != Nil {
		t.Fatalf("live list not empty after freeing everything")
	}
}

func TestPoolLiveIterationOrder(t *testing.T) {
	p := New[int](4)
	var refs []Ref
	for i := 0; i < 4; i++ {
		r := p.Alloc()
		*p.Get(r) = i
		refs = append(refs, r)
	}
	p.Free(refs[1]) // free a middle element

	var seen []int
	p.Each(func(_ Ref, v *int) { seen = append(seen, *v) })
	want := []int{0, 2, 3}
	if len(seen) != len(want) {
		t.Fatalf("Each visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Each visited %v, want %v", seen, want)
		}
	}
}

func TestPoolFreeIsIdempotent(t *testing.T) {
	p := New[int](2)
	r := p.Alloc()
	p.Free(r)
	p.Free(r) // must not corrupt the free list
	a := p.Alloc()
	b := p.Alloc()
	if a == Nil || b == Nil {
		t.Fatalf("pool corrupted after double-free")
	}
	if a == b {
		t.Fatalf("double-free handed out the same slot twice")
	}
}
