package syncrt

import (
	"sync"
	"testing"
)

func TestRingBufferBasicWriteRead(t *testing.T) {
	rb := NewRingBuffer[int](4)
	span := rb.ReserveWrite(3)
	if span.Len() != 3 {
		t.Fatalf("expected 3 writable slots, got %d", span.Len())
	}
	for i := range span.First {
		span.First[i] = i + 1
	}
	rb.CommitWrite(3)

	if got := rb.UsedSpace(); got != 3 {
		t.Fatalf("UsedSpace = %d, want 3", got)
	}
	rspan := rb.ReserveRead(3)
	got := append(append([]int{}, rspan.First...), rspan.Second...)
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	rb.CommitRead(3)
	if got := rb.UsedSpace(); got != 0 {
		t.Fatalf("UsedSpace after read = %d, want 0", got)
	}
}

func TestRingBufferWrapsAcrossBoundary(t *testing.T) {
	rb := NewRingBuffer[int](4)
	rb.CommitWrite(rb.ReserveWrite(4).Len())
	rb.CommitRead(rb.ReserveRead(4).Len())
	// Both cursors are now at 4 (index 0). Writing 2 and reading 1 leaves the
	// write cursor at index 2 with 3 slots free, so reserving 3 must wrap.
	rb.CommitWrite(rb.ReserveWrite(2).Len())
	rb.CommitRead(rb.ReserveRead(1).Len())
	span := rb.ReserveWrite(3)
	if span.Len() != 3 {
		t.Fatalf("expected 3 free slots, got %d", span.Len())
	}
	if len(span.Second) == 0 {
		t.Fatalf("expected reservation to wrap the backing array")
	}
}

func TestRingBufferFreeSpaceNeverExceedsCapacity(t *testing.T) {
	rb := NewRingBuffer[int](8)
	if rb.FreeSpace() != 8 {
		t.Fatalf("FreeSpace = %d, want 8", rb.FreeSpace())
	}
	span := rb.ReserveWrite(100)
	if span.Len() != 8 {
		t.Fatalf("reservation should be capped at capacity, got %d", span.Len())
	}
}

func TestRingBufferWriteSilence(t *testing.T) {
	rb := NewRingBuffer[float32](4)
	span := rb.ReserveWrite(2)
	span.First[0], span.First[1] = 1, 1
	rb.CommitWrite(2)
	rb.CommitRead(rb.ReserveRead(2).Len())
	n := rb.WriteSilence(4)
	if n != 4 {
		t.Fatalf("WriteSilence returned %d, want 4", n)
	}
	rspan := rb.ReserveRead(4)
	for _, v := range append(append([]float32{}, rspan.First...), rspan.Second...) {
		if v != 0 {
			t.Fatalf("expected silence, got %v", v)
		}
	}
}

// TestRingBufferSPSCInterleaving is a soak test verifying no torn or stale
// reads under real producer/consumer goroutine interleaving, per spec.md §8.
func TestRingBufferSPSCInterleaving(t *testing.T) {
	const total = 200000
	rb := NewRingBuffer[int](256)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() { // producer
		defer wg.Done()
		next := 0
		for next < total {
			span := rb.ReserveWrite(64)
			if span.Len() == 0 {
				continue
			}
			for i := range span.First {
				span.First[i] = next
				next++
			}
			for i := range span.Second {
				span.Second[i] = next
				next++
			}
			rb.CommitWrite(span.Len())
		}
	}()

	go func() { // consumer
		defer wg.Done()
		expect := 0
		for expect < total {
			span := rb.ReserveRead(64)
			if span.Len() == 0 {
				continue
			}
			for _, v := range span.First {
				if v != expect {
					t.Errorf("torn/stale read: got %d, want %d", v, expect)
					return
				}
				expect++
			}
			for _, v := range span.Second {
				if v != expect {
					t.Errorf("torn/stale read: got %d, want %d", v, expect)
					return
				}
				expect++
			}
			rb.CommitRead(span.Len())
		}
	}()

	wg.Wait()
	if used := rb.UsedSpace(); used < 0 || used > 256 {
		t.Fatalf("UsedSpace out of bounds: %d", used)
	}
}
