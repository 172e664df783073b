package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/gosampler/rtengine"
)

type fakeReader struct {
	mu     sync.Mutex
	frames []float32 // interleaved source, one channel
}

func (r *fakeReader) ReadAt(pos int64, dst []float32, channels int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := 0; i < len(dst)/channels; i++ {
		idx := int(pos) + i
		if idx >= len(r.frames) {
			break
		}
		for c := 0; c < channels; c++ {
			dst[i*channels+c] = r.frames[idx]
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, nil
}

func newTestManager(sample *rtengine.Sample, reader *fakeReader) *Manager {
	return NewManager(4, 256, func(*rtengine.Sample) Reader { return reader }, nil)
}

func TestOrderNewStreamBecomesReadyAfterDiskPass(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 1000}
	reader := &fakeReader{frames: make([]float32, 1000)}
	m := newTestManager(sample, reader)
	go m.Run(64)
	defer m.Stop()

	ref, ok := m.OrderNewStream(sample, 0, false)
	if !ok {
		t.Fatalf("OrderNewStream failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ready := m.AskForCreatedStream(ref); ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("stream never became ready")
}

func TestOrderNewStreamFailsWhenPoolExhausted(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 100}
	reader := &fakeReader{frames: make([]float32, 100)}
	m := NewManager(1, 64, func(*rtengine.Sample) Reader { return reader }, nil)

	if _, ok := m.OrderNewStream(sample, 0, false); !ok {
		t.Fatalf("first order should succeed")
	}
	if _, ok := m.OrderNewStream(sample, 0, false); ok {
		t.Fatalf("second order should fail: pool exhausted")
	}
	if got := m.PoolExhaustedCount(); got != 1 {
		t.Fatalf("PoolExhaustedCount() = %d, want 1", got)
	}
}

func TestOpenStreamMarksEndOnNilReader(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 100}
	m := NewManager(1, 64, func(*rtengine.Sample) Reader { return nil }, nil)
	go m.Run(64)
	defer m.Stop()

	ref, ok := m.OrderNewStream(sample, 0, false)
	if !ok {
		t.Fatalf("order failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ready := m.AskForCreatedStream(ref); ready {
			if s.State() != StateEnd {
				t.Fatalf("state = %v, want StateEnd for a nil reader", s.State())
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("stream never became ready")
}

func TestReadStarvationIsCountedForControlPlane(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 1000}
	reader := &fakeReader{frames: make([]float32, 1000)}
	m := newTestManager(sample, reader)
	// No Run goroutine: the ring never gets filled, so every Read starves.

	ref, ok := m.OrderNewStream(sample, 0, false)
	if !ok {
		t.Fatalf("order failed")
	}
	m.drainOrders()

	s, ready := m.AskForCreatedStream(ref)
	if !ready {
		t.Fatalf("stream should be ready immediately after drainOrders")
	}

	dst := make([]float32, 16)
	if _, starved := s.Read(dst); !starved {
		t.Fatalf("expected starvation on an unfilled ring")
	}
	if got := m.StreamStarvedCount(); got != 1 {
		t.Fatalf("StreamStarvedCount() = %d, want 1", got)
	}
}

func TestReadDrainsProducedFrames(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 512}
	src := make([]float32, 512)
	for i := range src {
		src[i] = float32(i)
	}
	reader := &fakeReader{frames: src}
	m := newTestManager(sample, reader)
	go m.Run(64)
	defer m.Stop()

	ref, _ := m.OrderNewStream(sample, 0, false)

	var s *Stream
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ready := m.AskForCreatedStream(ref); ready {
			s = got
			break
		}
		time.Sleep(time.Millisecond)
	}
	if s == nil {
		t.Fatalf("stream never became ready")
	}

	// Give the disk goroutine a moment to actually fill the ring.
	time.Sleep(20 * time.Millisecond)

	dst := make([]float32, 32)
	n, starved := s.Read(dst)
	if n == 0 {
		t.Fatalf("Read returned 0 frames")
	}
	if starved && dst[0] == 0 && dst[1] == 0 {
		t.Fatalf("Read reported starvation with no data produced yet: %v", dst)
	}
}

func TestRefillWrapsAtLoopBoundaryWithoutSkippingOrDuplicatingFrames(t *testing.T) {
	// loop = [100, 199] inside a 1000-frame source, well shorter than the
	// chunkFrames the disk goroutine reads per pass, so a single refill
	// pass must stop at the loop end rather than reading past it.
	sample := &rtengine.Sample{
		Channels:    1,
		TotalFrames: 1000,
		Loop:        &rtengine.Loop{Start: 100, End: 200, Size: 100},
	}
	src := make([]float32, 1000)
	for i := range src {
		src[i] = float32(i)
	}
	reader := &fakeReader{frames: src}
	m := newTestManager(sample, reader)

	ref, ok := m.OrderNewStream(sample, sample.Loop.Start, true)
	if !ok {
		t.Fatalf("order failed")
	}
	m.drainOrders()
	s, ready := m.AskForCreatedStream(ref)
	if !ready {
		t.Fatalf("stream should be ready immediately after drainOrders")
	}

	// Each refill pass uses a chunkFrames (4096) far larger than the
	// 100-frame loop; run enough passes to cross the loop boundary
	// several times and drain the ring after each pass so there's always
	// free space for refill to fill. Read() always returns len(dst)/channels
	// frames (zero-padding and flagging `starved` on a shortfall) so the
	// drain must be bounded by the ring's actual UsedSpace, not by Read's
	// return value.
	var collected []float32
	for pass := 0; pass < 40; pass++ {
		m.refill(s, 4096)
		for s.ring.UsedSpace() > 0 {
			dst := make([]float32, s.ring.UsedSpace())
			n, starved := s.Read(dst)
			if starved {
				t.Fatalf("unexpected starvation while draining produced frames")
			}
			collected = append(collected, dst[:n]...)
		}
	}

	if len(collected) == 0 {
		t.Fatalf("no frames collected")
	}
	for i, v := range collected {
		want := float32(100 + (i % 100))
		if v != want {
			t.Fatalf("collected[%d] = %v, want %v (loop must wrap to Start=100 at End=200 without skipping or duplicating frames)", i, v, want)
		}
	}
}

func TestOrderDeletionReclaimsSlot(t *testing.T) {
	sample := &rtengine.Sample{Channels: 1, TotalFrames: 100}
	reader := &fakeReader{frames: make([]float32, 100)}
	m := NewManager(1, 64, func(*rtengine.Sample) Reader { return reader }, nil)
	go m.Run(64)
	defer m.Stop()

	ref, ok := m.OrderNewStream(sample, 0, false)
	if !ok {
		t.Fatalf("order failed")
	}
	m.OrderDeletion(ref)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.OrderNewStream(sample, 0, false); ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("deleted stream slot was never reclaimed")
}
