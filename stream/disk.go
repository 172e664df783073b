package stream

import (
	"time"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/syncrt"
)

// idlePollInterval bounds how long the disk goroutine sleeps between passes
// that found no order and no active stream to service, mirroring
// syncrt.DoubleBuffer.Switch's own spin-wait backoff rather than pinning a
// core at 100% while the engine is idle.
const idlePollInterval = 5 * time.Millisecond

// Run is the disk goroutine's main loop. It consumes orders, opens/seeks
// each new stream's Reader, and repeatedly tops up every active stream's
// ring buffer until Stop is called. Callers run this in its own goroutine;
// spec.md §5 designates it "normal priority", i.e. it may block on syscalls.
func (m *Manager) Run(chunkFrames int) {
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}
		didOrders := m.drainOrders()
		didService := m.serviceActiveStreams(chunkFrames)
		if !didOrders && !didService {
			time.Sleep(idlePollInterval)
		}
	}
}

// Stop signals Run to return after its current pass.
func (m *Manager) Stop() { close(m.stopCh) }

func (m *Manager) drainOrders() bool {
	did := false
	for {
		span := m.orders.ReserveRead(1)
		if span.Len() == 0 {
			return did
		}
		var ord order
		if len(span.First) > 0 {
			ord = span.First[0]
		} else {
			ord = span.Second[0]
		}
		m.orders.CommitRead(1)
		m.openStream(ord)
		did = true
	}
}

// openStream runs only on the disk goroutine, strictly after the OrderNewStream
// call that allocated ord.ref and strictly before any Free of that ref (which
// this same goroutine also performs), so it needs no lock of its own.
func (m *Manager) openStream(ord order) {
	if ord.ref == 0 {
		return
	}
	s := m.pool.Get(ord.ref)
	reader := m.newRoot(ord.sample)
	if reader == nil {
		m.log.Error("stream: open failed", "error", rtengine.ErrOpenFailed)
		s.state.Store(int32(StateEnd))
		s.initDone.Store(true)
		return
	}
	s.reader = reader
	s.ring = syncrt.NewRingBuffer[float32](m.ringCapacity * sampleChannels(ord.sample))
	s.state.Store(int32(StateActive))
	s.initDone.Store(true)
}

// serviceActiveStreams tops up every active stream's ring buffer, then
// reclaims any that were marked deleted. poolMu is held only long enough to
// safely walk and re-walk the live list (Pool.Each forbids calling Free from
// within its own callback, and the audio thread's OrderNewStream mutates the
// same list concurrently); the potentially-blocking disk reads in refill run
// with the lock released.
func (m *Manager) serviceActiveStreams(chunkFrames int) bool {
	m.poolMu.Lock()
	var active []*Stream
	var toReclaim []Ref
	m.pool.Each(func(ref Ref, s *Stream) {
		if s.ring == nil {
			return
		}
		if s.deleted.Load() {
			toReclaim = append(toReclaim, ref)
			return
		}
		if State(s.state.Load()) == StateActive {
			active = append(active, s)
		}
	})
	m.poolMu.Unlock()

	for _, s := range active {
		m.refill(s, chunkFrames)
	}

	if len(toReclaim) > 0 {
		m.poolMu.Lock()
		for _, ref := range toReclaim {
			m.pool.Free(ref)
		}
		m.poolMu.Unlock()
	}

	return len(active) > 0 || len(toReclaim) > 0
}

func (m *Manager) refill(s *Stream, chunkFrames int) {
	freeFrames := s.ring.FreeSpace() / s.channels
	if freeFrames <= 0 {
		return
	}
	if freeFrames > chunkFrames {
		freeFrames = chunkFrames
	}
	span := s.ring.ReserveWrite(freeFrames * s.channels)
	buf := make([]float32, span.Len())
	sampleLen := s.sample.TotalFrames
	loop := s.sample.Loop
	looping := s.doLoop && loop != nil

	readPos := s.readPos
	if looping && readPos >= loop.End {
		readPos = loop.Start
	}
	// A single pass must never read past the loop's end boundary: cap this
	// read's length to what's left before the loop wraps, so refill's own
	// next pass (not a mid-buffer splice) is what performs the wrap.
	if looping && readPos < loop.End {
		if remaining := loop.End - readPos; int64(freeFrames) > remaining {
			freeFrames = int(remaining)
			span = s.ring.ReserveWrite(freeFrames * s.channels)
			buf = buf[:span.Len()]
		}
	}
	framesRead, err := s.reader.ReadAt(readPos, buf, s.channels)
	if err != nil {
		m.log.Warn("stream: refill failed", "error", err)
		s.state.Store(int32(StateEnd))
		return
	}
	if framesRead == 0 {
		// A Reader legitimately returns 0 frames with a nil error at the
		// natural end of a non-looping sample; that isn't a failure.
		if looping {
			s.readPos = loop.Start
			return
		}
		s.state.Store(int32(StateEnd))
		return
	}
	nearEnd := !looping && readPos+int64(framesRead) >= sampleLen
	readShort := framesRead < freeFrames && !nearEnd
	if readShort {
		m.log.Warn("stream: refill got fewer frames than requested", "error", rtengine.ErrReadShort,
			"want", freeFrames, "got", framesRead)
	}
	copy(span.First, buf[:len(span.First)])
	if len(span.Second) > 0 {
		copy(span.Second, buf[len(span.First):len(span.First)+len(span.Second)])
	}
	s.ring.CommitWrite(framesRead * s.channels)
	s.readPos = readPos + int64(framesRead)

	if readShort || (!s.doLoop && s.readPos >= sampleLen) {
		s.state.Store(int32(StateEnd))
	}
}
