package stream

// State returns the stream's current lifecycle stage. Safe to call from the
// audio thread.
func (s *Stream) State() State { return State(s.state.Load()) }

// Channels reports the interleaved frame width of the stream's ring buffer.
func (s *Stream) Channels() int { return s.channels }

// Read pulls up to len(dst)/Channels() frames from the ring buffer into dst,
// consumer-side only (the Voice owning this stream). If the disk goroutine
// has fallen behind (spec.md §4.4: "read_space < max_samples_per_cycle <<
// CONFIG_MAX_PITCH"), the shortfall is padded with silence and starved is
// reported. A shortfall after the disk goroutine has marked the stream
// StateEnd is not starvation: starved is false then, and AtEnd reports when
// that real tail has been drained.
func (s *Stream) Read(dst []float32) (framesRead int, starved bool) {
	if s.ring == nil {
		for i := range dst {
			dst[i] = 0
		}
		return len(dst) / max1(s.channels), true
	}
	span := s.ring.ReserveRead(len(dst))
	n := copy(dst, span.First)
	n += copy(dst[n:], span.Second)
	s.ring.CommitRead(n)
	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		starved = State(s.state.Load()) != StateEnd
		if starved {
			s.starvedReads.Add(1)
		}
	}
	return len(dst) / max1(s.channels), starved
}

// AtEnd reports whether the disk goroutine has marked this stream's real
// tail fully produced and the ring buffer fully drained.
func (s *Stream) AtEnd() bool {
	return State(s.state.Load()) == StateEnd && (s.ring == nil || s.ring.UsedSpace() == 0)
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
