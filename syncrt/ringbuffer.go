package syncrt

import "sync/atomic"

// RingBuffer is a fixed-capacity single-producer/single-consumer ring
// buffer of T. All operations are wait-free; the producer-only write cursor
// and consumer-only read cursor are the sole synchronization, exactly as
// spec.md §4.1 requires.
//
// The producer calls ReserveWrite/CommitWrite; the consumer calls
// ReserveRead/CommitRead. Neither side may call the other's methods.
type RingBuffer[T any] struct {
	buf []T
	// writeIdx is advanced only by the producer, readIdx only by the
	// consumer; each is read by the other side to compute free/used space.
	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
}

// NewRingBuffer allocates a ring buffer of the given capacity (rounded up
// internally only in the sense that indices wrap modulo capacity; no power-
// of-two requirement).
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{buf: make([]T, capacity)}
}

func (r *RingBuffer[T]) cap() uint64 { return uint64(len(r.buf)) }

// UsedSpace returns the number of unread elements. Safe to call from either
// side (it only reads, never writes, the cursors).
func (r *RingBuffer[T]) UsedSpace() int {
	return int(r.writeIdx.Load() - r.readIdx.Load())
}

// FreeSpace returns the number of elements that can still be written before
// the buffer is full.
func (r *RingBuffer[T]) FreeSpace() int {
	return len(r.buf) - r.UsedSpace()
}

// Span is a contiguous writable or readable slice into the ring buffer's
// backing array.
type Span[T any] struct {
	First, Second []T // Second is non-empty only when the span wraps
}

// Len returns the total number of elements spanned.
func (s Span[T]) Len() int { return len(s.First) + len(s.Second) }

// ReserveWrite returns up to n contiguous writable slots (split into two if
// the reservation wraps the end of the backing array). The producer must
// write into exactly the slots returned, then call CommitWrite with however
// many it actually filled.
func (r *RingBuffer[T]) ReserveWrite(n int) Span[T] {
	free := r.FreeSpace()
	if n > free {
		n = free
	}
	if n <= 0 {
		return Span[T]{}
	}
	start := r.writeIdx.Load() % r.cap()
	end := start + uint64(n)
	if end <= r.cap() {
		return Span[T]{First: r.buf[start:end]}
	}
	firstLen := r.cap() - start
	return Span[T]{First: r.buf[start:], Second: r.buf[:uint64(n)-firstLen]}
}

// CommitWrite advances the write cursor by n, publishing the slots most
// recently returned by ReserveWrite to the consumer.
func (r *RingBuffer[T]) CommitWrite(n int) {
	r.writeIdx.Store(r.writeIdx.Load() + uint64(n))
}

// ReserveRead returns up to n contiguous readable slots (split into two if
// the reservation wraps).
func (r *RingBuffer[T]) ReserveRead(n int) Span[T] {
	used := r.UsedSpace()
	if n > used {
		n = used
	}
	if n <= 0 {
		return Span[T]{}
	}
	start := r.readIdx.Load() % r.cap()
	end := start + uint64(n)
	if end <= r.cap() {
		return Span[T]{First: r.buf[start:end]}
	}
	firstLen := r.cap() - start
	return Span[T]{First: r.buf[start:], Second: r.buf[:uint64(n)-firstLen]}
}

// CommitRead advances the read cursor by n, freeing the slots most recently
// returned by ReserveRead for reuse by the producer.
func (r *RingBuffer[T]) CommitRead(n int) {
	r.readIdx.Store(r.readIdx.Load() + uint64(n))
}

// WriteSilence fills up to n slots with the zero value of T and commits
// them, used by the streaming subsystem to pad the interpolator lookahead
// when the disk goroutine has fallen behind (spec.md §4.4).
func (r *RingBuffer[T]) WriteSilence(n int) int {
	span := r.ReserveWrite(n)
	var zero T
	for i := range span.First {
		span.First[i] = zero
	}
	for i := range span.Second {
		span.Second[i] = zero
	}
	written := span.Len()
	r.CommitWrite(written)
	return written
}
