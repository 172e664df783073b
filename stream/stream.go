// Package stream implements the sample streaming subsystem: a background
// disk goroutine that refills per-voice ring buffers from a Reader, and the
// real-time-safe order/poll/cancel API a Voice uses to talk to it (spec.md
// §4.4). Grounded on spec.md's operational description of the disk thread
// loop (no single original_source file implements it) and on
// syncrt.RingBuffer for the SPSC transport and rtpool.Pool for the fixed
// slot allocation, the same primitives the teacher's own low-allocation
// paths (vm/multithread_synth.go's sync.Pool-backed buffer reuse) target.
package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/rtpool"
	"github.com/gosampler/rtengine/syncrt"
)

// State is a Stream's lifecycle stage.
type State int32

const (
	StateUnused State = iota
	StateActive
	StateEnd
)

// Reader abstracts format-specific disk I/O: seek to a frame offset in the
// source and read the next contiguous chunk of interleaved float32 frames.
// Collaborators implement this per sample-format container; the streaming
// subsystem itself never parses a file.
type Reader interface {
	// ReadAt fills dst with up to len(dst)/channels frames starting at
	// frame offset pos, returning the number of frames actually read.
	ReadAt(pos int64, dst []float32, channels int) (framesRead int, err error)
}

// Stream is one background-thread-managed playback source: a ring buffer of
// audio frames, the current disk read position, and a lifecycle state.
//
// state/deleted/initDone are the only fields touched from both the disk
// goroutine and a Voice's audio-thread reads; they're atomics so a Read or
// AskForCreatedStream call never has to wait on the pool mutex the disk
// goroutine might be holding across a blocking file read. reader/ring/
// readPos are disk-goroutine-only after open, and the ring buffer itself is
// the lock-free SPSC handoff to the consumer.
type Stream struct {
	sample   *rtengine.Sample
	reader   Reader
	readPos  int64
	doLoop   bool
	channels int
	ring     *syncrt.RingBuffer[float32]
	state    atomic.Int32
	deleted  atomic.Bool
	initDone atomic.Bool

	// starvedReads counts Read calls that padded a ring-buffer shortfall
	// with silence, bumped from the audio thread. The control plane sums
	// it across the pool via Manager.StreamStarvedCount instead of the
	// audio path ever logging or returning an error for it.
	starvedReads atomic.Int64
}

// Ref identifies a Stream slot; the zero value means "no stream".
type Ref = rtpool.Ref

type order struct {
	ref        Ref
	sample     *rtengine.Sample
	startFrame int64
	doLoop     bool
}

// Manager owns the fixed Stream pool and the background disk goroutine.
// Real-time callers only ever touch OrderNewStream, AskForCreatedStream and
// OrderDeletion; everything else runs on the disk goroutine.
type Manager struct {
	// poolMu guards only the Stream pool's free/live list bookkeeping
	// (Alloc/Free/Each): unlike a voice pool, allocated and freed
	// exclusively by the audio thread, stream slots are allocated by the
	// caller and reclaimed by the disk goroutine, so the two sides need
	// real synchronization there. It is never held across a Stream's
	// blocking disk read; per-Stream fields shared across threads
	// (state, deleted, initDone) are atomics instead, and stream orders
	// happen once per voice trigger/kill rather than once per sample.
	poolMu  sync.Mutex
	pool    *rtpool.Pool[Stream]
	orders  *syncrt.RingBuffer[order]
	newRoot func(sample *rtengine.Sample) Reader

	ringCapacity int
	stopCh       chan struct{}

	log *slog.Logger

	// poolExhausted counts OrderNewStream calls that found the stream
	// pool full, bumped from the audio thread. Paired with
	// rtengine.ErrPoolExhausted in spirit; the audio path never returns
	// or logs the error itself.
	poolExhausted atomic.Int64
}

// NewManager creates a stream manager with room for capacity concurrent
// streams, each with a ring buffer of ringCapacity frames per channel slot.
// newRoot mints a Reader for a given Sample; it is called only from the
// disk goroutine. log receives the disk goroutine's open/read failure
// diagnostics; nil defaults to slog.Default().
func NewManager(capacity, ringCapacity int, newRoot func(sample *rtengine.Sample) Reader, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		pool:         rtpool.New[Stream](capacity),
		orders:       syncrt.NewRingBuffer[order](capacity),
		newRoot:      newRoot,
		ringCapacity: ringCapacity,
		stopCh:       make(chan struct{}),
		log:          log,
	}
	return m
}

// OrderNewStream allocates a Stream slot and enqueues an open-and-fill order
// for the disk goroutine, returning a handle immediately. Called from the
// audio thread; never blocks and never touches the source file.
func (m *Manager) OrderNewStream(sample *rtengine.Sample, startFrame int64, doLoop bool) (Ref, bool) {
	m.poolMu.Lock()
	ref := m.pool.Alloc()
	if ref == rtpool.Nil {
		m.poolMu.Unlock()
		m.poolExhausted.Add(1)
		return rtpool.Nil, false
	}
	slot := m.pool.Get(ref)
	slot.sample = sample
	slot.reader = nil
	slot.ring = nil
	slot.readPos = startFrame
	slot.doLoop = doLoop
	slot.channels = sampleChannels(sample)
	slot.state.Store(int32(StateUnused))
	slot.deleted.Store(false)
	slot.initDone.Store(false)
	m.poolMu.Unlock()

	span := m.orders.ReserveWrite(1)
	if span.Len() < 1 {
		m.poolMu.Lock()
		m.pool.Free(ref)
		m.poolMu.Unlock()
		return rtpool.Nil, false
	}
	ord := order{ref: ref, sample: sample, startFrame: startFrame, doLoop: doLoop}
	if len(span.First) > 0 {
		span.First[0] = ord
	} else {
		span.Second[0] = ord
	}
	m.orders.CommitWrite(1)
	return ref, true
}

// AskForCreatedStream polls whether the disk goroutine has finished opening
// the stream for ref. Until it returns true, the voice renders from its RAM
// cache only, per the preload-sizing invariant (spec.md §4.4).
func (m *Manager) AskForCreatedStream(ref Ref) (*Stream, bool) {
	if ref == rtpool.Nil {
		return nil, false
	}
	s := m.pool.Get(ref)
	if !s.initDone.Load() {
		return nil, false
	}
	return s, true
}

// OrderDeletion marks a stream for release; the disk goroutine reclaims the
// pool slot on its next pass.
func (m *Manager) OrderDeletion(ref Ref) {
	if ref == rtpool.Nil {
		return
	}
	m.pool.Get(ref).deleted.Store(true)
}

// StreamStarvedCount sums every live stream's starved-read count: an
// RT-safe counter bumped on the audio thread each time Read pads a
// ring-buffer shortfall with silence. The control plane polls this
// (alongside PoolExhaustedCount) instead of the audio path returning or
// logging an error directly.
func (m *Manager) StreamStarvedCount() int64 {
	m.poolMu.Lock()
	defer m.poolMu.Unlock()
	var total int64
	m.pool.Each(func(_ Ref, s *Stream) { total += s.starvedReads.Load() })
	return total
}

// PoolExhaustedCount reports how many OrderNewStream calls have found the
// stream pool full, bumped from the audio thread.
func (m *Manager) PoolExhaustedCount() int64 { return m.poolExhausted.Load() }

func sampleChannels(sample *rtengine.Sample) int {
	if sample == nil || sample.Channels <= 0 {
		return 1
	}
	return sample.Channels
}
