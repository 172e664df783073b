// Package audioio implements rtengine.AudioOutput over real speakers using
// github.com/ebitengine/oto/v3. Grounded on
// _examples/vsariola-sointu/oto/oto.go's OtoOutput and convertbuffer.go's
// FloatBufferTo16BitLE, adapted from oto v1's push-style Write(bytes) player
// to oto/v3's pull-style player, which reads PCM bytes from an io.Reader on
// its own internal goroutine. The bridge between the two is a byte
// syncrt.RingBuffer[byte]: Submit encodes a rendered cycle and pushes it in,
// the reader adapter drains it as oto asks for more.
package audioio

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/gosampler/rtengine/syncrt"
)

const bytesPerFrame = 4 // stereo, 16-bit

// Output is a real-speaker rtengine.AudioOutput. Buffers hands the engine
// pre-allocated scratch slices to render into; Submit (not part of
// rtengine.AudioOutput — called by the driving loop right after each
// engine.Tick) encodes the rendered cycle and queues it for playback.
type Output struct {
	sampleRate int
	maxFrames  int
	left       []float32
	right      []float32
	scratch    []byte

	ctx    *oto.Context
	player *oto.Player
	pcm    *syncrt.RingBuffer[byte]
}

// NewOutput opens an oto/v3 context and starts a player pulling from an
// internal backlog sized for backlogSeconds of audio, matching the
// teacher's otoBufferSize constant in spirit (a fixed device-side cushion
// against scheduling jitter).
func NewOutput(sampleRate, maxFramesPerCycle int, backlogSeconds float64) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audioio: creating oto context: %w", err)
	}
	<-ready

	backlogBytes := int(float64(sampleRate)*backlogSeconds) * bytesPerFrame
	if backlogBytes <= 0 {
		backlogBytes = bytesPerFrame
	}

	o := &Output{
		sampleRate: sampleRate,
		maxFrames:  maxFramesPerCycle,
		left:       make([]float32, maxFramesPerCycle),
		right:      make([]float32, maxFramesPerCycle),
		ctx:        ctx,
		pcm:        syncrt.NewRingBuffer[byte](backlogBytes),
	}
	o.player = ctx.NewPlayer((*pcmReader)(o))
	o.player.Play()
	return o, nil
}

func (o *Output) SampleRate() int        { return o.sampleRate }
func (o *Output) MaxFramesPerCycle() int { return o.maxFrames }

// Buffers implements rtengine.AudioOutput: the engine renders directly into
// the returned slices.
func (o *Output) Buffers(frames int) (left, right []float32) {
	return o.left[:frames], o.right[:frames]
}

// Submit encodes the last frames rendered by the engine into the playback
// backlog. It never blocks: if the backlog has no room (the device thread
// has fallen behind), the whole cycle is dropped rather than torn, and the
// error tells the caller to log an underrun.
func (o *Output) Submit(frames int) error {
	need := frames * bytesPerFrame
	if cap(o.scratch) < need {
		o.scratch = make([]byte, need)
	}
	buf := o.scratch[:need]
	interleaveStereo(o.left[:frames], o.right[:frames], buf)

	span := o.pcm.ReserveWrite(need)
	if span.Len() < need {
		return fmt.Errorf("audioio: playback backlog full, dropped %d frames", frames)
	}
	c := copy(span.First, buf)
	if c < len(buf) {
		copy(span.Second, buf[c:])
	}
	o.pcm.CommitWrite(need)
	return nil
}

// Close stops playback and releases the oto player.
func (o *Output) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("audioio: closing player: %w", err)
	}
	return nil
}

// pcmReader adapts Output's backlog ring buffer to the io.Reader oto/v3's
// player pulls from. Read never blocks: an empty backlog is padded with
// silence rather than starving oto's internal goroutine.
type pcmReader Output

func (r *pcmReader) Read(p []byte) (int, error) {
	o := (*Output)(r)
	n := 0
	for n < len(p) {
		span := o.pcm.ReserveRead(len(p) - n)
		if span.Len() == 0 {
			break
		}
		c := copy(p[n:], span.First)
		n += c
		if c == len(span.First) && len(span.Second) > 0 {
			n += copy(p[n:], span.Second)
		}
		o.pcm.CommitRead(span.Len())
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

var _ io.Reader = (*pcmReader)(nil)
