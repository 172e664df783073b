// Package enginechannel implements the per-MIDI-channel state a Voice's
// trigger and render steps read from: the controller table, the active-voice
// map keyed by MIDI key, the current instrument, and the channel's stereo
// output bus (spec.md §4.8). Grounded on
// _examples/original_source/src/engines/common/Event.h's EngineChannel
// forward-reference (the pEngineChannel field every Event carries) and on
// spec.md §9's "replace cyclic back-pointers with borrow-from-root"
// redesign flag: a Voice never holds a *Channel, only the narrow
// voice.ChannelContext view built by ChannelContext below.
package enginechannel

import (
	"log/slog"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/rtpool"
	"github.com/gosampler/rtengine/stream"
	"github.com/gosampler/rtengine/voice"
)

// VoiceStealPolicy selects which voice yields its slot when the channel's
// voice pool is exhausted (spec.md §4.9).
type VoiceStealPolicy int

const (
	StealOldest VoiceStealPolicy = iota
	StealLowestVelocity
	StealLeastRecentlyTriggered
)

type voiceMeta struct {
	key      int
	velocity int
	seq      uint64 // set once, at initial trigger; ranks StealOldest
	// lastTouch also starts at the trigger sequence but is bumped again
	// whenever a cancel-release (key re-pressed while still fading, e.g.
	// under a sustain pedal) lands on this voice, so it can diverge from
	// seq: a voice re-touched after an older one was triggered ranks as
	// more recently active than its trigger order alone would suggest.
	// Ranks StealLeastRecentlyTriggered.
	lastTouch uint64
}

// pendingTrigger is a note-on that lost the voice-stealing race and is
// retried on a subsequent cycle, once the stolen voice's kill has completed.
type pendingTrigger struct {
	ev       rtengine.Event
	region   *rtengine.DimensionRegion
	kind     voice.Kind
	keyGroup int
}

// Channel is one MIDI channel's engine-side state: the controller table,
// active voices, output bus, and instrument reference.
type Channel struct {
	log *slog.Logger

	sampleRate int

	cc         [128]uint8
	aftertouch uint8
	pitchBend  int // -8192..+8191
	muted      bool
	globalVolume float64
	sustain    bool

	instrument *rtengine.Instrument

	voices      *rtpool.Pool[voice.Voice]
	meta        []voiceMeta // parallel to the pool's slots, indexed by Ref
	activeByKey [128][]rtpool.Ref

	pending [128][]rtengine.Event // queued release/cancel-release transitions per key
	ccEvents []rtengine.Event     // this cycle's CC/pitch-bend events, consumed by each voice's Render scan

	streamMgr   *stream.Manager
	stealPolicy VoiceStealPolicy

	retries []pendingTrigger

	outL, outR []float32

	nextSeq uint64
}

// New constructs a Channel with a fixed-capacity voice pool of maxVoices.
func New(sampleRate, maxVoices int, streamMgr *stream.Manager, stealPolicy VoiceStealPolicy, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		log:          log,
		sampleRate:   sampleRate,
		globalVolume: 1.0,
		voices:       rtpool.New[voice.Voice](maxVoices),
		meta:         make([]voiceMeta, maxVoices+1),
		streamMgr:    streamMgr,
		stealPolicy:  stealPolicy,
	}
}

// LoadInstrument publishes a new instrument reference for this channel. The
// caller is responsible for the instrument already being fully built
// (BuildIndex called) and immutable from this point on (spec.md §5).
func (c *Channel) LoadInstrument(instr *rtengine.Instrument) { c.instrument = instr }

// Instrument returns the channel's currently loaded instrument, or nil.
func (c *Channel) Instrument() *rtengine.Instrument { return c.instrument }

// SetStealPolicy changes which voice yields its slot when this channel's
// pool is exhausted; applied live, takes effect on the next steal.
func (c *Channel) SetStealPolicy(p VoiceStealPolicy) { c.stealPolicy = p }

func (c *Channel) SetCC(cc int, value uint8) {
	if cc >= 0 && cc < len(c.cc) {
		c.cc[cc] = value
	}
}

func (c *Channel) CCValue(cc int) uint8 {
	if cc < 0 || cc >= len(c.cc) {
		return 0
	}
	return c.cc[cc]
}

func (c *Channel) SetAftertouch(v uint8)  { c.aftertouch = v }
func (c *Channel) SetPitchBend(v int)     { c.pitchBend = v }
func (c *Channel) SetMuted(v bool)        { c.muted = v }
func (c *Channel) SetGlobalVolume(v float64) { c.globalVolume = v }
func (c *Channel) Muted() bool            { return c.muted }
func (c *Channel) Sustain() bool          { return c.sustain }

// ChannelContext builds the narrow view a Voice's Trigger/Render steps read
// from this channel's live state.
func (c *Channel) ChannelContext() voice.ChannelContext {
	return voice.ChannelContext{
		CCValue:      c.CCValue,
		Aftertouch:   c.aftertouch,
		Muted:        c.muted,
		GlobalVolume: c.globalVolume,
	}
}

// EnsureBus grows the channel's stereo output bus to frames if needed.
func (c *Channel) EnsureBus(frames int) {
	if cap(c.outL) < frames {
		c.outL = make([]float32, frames)
		c.outR = make([]float32, frames)
	}
	c.outL = c.outL[:frames]
	c.outR = c.outR[:frames]
	for i := range c.outL {
		c.outL[i] = 0
		c.outR[i] = 0
	}
}

// Bus returns the channel's stereo output buffers for the current cycle.
func (c *Channel) Bus() (left, right []float32) { return c.outL, c.outR }

// ActiveVoiceCount returns the number of live voices across all keys.
func (c *Channel) ActiveVoiceCount() int { return c.voices.Len() }
