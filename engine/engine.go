// Package engine implements the top-level per-cycle render loop (spec.md
// §4.9): draining MIDI, resolving and applying events in fragment order,
// rendering every channel's voices, and mixing to the device output buffer.
// Grounded structurally on
// _examples/vsariola-sointu/cmd/sointu-play/main.go's top-level render loop
// shape (open context → open device → loop render-then-write), adapted from
// driving a single bytecode synth to driving many EngineChannels.
package engine

import (
	"sort"
	"time"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/enginechannel"
	"github.com/gosampler/rtengine/schedule"
	"github.com/gosampler/rtengine/stream"
	"github.com/gosampler/rtengine/syncrt"
)

// Config are the construction-time parameters for an Engine.
type Config struct {
	Context rtengine.EngineContext

	NumChannels    int
	VoicesPerChannel int

	MIDIInput   rtengine.MIDIInput
	AudioOutput rtengine.AudioOutput

	// StreamManager serves every channel's disk-streaming voices (spec.md
	// §4.4). A nil StreamManager means no region may ever outrun its RAM
	// cache: voice.Trigger fails any region whose Sample.CacheFrames <
	// Sample.TotalFrames rather than block or crash. The caller owns
	// starting StreamManager.Run on its own goroutine and calling Stop.
	StreamManager *stream.Manager

	// Workers, if > 1, fans channel rendering across that many persistent
	// goroutines (spec.md §9's "added" multi-core render split).
	Workers int
}

// Engine owns every EngineChannel, the event-time scheduler, and the
// double-buffered routing config; it is the audio thread's single entry
// point (Tick).
type Engine struct {
	ctx rtengine.EngineContext

	channels []*enginechannel.Channel
	midiIn   rtengine.MIDIInput
	audioOut rtengine.AudioOutput

	gen    *schedule.Generator
	config *syncrt.DoubleBuffer[RoutingTable]

	pool *workerPool

	evScratch []rtengine.Event
}

// New constructs an Engine with cfg.NumChannels channels, each with its own
// voice pool of cfg.VoicesPerChannel (spec.md §9: "channels own voice
// pools").
func New(cfg Config) *Engine {
	ctx := cfg.Context.WithDefaults()
	e := &Engine{
		ctx:      ctx,
		midiIn:   cfg.MIDIInput,
		audioOut: cfg.AudioOutput,
		gen:      schedule.NewGenerator(ctx.SampleRate),
		config:   syncrt.NewDoubleBuffer[RoutingTable](),
		pool:     newWorkerPool(cfg.Workers),
	}
	for i := 0; i < cfg.NumChannels; i++ {
		e.channels = append(e.channels, enginechannel.New(ctx.SampleRate, cfg.VoicesPerChannel, cfg.StreamManager, enginechannel.StealOldest, ctx.Logger))
	}
	return e
}

// Channel returns the EngineChannel at the given MIDI channel index.
func (e *Engine) Channel(index int) *enginechannel.Channel {
	if index < 0 || index >= len(e.channels) {
		return nil
	}
	return e.channels[index]
}

// UpdateRouting publishes a new RoutingTable, replaying the mutation the
// caller made on the returned (now-inactive) table so both buffer instances
// converge, matching syncrt.DoubleBuffer's Switch contract.
func (e *Engine) UpdateRouting(mutate func(*RoutingTable)) {
	front := e.config.GetForUpdate()
	mutate(front)
	back := e.config.Switch()
	mutate(back)
}

// Close shuts down the engine's worker pool.
func (e *Engine) Close() { e.pool.Close() }

// Tick runs one full audio cycle of spec.md §4.9's seven-step loop, writing
// frames of audio into the output collaborator's buffers.
func (e *Engine) Tick(frames int) {
	cfg := e.config.Lock()
	defer e.config.Unlock()
	e.applyRouting(cfg)

	now := time.Now().UnixNano()
	e.gen.UpdateFragmentTime(now, frames)

	for i, ch := range e.channels {
		ch.RetryPendingTriggers()
		e.evScratch = e.evScratch[:0]
		e.evScratch = e.midiIn.Drain(i, e.evScratch)
		for j := range e.evScratch {
			e.gen.Resolve(&e.evScratch[j])
		}
		stableSortByFragmentPos(e.evScratch)
		for _, ev := range e.evScratch {
			applyEvent(ch, ev)
		}
		ch.FlushPendingTransitions()
	}

	e.pool.RenderAll(e.channels, frames)

	outL, outR := e.audioOut.Buffers(frames)
	for i := range outL {
		outL[i] = 0
	}
	for i := range outR {
		outR[i] = 0
	}
	for _, ch := range e.channels {
		ch.MixInto(outL, outR)
	}

	e.gen.AdvanceFragment(frames)
}

func (e *Engine) applyRouting(cfg *RoutingTable) {
	for i, ch := range e.channels {
		if i >= len(cfg.Channels) {
			break
		}
		route := cfg.Channels[i]
		if route.Instrument != nil && route.Instrument != ch.Instrument() {
			ch.LoadInstrument(route.Instrument)
		}
		ch.SetStealPolicy(route.StealPolicy)
	}
}

// applyEvent implements spec.md §4.9 step 4's per-event dispatch.
func applyEvent(ch *enginechannel.Channel, ev rtengine.Event) {
	switch ev.Type {
	case rtengine.EventNoteOn:
		ch.TriggerNoteOn(ev)
	case rtengine.EventNoteOff:
		ch.QueueNoteOff(ev)
	case rtengine.EventControlChange:
		if ev.Controller == 64 { // sustain pedal, per the MIDI spec
			ch.SetSustain(ev.CCValue >= 64, ev.FragmentPos)
			return
		}
		ch.QueueControlChange(ev)
	case rtengine.EventPitchBend:
		ch.QueuePitchBend(ev)
	case rtengine.EventChannelPressure:
		ch.QueueChannelPressure(ev)
	case rtengine.EventCancelRelease:
		ch.QueueCancelRelease(ev.Key, ev.FragmentPos)
	}
}

// stableSortByFragmentPos performs the "small stable insertion" spec.md
// §4.9 step 3 calls for: MIDI events arrive mostly-in-order already, so a
// stable sort over the already-nearly-sorted slice costs little.
func stableSortByFragmentPos(events []rtengine.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].FragmentPos < events[j].FragmentPos
	})
}
