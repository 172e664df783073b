// Package vstadapter wraps *engine.Engine as a VST2 instrument plugin using
// pipelined.dev/audio/vst2, so the engine can be hosted inside a DAW instead
// of run standalone. Grounded on
// _examples/vsariola-sointu/cmd/sointu-vsti/main.go's VSTIProcessContext:
// same vst2.PluginAllocator/vst2.Plugin/vst2.Dispatcher wiring and the same
// MIDI-event-draining shape, adapted from driving the teacher's bytecode
// vm.Synth to driving engine.Engine.Tick.
package vstadapter

import (
	"log/slog"

	"pipelined.dev/audio/vst2"

	"github.com/gosampler/rtengine"
)

// Plugin drives an *engine.Engine as a VST2 instrument. It implements
// rtengine.MIDIInput itself: ProcessEvents (wired to vst2.Dispatcher's
// ProcessEventsFunc) decodes each vst2.MIDIEvent's raw status byte and
// buffers it per channel with its delta-frame offset already resolved as
// FragmentPos; Drain (called from inside engine.Tick, on the same VST
// processing thread, so no synchronization is needed) empties that buffer.
type Plugin struct {
	log     *slog.Logger
	pending [16][]rtengine.Event
}

// New constructs a Plugin. It is created before the *engine.Engine it will
// eventually feed, since the engine's Config wants an rtengine.MIDIInput at
// construction time and Plugin's Drain method has no dependency on the
// engine itself.
func New(log *slog.Logger) *Plugin {
	if log == nil {
		log = slog.Default()
	}
	return &Plugin{log: log}
}

// Drain implements rtengine.MIDIInput.
func (p *Plugin) Drain(channel int, dst []rtengine.Event) []rtengine.Event {
	if channel < 0 || channel >= len(p.pending) {
		return dst
	}
	dst = append(dst, p.pending[channel]...)
	p.pending[channel] = p.pending[channel][:0]
	return dst
}

// ProcessEvents decodes a batch of VST2 MIDI events delivered in
// vst2.Dispatcher.ProcessEventsFunc, ahead of the ProcessFloatFunc call for
// the same cycle. Unrecognized MIDI status bytes are ignored, matching the
// teacher's default case in VSTIProcessContext.NextEvent.
func (p *Plugin) ProcessEvents(events []vst2.MIDIEvent) {
	for _, raw := range events {
		ev, channel, ok := decodeMIDIEvent(raw)
		if !ok {
			continue
		}
		p.enqueue(channel, ev)
	}
}

func (p *Plugin) enqueue(channel int, ev rtengine.Event) {
	if channel < 0 || channel >= len(p.pending) {
		return
	}
	p.pending[channel] = append(p.pending[channel], ev)
}

// decodeMIDIEvent turns one vst2.MIDIEvent into an rtengine.Event with
// FragmentPos already resolved from the event's DeltaFrames (VST hosts
// deliver sample-accurate offsets within the current process cycle, so
// there is no wall clock to reconcile against — WallClockNanos is left at
// -1, which schedule.Generator.Resolve treats as already-resolved).
func decodeMIDIEvent(raw vst2.MIDIEvent) (ev rtengine.Event, channel int, ok bool) {
	status := raw.Data[0]
	channel = int(status & 0x0F)
	pos := int(raw.DeltaFrames)

	switch status & 0xF0 {
	case 0x90: // note on (velocity 0 is a note off, per the MIDI spec)
		key, velocity := int(raw.Data[1]), int(raw.Data[2])
		if velocity == 0 {
			return rtengine.Event{Type: rtengine.EventNoteOff, Channel: channel, Key: key, WallClockNanos: -1, FragmentPos: pos}, channel, true
		}
		return rtengine.Event{Type: rtengine.EventNoteOn, Channel: channel, Key: key, Velocity: velocity, WallClockNanos: -1, FragmentPos: pos}, channel, true
	case 0x80: // note off
		key, velocity := int(raw.Data[1]), int(raw.Data[2])
		return rtengine.Event{Type: rtengine.EventNoteOff, Channel: channel, Key: key, Velocity: velocity, WallClockNanos: -1, FragmentPos: pos}, channel, true
	case 0xB0: // control change
		cc, val := int(raw.Data[1]), int(raw.Data[2])
		return rtengine.Event{Type: rtengine.EventControlChange, Channel: channel, Controller: cc, CCValue: val, WallClockNanos: -1, FragmentPos: pos}, channel, true
	case 0xE0: // pitch bend, 14-bit, centered on 8192
		bend := (int(raw.Data[2])<<7 | int(raw.Data[1])) - 8192
		return rtengine.Event{Type: rtengine.EventPitchBend, Channel: channel, PitchBend: bend, WallClockNanos: -1, FragmentPos: pos}, channel, true
	case 0xD0: // channel pressure
		return rtengine.Event{Type: rtengine.EventChannelPressure, Channel: channel, Pressure: int(raw.Data[1]), WallClockNanos: -1, FragmentPos: pos}, channel, true
	case 0xA0: // poly aftertouch
		return rtengine.Event{Type: rtengine.EventPolyAftertouch, Channel: channel, Key: int(raw.Data[1]), Pressure: int(raw.Data[2]), WallClockNanos: -1, FragmentPos: pos}, channel, true
	default:
		return rtengine.Event{}, 0, false
	}
}
