package vstadapter

import (
	"testing"

	"pipelined.dev/audio/vst2"

	"github.com/gosampler/rtengine"
)

func midiEvent(status, d1, d2 byte, deltaFrames int32) vst2.MIDIEvent {
	return vst2.MIDIEvent{
		Data:        [4]byte{status, d1, d2, 0},
		DeltaFrames: deltaFrames,
	}
}

func TestDecodeMIDIEventNoteOn(t *testing.T) {
	ev, channel, ok := decodeMIDIEvent(midiEvent(0x91, 60, 100, 12))
	if !ok {
		t.Fatal("expected ok")
	}
	if channel != 1 {
		t.Fatalf("channel = %d, want 1", channel)
	}
	if ev.Type != rtengine.EventNoteOn || ev.Key != 60 || ev.Velocity != 100 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.FragmentPos != 12 || ev.WallClockNanos != -1 {
		t.Fatalf("unexpected timing fields: %+v", ev)
	}
}

func TestDecodeMIDIEventNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	ev, _, ok := decodeMIDIEvent(midiEvent(0x90, 60, 0, 0))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Type != rtengine.EventNoteOff || ev.Key != 60 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMIDIEventControlChange(t *testing.T) {
	ev, channel, ok := decodeMIDIEvent(midiEvent(0xB3, 7, 90, 5))
	if !ok {
		t.Fatal("expected ok")
	}
	if channel != 3 {
		t.Fatalf("channel = %d, want 3", channel)
	}
	if ev.Type != rtengine.EventControlChange || ev.Controller != 7 || ev.CCValue != 90 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMIDIEventPitchBendCentered(t *testing.T) {
	ev, _, ok := decodeMIDIEvent(midiEvent(0xE0, 0x00, 0x40, 0)) // 0x40<<7 = 8192, centered
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Type != rtengine.EventPitchBend || ev.PitchBend != 0 {
		t.Fatalf("expected centered pitch bend, got %+v", ev)
	}
}

func TestDecodeMIDIEventIgnoresUnhandled(t *testing.T) {
	_, _, ok := decodeMIDIEvent(midiEvent(0xF8, 0, 0, 0))
	if ok {
		t.Fatal("expected system realtime byte to be ignored")
	}
}

func TestProcessEventsAndDrainRoundTrip(t *testing.T) {
	p := New(nil)
	p.ProcessEvents([]vst2.MIDIEvent{
		midiEvent(0x90, 60, 100, 0),
		midiEvent(0x90, 64, 90, 10),
		midiEvent(0x91, 40, 50, 0), // different channel
	})

	dst := p.Drain(0, nil)
	if len(dst) != 2 {
		t.Fatalf("channel 0 drained %d events, want 2", len(dst))
	}
	if dst[0].Key != 60 || dst[1].Key != 64 {
		t.Fatalf("unexpected drain order: %+v", dst)
	}

	dst1 := p.Drain(1, nil)
	if len(dst1) != 1 || dst1[0].Key != 40 {
		t.Fatalf("channel 1 drained %+v, want one event with key 40", dst1)
	}

	if empty := p.Drain(0, nil); len(empty) != 0 {
		t.Fatalf("channel 0 should be empty after drain, got %+v", empty)
	}
}
