package midiio

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/syncrt"
)

func newTestQueue() *syncrt.RingBuffer[rtengine.Event] {
	return syncrt.NewRingBuffer[rtengine.Event](perChannelQueueCapacity)
}

func newTestQueueWithCapacity(n int) *syncrt.RingBuffer[rtengine.Event] {
	return syncrt.NewRingBuffer[rtengine.Event](n)
}

// raw builds a midi.Message from status/data bytes. midi.Message's
// underlying representation is a plain byte slice, so this conversion
// does not depend on any constructor helper existing in the package.
func raw(bytes ...byte) midi.Message {
	return midi.Message(bytes)
}

func TestDecodeMessageNoteOn(t *testing.T) {
	ev, channel, ok := decodeMessage(raw(0x91, 60, 100))
	if !ok {
		t.Fatal("expected ok")
	}
	if channel != 1 {
		t.Fatalf("channel = %d, want 1", channel)
	}
	if ev.Type != rtengine.EventNoteOn || ev.Key != 60 || ev.Velocity != 100 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMessageNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	ev, channel, ok := decodeMessage(raw(0x90, 60, 0))
	if !ok {
		t.Fatal("expected ok")
	}
	if channel != 0 {
		t.Fatalf("channel = %d, want 0", channel)
	}
	if ev.Type != rtengine.EventNoteOff || ev.Key != 60 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMessageNoteOff(t *testing.T) {
	ev, _, ok := decodeMessage(raw(0x82, 64, 40))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Type != rtengine.EventNoteOff || ev.Key != 64 || ev.Velocity != 40 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMessageControlChange(t *testing.T) {
	ev, channel, ok := decodeMessage(raw(0xB3, 7, 90))
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

func TestDecodeMessagePitchBend(t *testing.T) {
	ev, _, ok := decodeMessage(raw(0xE0, 0x00, 0x40))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Type != rtengine.EventPitchBend {
		t.Fatalf("unexpected event type: %+v", ev)
	}
}

func TestDecodeMessageChannelPressure(t *testing.T) {
	ev, channel, ok := decodeMessage(raw(0xD5, 80))
	if !ok {
		t.Fatal("expected ok")
	}
	if channel != 5 {
		t.Fatalf("channel = %d, want 5", channel)
	}
	if ev.Type != rtengine.EventChannelPressure || ev.Pressure != 80 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMessagePolyAftertouch(t *testing.T) {
	ev, _, ok := decodeMessage(raw(0xA2, 48, 30))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Type != rtengine.EventPolyAftertouch || ev.Key != 48 || ev.Pressure != 30 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeMessageIgnoresUnhandled(t *testing.T) {
	// a lone system realtime byte (timing clock) carries no note/CC/bend data
	_, _, ok := decodeMessage(raw(0xF8))
	if ok {
		t.Fatal("expected timing clock to be ignored")
	}
}

func newTestInput() *Input {
	in := &Input{}
	for i := range in.queues {
		in.queues[i] = newTestQueue()
	}
	return in
}

func TestHandleMessageAndDrainRoundTrip(t *testing.T) {
	in := newTestInput()

	in.handleMessage(raw(0x90, 60, 100), 0)
	in.handleMessage(raw(0x90, 64, 90), 0)
	in.handleMessage(raw(0x91, 40, 50), 0) // different channel, must not interleave

	dst := in.Drain(0, nil)
	if len(dst) != 2 {
		t.Fatalf("channel 0 drained %d events, want 2", len(dst))
	}
	if dst[0].Key != 60 || dst[1].Key != 64 {
		t.Fatalf("unexpected drain order: %+v", dst)
	}
	if dst[0].WallClockNanos == 0 {
		t.Fatal("expected WallClockNanos to be stamped")
	}

	dst1 := in.Drain(1, nil)
	if len(dst1) != 1 || dst1[0].Key != 40 {
		t.Fatalf("channel 1 drained %+v, want one event with key 40", dst1)
	}

	if empty := in.Drain(0, nil); len(empty) != 0 {
		t.Fatalf("channel 0 should be empty after drain, got %+v", empty)
	}
}

func TestHandleMessageDropsWhenQueueFull(t *testing.T) {
	in := &Input{}
	in.queues[0] = newTestQueueWithCapacity(2)

	in.handleMessage(raw(0x90, 1, 10), 0)
	in.handleMessage(raw(0x90, 2, 10), 0)
	in.handleMessage(raw(0x90, 3, 10), 0) // dropped, queue already full

	dst := in.Drain(0, nil)
	if len(dst) != 2 {
		t.Fatalf("drained %d events, want 2 (third should have been dropped)", len(dst))
	}
	if dst[0].Key != 1 || dst[1].Key != 2 {
		t.Fatalf("unexpected surviving events: %+v", dst)
	}
}
