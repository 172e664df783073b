package modulate

import (
	"math"
	"testing"

	"github.com/gosampler/rtengine"
)

func TestLFODisabledWhenAllDepthsZero(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 4}, 44100)
	if l.Enabled() {
		t.Fatalf("Enabled() = true, want false with zero internal and external depth")
	}
}

func TestLFOEnabledWithInternalDepthOnly(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 4, InternalDepth: 0.5}, 44100)
	if !l.Enabled() {
		t.Fatalf("Enabled() = false, want true with non-zero internal depth")
	}
}

func TestLFOSignedRangeStaysWithinDepth(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 100, InternalDepth: 1.0}, 44100)
	for i := 0; i < 4410; i++ {
		v := l.Render()
		if v < -1.0001 || v > 1.0001 {
			t.Fatalf("signed LFO sample %v out of [-1,1] range at frame %d", v, i)
		}
	}
}

func TestLFOUnsignedRangeStaysNonNegative(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: false, FrequencyHz: 100, InternalDepth: 1.0}, 44100)
	for i := 0; i < 4410; i++ {
		v := l.Render()
		if v < -0.0001 || v > 1.0001 {
			t.Fatalf("unsigned LFO sample %v out of [0,1] range at frame %d", v, i)
		}
	}
}

func TestLFOFlipPhaseInvertsWave(t *testing.T) {
	var a, b LFO
	a.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 4, InternalDepth: 1.0, FlipPhase: false}, 44100)
	b.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 4, InternalDepth: 1.0, FlipPhase: true}, 44100)
	for i := 0; i < 100; i++ {
		va, vb := a.Render(), b.Render()
		if math.Abs(va+vb) > 1e-9 {
			t.Fatalf("flipped LFO sample %v is not the negation of %v at frame %d", vb, va, i)
		}
	}
}

func TestLFOUpdateScalesExternalContribution(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 0, StartMax: true, ExternalRoute: rtengine.LFORouteModWheel, ExternalDepth: 1.0}, 44100)
	if !l.Enabled() {
		t.Fatalf("Enabled() = false before Update, want true: a non-zero external depth is routed to the mod wheel")
	}
	if v := l.Render(); v != 0 {
		t.Fatalf("Render() = %v before Update, want 0 with zero controller value", v)
	}
	l.Update(127)
	if !l.Enabled() {
		t.Fatalf("Enabled() = false after Update(127), want true")
	}
	if v := l.Render(); math.Abs(v-1.0) > 1e-9 {
		t.Fatalf("Render() = %v after Update(127), want the full external depth 1.0", v)
	}
}

func TestLFOStartLevelMaxBeginsAtPeak(t *testing.T) {
	var l LFO
	l.Trigger(rtengine.LFOParams{Signed: true, FrequencyHz: 0, StartMax: true, InternalDepth: 1.0}, 44100)
	v := l.Render()
	if math.Abs(v-1.0) > 1e-9 {
		t.Fatalf("first sample with StartMax = %v, want 1.0", v)
	}
}
