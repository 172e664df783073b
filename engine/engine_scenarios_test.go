package engine

import (
	"testing"

	"github.com/gosampler/rtengine"
)

type fakeMIDI struct {
	queued map[int][]rtengine.Event
}

func newFakeMIDI() *fakeMIDI { return &fakeMIDI{queued: map[int][]rtengine.Event{}} }

func (f *fakeMIDI) queue(channel int, ev rtengine.Event) {
	ev.WallClockNanos = -1 // pre-resolved: FragmentPos is already set
	f.queued[channel] = append(f.queued[channel], ev)
}

func (f *fakeMIDI) Drain(channel int, dst []rtengine.Event) []rtengine.Event {
	dst = append(dst, f.queued[channel]...)
	f.queued[channel] = nil
	return dst
}

type fakeAudio struct {
	sampleRate, maxFrames int
	left, right           []float32
}

func (f *fakeAudio) SampleRate() int        { return f.sampleRate }
func (f *fakeAudio) MaxFramesPerCycle() int { return f.maxFrames }
func (f *fakeAudio) Buffers(frames int) (left, right []float32) {
	if cap(f.left) < frames {
		f.left = make([]float32, frames)
		f.right = make([]float32, frames)
	}
	f.left, f.right = f.left[:frames], f.right[:frames]
	return f.left, f.right
}

func flatMonoInstrument(level float32, frames int64, velAtten float64, keyGroup int) *rtengine.Instrument {
	cache := make([]float32, frames)
	for i := range cache {
		cache[i] = level
	}
	sample := &rtengine.Sample{
		SampleRate: 44100, Channels: 1, TotalFrames: frames,
		Cache: cache, CacheFrames: frames,
	}
	velTable := [128]float64{}
	for i := range velTable {
		velTable[i] = velAtten
	}
	dr := &rtengine.DimensionRegion{
		Sample: sample, UnityNote: 60,
		VelocityAttenuationTable: velTable,
		SampleAttenuation:        1.0,
		AmpEG: rtengine.EnvelopeParams{
			InfiniteSustain: true,
			SustainLevel:    1.0,
		},
		FilterEG: rtengine.EnvelopeParams{InfiniteSustain: true, SustainLevel: 1.0},
		KeyGroup: keyGroup,
	}
	region := &rtengine.Region{
		LowKey: 0, HighKey: 127, LowVelocity: 0, HighVelocity: 127,
		Dimensions: []*rtengine.DimensionRegion{dr},
	}
	instr := &rtengine.Instrument{Regions: []*rtengine.Region{region}}
	instr.BuildIndex()
	return instr
}

func newTestEngine(instr *rtengine.Instrument, voicesPerChannel int, midi *fakeMIDI, audio *fakeAudio) *Engine {
	e := New(Config{
		Context:          rtengine.EngineContext{SampleRate: 44100},
		NumChannels:      1,
		VoicesPerChannel: voicesPerChannel,
		MIDIInput:        midi,
		AudioOutput:      audio,
	})
	e.UpdateRouting(func(rt *RoutingTable) { rt.Channels[0].Instrument = instr })
	return e
}

// Scenario 1: mono sustain — a flat sample scaled only by velocity
// attenuation and center pan should come through unmodified in shape.
func TestScenarioMonoSustain(t *testing.T) {
	instr := flatMonoInstrument(0.8, 44100, 0.7, 0)
	midi := newFakeMIDI()
	audio := &fakeAudio{sampleRate: 44100, maxFrames: 4096}
	e := newTestEngine(instr, 4, midi, audio)

	midi.queue(0, rtengine.Event{Type: rtengine.EventNoteOn, Key: 60, Velocity: 100, FragmentPos: 0})

	frames := 1000
	e.Tick(frames)

	const panCoeff = 0.70710678 // panToLR(0)
	want := float32(0.8 * 0.7 * panCoeff)
	for i := 0; i < frames; i++ {
		if diff := audio.left[i] - want; diff < -1e-3 || diff > 1e-3 {
			t.Fatalf("frame %d: left=%v want %v", i, audio.left[i], want)
		}
		if audio.left[i] != audio.right[i] {
			t.Fatalf("frame %d: center pan should split energy equally, L=%v R=%v", i, audio.left[i], audio.right[i])
		}
	}
}

// Scenario 2: release triggered by note-off — the voice reaches state end
// (and stops contributing energy) shortly after its release completes.
func TestScenarioReleaseOnNoteOff(t *testing.T) {
	cache := make([]float32, 44100)
	for i := range cache {
		cache[i] = 0.5
	}
	sample := &rtengine.Sample{SampleRate: 44100, Channels: 1, TotalFrames: 44100, Cache: cache, CacheFrames: 44100}
	velTable := [128]float64{}
	for i := range velTable {
		velTable[i] = 1.0
	}
	dr := &rtengine.DimensionRegion{
		Sample: sample, UnityNote: 60, VelocityAttenuationTable: velTable, SampleAttenuation: 1.0,
		AmpEG:    rtengine.EnvelopeParams{InfiniteSustain: true, SustainLevel: 1.0, ReleaseSeconds: 0.001},
		FilterEG: rtengine.EnvelopeParams{InfiniteSustain: true, SustainLevel: 1.0},
	}
	region := &rtengine.Region{LowKey: 0, HighKey: 127, LowVelocity: 0, HighVelocity: 127, Dimensions: []*rtengine.DimensionRegion{dr}}
	instr := &rtengine.Instrument{Regions: []*rtengine.Region{region}}
	instr.BuildIndex()

	midi := newFakeMIDI()
	audio := &fakeAudio{sampleRate: 44100, maxFrames: 4096}
	e := newTestEngine(instr, 4, midi, audio)

	midi.queue(0, rtengine.Event{Type: rtengine.EventNoteOn, Key: 60, Velocity: 100, FragmentPos: 0})
	midi.queue(0, rtengine.Event{Type: rtengine.EventNoteOff, Key: 60, FragmentPos: 50})

	e.Tick(200) // 0.001s release is ~44 frames, well inside this cycle after offset 50

	if e.Channel(0).ActiveVoiceCount() != 0 {
		t.Fatalf("active voices after release completed = %d, want 0", e.Channel(0).ActiveVoiceCount())
	}
	tail := audio.left[199]
	if tail < -1e-3 || tail > 1e-3 {
		t.Fatalf("tail sample after release completed = %v, want near 0", tail)
	}
}

// Scenario 4: voice stealing — a pool of 4 stays at 4 live voices after a
// 5th note-on steals the oldest, whose kill then completes and frees its
// slot for the stolen trigger's retry.
func TestScenarioVoiceStealing(t *testing.T) {
	instr := flatMonoInstrument(0.5, 44100, 1.0, 0)
	midi := newFakeMIDI()
	audio := &fakeAudio{sampleRate: 44100, maxFrames: 4096}
	e := newTestEngine(instr, 4, midi, audio)

	for key := 60; key < 65; key++ {
		midi.queue(0, rtengine.Event{Type: rtengine.EventNoteOn, Key: key, Velocity: 100, FragmentPos: 0})
	}

	e.Tick(64) // enough for the stolen voice's fast-fade kill to finish and reclaim
	e.Tick(64) // the stolen 5th note-on is retried at the top of this cycle

	if got := e.Channel(0).ActiveVoiceCount(); got != 4 {
		t.Fatalf("active voices after stealing settles = %d, want 4", got)
	}
}

// Scenario 6: sample-accurate CC — a CC #1 update that lands one sample
// before a note-on must already be visible to that note-on's EG1 scaling.
func TestScenarioSampleAccurateCC(t *testing.T) {
	build := func() (*Engine, *fakeMIDI) {
		cache := make([]float32, 200000)
		for i := range cache {
			cache[i] = 1.0
		}
		sample := &rtengine.Sample{SampleRate: 44100, Channels: 1, TotalFrames: int64(len(cache)), Cache: cache, CacheFrames: int64(len(cache))}
		velTable := [128]float64{}
		for i := range velTable {
			velTable[i] = 1.0
		}
		dr := &rtengine.DimensionRegion{
			Sample: sample, UnityNote: 60, VelocityAttenuationTable: velTable, SampleAttenuation: 1.0,
			AmpEG:    rtengine.EnvelopeParams{AttackSeconds: 1.0, InfiniteSustain: true, SustainLevel: 1.0},
			FilterEG: rtengine.EnvelopeParams{InfiniteSustain: true, SustainLevel: 1.0},
			EG1Ctl:   rtengine.AttenuationController{Kind: rtengine.AttenuationControlChange, CC: 1},
		}
		region := &rtengine.Region{LowKey: 0, HighKey: 127, LowVelocity: 0, HighVelocity: 127, Dimensions: []*rtengine.DimensionRegion{dr}}
		instr := &rtengine.Instrument{Regions: []*rtengine.Region{region}}
		instr.BuildIndex()

		midi := newFakeMIDI()
		audio := &fakeAudio{sampleRate: 44100, maxFrames: 200000}
		return newTestEngine(instr, 4, midi, audio), midi
	}

	const noteOnPos = 10000
	const sampleFrame = 45000 // inside the slower attack, past the faster one's completion

	eBaseline, midiBaseline := build()
	midiBaseline.queue(0, rtengine.Event{Type: rtengine.EventNoteOn, Key: 60, Velocity: 100, FragmentPos: noteOnPos})
	eBaseline.Tick(sampleFrame + 1)
	baselineAudio := eBaseline.audioOut.(*fakeAudio)

	eScaled, midiScaled := build()
	midiScaled.queue(0, rtengine.Event{Type: rtengine.EventControlChange, Controller: 1, CCValue: 127, FragmentPos: noteOnPos - 1})
	midiScaled.queue(0, rtengine.Event{Type: rtengine.EventNoteOn, Key: 60, Velocity: 100, FragmentPos: noteOnPos})
	eScaled.Tick(sampleFrame + 1)
	scaledAudio := eScaled.audioOut.(*fakeAudio)

	baselineLevel := baselineAudio.left[sampleFrame]
	scaledLevel := scaledAudio.left[sampleFrame]

	const panCoeff = 0.70710678 // panToLR(0): full level on one side of a centred voice
	if baselineLevel < 0.99*panCoeff {
		t.Fatalf("baseline (CC=0) attack should have completed by frame %d, level=%v", sampleFrame, baselineLevel)
	}
	if scaledLevel >= baselineLevel {
		t.Fatalf("CC=127 (visible before note-on) should slow the attack: scaled=%v baseline=%v", scaledLevel, baselineLevel)
	}
}
