package voice

import (
	"math"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/modulate"
	"github.com/gosampler/rtengine/stream"
)

// State is the voice's playback-position source (spec.md §4.7).
type State int

const (
	StateInit State = iota
	StateRAM
	StateDisk
	StateEnd
)

// Kind classifies how a voice was triggered, affecting the volume-resolution
// step of the trigger contract.
type Kind int

const (
	KindNormal Kind = iota
	KindReleaseTrigger
	KindReleaseTriggerRequired
)

// SubFragmentSize is the fixed sub-fragment length the render contract
// divides a cycle into (spec.md §4.7: "e.g., 32").
const SubFragmentSize = 32

// ChannelContext is the subset of EngineChannel state a Voice's trigger and
// render steps need: the controller table, channel aftertouch, mute, and
// global volume (the pitch-bend value is passed to Trigger separately). Passing this narrow view (rather than a circular *EngineChannel
// pointer) implements spec.md §9's "replace cyclic back-pointers with
// borrow-from-root".
type ChannelContext struct {
	CCValue      func(cc int) uint8
	Aftertouch   uint8
	Muted        bool
	GlobalVolume float64
}

// Voice is a mutable per-note render entity: fractional playback position,
// modulator state, filter state, and the bookkeeping the trigger/render/kill
// contracts of spec.md §4.7 describe.
type Voice struct {
	state State
	kind  Kind

	key        int
	region     *rtengine.DimensionRegion
	sample     *rtengine.Sample

	// Playback position, in source sample frames; resamp.FracPos tracks the
	// fractional part.
	resamp Resampler

	isDiskVoice bool
	streamRef   stream.Ref
	streamMgr   *stream.Manager
	// streamBuf holds streamAvail whole frames of interleaved audio left
	// unconsumed by streamResamp from the previous renderFromStream call,
	// followed by whatever the stream ring supplies this call; it grows
	// on demand for pitches that need more lookahead than its initial
	// capacity.
	streamBuf    []float32
	streamAvail  int       // whole frames of valid, unconsumed carry-over sitting at streamBuf's front
	streamResamp Resampler // persists the stream-side fractional read position across calls

	ramLoopStart, ramLoopEnd int64
	ramLoopActive            bool

	ampEG    modulate.ADSR
	filterEG modulate.ADSR
	pitchEG  modulate.DecayEnvelope
	lfo1, lfo2, lfo3 modulate.LFO

	filter Biquad

	// scratch holds one sub-fragment's synthesized-and-filtered samples
	// before they're summed into the channel bus; fixed size, no allocation.
	scratchL, scratchR [SubFragmentSize]float32

	volume         float64 // velocity-attenuation * sample-attenuation * release-decay
	crossfadeVol   float64
	attenCtl       rtengine.AttenuationController // region.AttenuationCtl, kept for live re-evaluation in Render
	panL, panR     float64
	pitchBase      float64 // centsToFreqRatio(...) * (sample_rate/engine_sample_rate)
	bendUnits      int     // current pitch-bend value, -8192..+8191; fragment-gated via ccEvents

	cutoffMin, cutoffMax float64
	cutoffController, resonanceController int
	invertCutoff bool
	// cutoffVelComponent is fixed at Trigger (velocity doesn't change mid-
	// note); cutoffCtlVal and resonanceVal are live, re-evaluated from
	// ccEvents in Render step 2 whenever their routed CC moves.
	cutoffVelComponent, cutoffCtlVal, resonanceVal float64

	keyGroup int

	killAtFragmentPos int // -1 until RequestKill sets it; killPending says whether it is still to be applied
	killPending       bool

	releaseAtFragmentPos       int
	releasePending             bool
	cancelReleaseAtFragmentPos int
	cancelReleasePending       bool

	engineSampleRate int
}

// Trigger implements the ten-step trigger contract of spec.md §4.7. It
// returns false if any step's failure condition is hit; by then the voice's
// fields may already have been reset, and the caller must not use a failed
// voice.
func (v *Voice) Trigger(ch ChannelContext, ev rtengine.Event, pitchBendUnits int, region *rtengine.DimensionRegion, kind Kind, keyGroup int, engineSampleRate int, streamMgr *stream.Manager) bool {
	if region == nil || region.Sample == nil || region.Sample.TotalFrames == 0 {
		return false
	}
	*v = Voice{
		state:            StateInit,
		kind:             kind,
		key:              ev.Key,
		region:           region,
		sample:           region.Sample,
		streamMgr:        streamMgr,
		keyGroup:         keyGroup,
		killAtFragmentPos: -1,
		engineSampleRate: engineSampleRate,
	}

	// Step 1: resolve volume.
	velAtten := velocityAttenuation(region, ev.Velocity)
	v.volume = velAtten * region.SampleAttenuation
	if kind == KindReleaseTrigger || kind == KindReleaseTriggerRequired {
		v.volume *= region.ReleaseTriggerDecay
		if v.volume <= 0 {
			return false
		}
	}

	// Step 2: resolve crossfade-volume from the attenuation controller.
	v.attenCtl = region.AttenuationCtl
	v.crossfadeVol = resolveAttenuationController(region.AttenuationCtl, ev.Velocity, ch)
	v.bendUnits = pitchBendUnits

	// Step 3: resolve pan-left/pan-right.
	v.panL, v.panR = panToLR(region.Pan)

	// Step 4: initial playback position.
	v.resamp.FracPos = float64(region.SampleStartOffset)

	// Step 5: classify as disk voice; place stream order.
	v.isDiskVoice = region.Sample.CacheFrames < region.Sample.TotalFrames
	if v.isDiskVoice {
		if streamMgr == nil {
			return false
		}
		doLoop := region.Sample.Loop != nil
		ref, ok := streamMgr.OrderNewStream(region.Sample, int64(v.resamp.FracPos), doLoop)
		if !ok {
			return false
		}
		v.streamRef = ref
		v.streamBuf = make([]float32, SubFragmentSize*sampleChannelsOf(region.Sample)*2)
	}

	// Step 6: RAM-containable loop detection.
	if loop := region.Sample.Loop; loop != nil {
		lookahead := region.Sample.TrailerFrames
		if loop.End <= region.Sample.CacheFrames-lookahead {
			v.ramLoopActive = true
			v.ramLoopStart = loop.Start
			v.ramLoopEnd = loop.End
		}
	}

	// Step 7: initial pitch base.
	semitoneOffset := 0.0
	if region.PitchTrack {
		semitoneOffset = float64(ev.Key-region.UnityNote) * 100
	}
	cents := region.FineTuneCents + region.ScaleTuning[ev.Key%12] + semitoneOffset
	v.pitchBase = centsToFreqRatio(cents) * (float64(region.Sample.SampleRate) / float64(engineSampleRate))

	// Step 8: trigger amplitude/filter/pitch EGs.
	influence := func(base rtengine.EnvelopeParams, ctl rtengine.AttenuationController) rtengine.EnvelopeParams {
		k := controllerInfluence(ctl, ev.Velocity, ch)
		base.AttackSeconds *= k
		base.Decay1Seconds *= k
		base.Decay2Seconds *= k
		base.ReleaseSeconds *= k
		return base
	}
	v.ampEG.Trigger(influence(region.AmpEG, region.EG1Ctl), engineSampleRate)
	v.filterEG.Trigger(influence(region.FilterEG, region.EG2Ctl), engineSampleRate)
	v.pitchEG.Trigger(region.PitchEG.DepthCents, region.PitchEG.AttackSeconds, engineSampleRate)

	// Step 9: trigger the three LFOs.
	v.lfo1.Trigger(region.LFO1, engineSampleRate)
	v.lfo2.Trigger(region.LFO2, engineSampleRate)
	v.lfo3.Trigger(region.LFO3, engineSampleRate)

	// Step 10: initial filter cutoff/resonance.
	if region.Filter.Type != rtengine.FilterNone {
		v.filter.Type = filterKindOf(region.Filter.Type)
		v.cutoffMin, v.cutoffMax = region.Filter.CutoffMinHz, region.Filter.CutoffMaxHz
		v.cutoffController = region.Filter.CutoffController
		v.resonanceController = region.Filter.ResonanceController
		v.invertCutoff = region.Filter.InvertCutoff
		ctlVal := 0.0
		if v.cutoffController >= 0 {
			ctlVal = float64(ch.CCValue(v.cutoffController)) / 127
		}
		v.cutoffVelComponent = float64(ev.Velocity) / 127
		v.cutoffCtlVal = ctlVal
		combined := (v.cutoffVelComponent + ctlVal) / 2
		if v.invertCutoff {
			combined = 1 - combined
		}
		if combined > 1 {
			combined = 1
		}
		cutoff := math.Exp(math.Min(1, combined)*math.Log(v.cutoffMax/v.cutoffMin)) * v.cutoffMin
		res := region.Filter.Resonance
		if v.resonanceController >= 0 {
			res = float64(ch.CCValue(v.resonanceController)) / 127
		}
		v.resonanceVal = res
		v.filter.SetCoefficients(cutoff, res, engineSampleRate)
	}

	return true
}

func sampleChannelsOf(s *rtengine.Sample) int {
	if s.Channels <= 0 {
		return 1
	}
	return s.Channels
}

func filterKindOf(t rtengine.FilterType) FilterKind {
	switch t {
	case rtengine.FilterLowpass:
		return FilterLowpass
	case rtengine.FilterHighpass:
		return FilterHighpass
	case rtengine.FilterBandpass:
		return FilterBandpass
	default:
		return FilterNone
	}
}

func velocityAttenuation(r *rtengine.DimensionRegion, velocity int) float64 {
	if velocity < 0 {
		velocity = 0
	}
	if velocity > 127 {
		velocity = 127
	}
	return r.VelocityAttenuationTable[velocity]
}

func resolveAttenuationController(ctl rtengine.AttenuationController, velocity int, ch ChannelContext) float64 {
	var v float64
	switch ctl.Kind {
	case rtengine.AttenuationVelocity:
		v = float64(velocity) / 127
	case rtengine.AttenuationControlChange:
		v = float64(ch.CCValue(int(ctl.CC))) / 127
	case rtengine.AttenuationChannelAftertouch:
		v = float64(ch.Aftertouch) / 127
	default:
		return 1.0
	}
	if ctl.Invert {
		v = 1 - v
	}
	return v
}

// attenuationFromValue re-evaluates an already-normalized (0..1) controller
// or aftertouch value against ctl's invert flag, mirroring
// resolveAttenuationController's tail end. Used by Render's step-2 scan to
// live-update crossfadeVol from the exact CC/aftertouch event that landed in
// the current sub-fragment, rather than re-reading channel state that may
// have already moved on to a later event.
func attenuationFromValue(ctl rtengine.AttenuationController, v float64) float64 {
	if ctl.Invert {
		v = 1 - v
	}
	return v
}

func controllerInfluence(ctl rtengine.AttenuationController, velocity int, ch ChannelContext) float64 {
	if ctl.Kind == rtengine.AttenuationNone {
		return 1.0
	}
	v := resolveAttenuationController(ctl, velocity, ch)
	const k = 0.0625 // region-defined influence power-of-two, fixed here (spec.md §4.7 step 8)
	return 1 + k*v
}

func panToLR(pan float64) (l, r float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * (math.Pi / 4) // 0 => full left, pi/2 => full right
	return math.Cos(angle), math.Sin(angle)
}

func centsToFreqRatio(cents float64) float64 {
	return math.Exp2(cents / 1200)
}

// State returns the voice's current playback state.
func (v *Voice) State() State { return v.state }

// Key returns the MIDI key this voice was triggered on.
func (v *Voice) Key() int { return v.key }

// KeyGroup returns the voice's key-group id (0 means no exclusion class).
func (v *Voice) KeyGroup() int { return v.keyGroup }
