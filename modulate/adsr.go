// Package modulate implements the engine's stateful DSP producers: the
// ADSR-style amplitude/filter envelope, the single-stage pitch decay
// envelope, and the three LFOs (spec.md §4.6), grounded on
// original_source/src/engines/gig/Voice.cpp's pEG1/pEG2/pEG3/pLFO* process
// calls and original_source/src/engines/common/LFOBase.h.
package modulate

import (
	"math"

	"github.com/gosampler/rtengine"
)

// Stage is the ADSR's current segment.
type Stage int

const (
	StageAttack Stage = iota
	StageHold
	StageDecay1
	StageDecay2
	StageSustain // spec.md's "end" segment: level held constant
	StageRelease
	StageOff // envelope has reached silence; the owning voice should end
)

// expFloor is the fraction of the remaining distance-to-target an
// exponential segment is defined to have closed by the time its nominal
// duration elapses (a conventional -60dB approach threshold).
const expFloor = 0.001

// ADSR is a stateful envelope generator: pre-attack level, attack, hold,
// a two-slope exponential/linear decay, optional infinite sustain, and
// release, exactly the eight parameters of spec.md §4.6.
type ADSR struct {
	params     rtengine.EnvelopeParams
	sampleRate int

	stage           Stage
	level           float64
	target          float64
	linStep         float64 // per-frame delta, used when params.Curve == CurveLinear
	expCoeff        float64 // per-frame multiplicative factor, used when Curve == CurveExponential
	framesRemaining int64
}

// Trigger (re)starts the envelope from its pre-attack level using the given
// (already controller-scaled) parameters.
func (e *ADSR) Trigger(p rtengine.EnvelopeParams, sampleRate int) {
	e.params = p
	e.sampleRate = sampleRate
	e.level = p.PreAttackLevel
	e.enterStage(StageAttack)
}

// Stage returns the envelope's current segment.
func (e *ADSR) Stage() Stage { return e.stage }

// CurrentParams returns the parameters this envelope was last triggered
// with, letting a caller re-trigger a variant (e.g. a fast-release override)
// without having cached its own copy.
func (e *ADSR) CurrentParams() rtengine.EnvelopeParams { return e.params }

// GetLevel returns the last computed level without advancing time; valid in
// any stage, and is the definitive plateau value while StageSustain holds.
func (e *ADSR) GetLevel() float64 { return e.level }

// Release transitions the envelope to its release segment from whatever
// level it currently holds, preserving smoothness (no discontinuity).
func (e *ADSR) Release() {
	if e.stage == StageOff {
		return
	}
	e.enterStage(StageRelease)
}

// CancelRelease reverts a released-but-not-yet-off envelope back to holding
// its current level at the sustain plateau, used when a note-off is undone
// by a subsequent sustain-pedal-down before the release segment completes.
func (e *ADSR) CancelRelease() {
	if e.stage != StageRelease {
		return
	}
	e.stage = StageSustain
	e.target = e.level
	e.framesRemaining = 0
}

// process advances the envelope by nFrames using either the linear or the
// exponential stepping rule selected by params.Curve, auto-advancing
// through stage boundaries ("stage_end") as needed, and returns the
// resulting level. This is process_lin()/process_exp() from spec.md §4.6,
// unified since only the per-frame step rule differs between them.
func (e *ADSR) process(nFrames int) float64 {
	remaining := nFrames
	for remaining > 0 && e.stage != StageOff && e.stage != StageSustain {
		step := remaining
		if e.framesRemaining > 0 && int64(step) > e.framesRemaining {
			step = int(e.framesRemaining)
		}
		if step <= 0 {
			e.advanceStage()
			continue
		}
		switch e.params.Curve {
		case rtengine.CurveExponential:
			e.level = e.target - (e.target-e.level)*math.Pow(e.expCoeff, float64(step))
		default:
			e.level += e.linStep * float64(step)
		}
		e.framesRemaining -= int64(step)
		remaining -= step
		if e.framesRemaining <= 0 {
			e.level = e.target
			e.advanceStage()
		}
	}
	return e.level
}

// ProcessLin advances the envelope by nFrames under a forced linear step
// rule for this call, matching spec.md's naming of two distinct processing
// entry points; ProcessExp is its exponential counterpart. Most callers
// should just call Process, which honors the region's configured curve.
func (e *ADSR) ProcessLin(nFrames int) float64 {
	saved := e.params.Curve
	e.params.Curve = rtengine.CurveLinear
	v := e.process(nFrames)
	e.params.Curve = saved
	return v
}

// ProcessExp is the exponential counterpart of ProcessLin.
func (e *ADSR) ProcessExp(nFrames int) float64 {
	saved := e.params.Curve
	e.params.Curve = rtengine.CurveExponential
	v := e.process(nFrames)
	e.params.Curve = saved
	return v
}

// Process advances the envelope by nFrames using the region-configured
// curve shape and returns the multiplicative factor to apply to volume or
// filter cutoff for this sub-fragment.
func (e *ADSR) Process(nFrames int) float64 { return e.process(nFrames) }

func (e *ADSR) advanceStage() {
	switch e.stage {
	case StageAttack:
		e.enterStage(StageHold)
	case StageHold:
		e.enterStage(StageDecay1)
	case StageDecay1:
		e.enterStage(StageDecay2)
	case StageDecay2:
		e.enterStage(StageSustain)
	case StageRelease:
		e.stage = StageOff
		e.level = 0
	}
}

func (e *ADSR) enterStage(s Stage) {
	e.stage = s
	if s == StageSustain {
		e.target = e.params.SustainLevel
		e.level = e.target
		e.framesRemaining = 0
		if !e.params.InfiniteSustain {
			// A finite-sustain region has no hold: the note decays into
			// release on its own, independent of note-off.
			e.enterStage(StageRelease)
		}
		return
	}

	var seconds float64
	switch s {
	case StageAttack:
		e.target = 1.0
		seconds = e.params.AttackSeconds
	case StageHold:
		e.target = e.level
		e.framesRemaining = e.params.HoldFrames
		e.setLinearRamp()
		if e.framesRemaining <= 0 {
			e.advanceStage()
		}
		return
	case StageDecay1:
		// Two-slope decay: the first slope closes half the distance from
		// full scale to the sustain level (spec.md does not pin an exact
		// split between decay1/decay2).
		e.target = e.params.SustainLevel + (1-e.params.SustainLevel)*0.5
		seconds = e.params.Decay1Seconds
	case StageDecay2:
		e.target = e.params.SustainLevel
		seconds = e.params.Decay2Seconds
	case StageRelease:
		e.target = 0
		seconds = e.params.ReleaseSeconds
	}
	e.framesRemaining = int64(seconds * float64(e.sampleRate))
	e.setLinearRamp()
	if e.framesRemaining <= 0 {
		e.level = e.target
		e.advanceStage()
	}
}

func (e *ADSR) setLinearRamp() {
	if e.framesRemaining <= 0 {
		e.linStep = 0
		e.expCoeff = 0
		return
	}
	e.linStep = (e.target - e.level) / float64(e.framesRemaining)
	e.expCoeff = math.Pow(expFloor, 1.0/float64(e.framesRemaining))
}
