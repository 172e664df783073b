package modulate

import "math"

// DecayEnvelope is the single-stage pitch envelope from spec.md §4.6: it
// produces a multiplicative pitch factor that decays from a cents-derived
// depth ratio toward 1.0 over the configured attack time. Grounded on
// original_source/src/engines/gig/Voice.cpp's pEG3->Process(Samples) call
// (EG3 is the pitch envelope in that codebase).
type DecayEnvelope struct {
	sampleRate int

	depthRatio      float64 // 2^(cents/1200), the starting multiplicative offset from 1.0
	level           float64
	coeff           float64
	framesRemaining int64
}

// Trigger starts the envelope at its cents-derived depth ratio.
func (e *DecayEnvelope) Trigger(depthCents, attackSeconds float64, sampleRate int) {
	e.sampleRate = sampleRate
	e.depthRatio = math.Exp2(depthCents / 1200)
	e.level = e.depthRatio
	e.framesRemaining = int64(attackSeconds * float64(sampleRate))
	if e.framesRemaining <= 0 {
		e.level = 1.0
		e.coeff = 0
		return
	}
	e.coeff = math.Pow(expFloor, 1.0/float64(e.framesRemaining))
}

// Process advances the envelope by nFrames and returns the current
// multiplicative pitch factor.
func (e *DecayEnvelope) Process(nFrames int) float64 {
	remaining := nFrames
	for remaining > 0 && e.framesRemaining > 0 {
		step := remaining
		if int64(step) > e.framesRemaining {
			step = int(e.framesRemaining)
		}
		e.level = 1.0 - (1.0-e.level)*math.Pow(e.coeff, float64(step))
		e.framesRemaining -= int64(step)
		remaining -= step
	}
	if e.framesRemaining <= 0 {
		e.level = 1.0
	}
	return e.level
}
