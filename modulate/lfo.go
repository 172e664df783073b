package modulate

import "github.com/gosampler/rtengine"

// LFO is a low-frequency oscillator, either signed (-max..+max) or unsigned
// (0..+max), driven internally and/or by an external MIDI controller.
// Grounded on original_source/src/engines/common/LFOBase.h; Render computes
// the triangle wave in floating point (see triangle).
type LFO struct {
	signed bool

	freqHz     float64
	sampleRate int
	phase      float64 // 0..1
	phaseStep  float64

	flipPhase bool

	internalDepth float64
	extRoute      rtengine.LFOControllerRoute
	extDepthCoeff float64
	extLevel      float64 // last controller-scaled contribution, updated by Update
}

// Trigger (re)starts the LFO with the given parameters (spec.md §4.6).
func (l *LFO) Trigger(p rtengine.LFOParams, sampleRate int) {
	l.signed = p.Signed
	l.freqHz = p.FrequencyHz
	l.sampleRate = sampleRate
	l.flipPhase = p.FlipPhase
	l.internalDepth = p.InternalDepth
	l.extRoute = p.ExternalRoute
	l.extDepthCoeff = p.ExternalDepth
	l.extLevel = 0

	if sampleRate > 0 {
		l.phaseStep = l.freqHz / float64(sampleRate)
	}

	switch {
	case p.StartMax:
		l.phase = 0.5 // triangle(0.5) == +1, the wave's peak
	case p.StartMin:
		l.phase = 0 // triangle(0) == -1, the wave's trough
	default:
		l.phase = 0.25 // triangle(0.25) == 0, the wave's mid-level
	}
}

// Enabled reports whether either the internal or the (controller-routed)
// external depth is non-zero, per spec.md §4.6: "The LFO is enabled only if
// either internal or external depth is non-zero after controller routing."
func (l *LFO) Enabled() bool {
	if l.extRoute == rtengine.LFORouteInternalOnly {
		return l.internalDepth != 0
	}
	return l.internalDepth != 0 || l.extDepthCoeff != 0
}

// Update scales the external-depth contribution when the routed MIDI
// controller (0..127) changes.
func (l *LFO) Update(controllerValue int) {
	l.extLevel = l.extDepthCoeff * (float64(controllerValue) / 127)
}

// ControllerNumber reports which MIDI CC number (if any) and whether channel
// aftertouch feeds this LFO's external depth, per the route it was last
// Trigger-ed with. Callers use this to filter incoming CC/aftertouch events
// down to the ones that actually belong to this LFO (spec.md §4.7 step 2),
// rather than routing every controller change to every LFO.
func (l *LFO) ControllerNumber() (cc int, aftertouch bool) {
	return l.extRoute.ControllerNumber()
}

// triangle returns a -1..+1 triangle wave sample for the given 0..1 phase.
func triangle(phase float64) float64 {
	// 1 - 4*|phase - 0.5|, written as a rising/falling ramp.
	v := 4*phase - 1
	if phase > 0.5 {
		v = 3 - 4*phase
	}
	return v
}

// Render returns the LFO's next wave sample and advances its phase.
func (l *LFO) Render() float64 {
	tri := triangle(l.phase)
	l.phase += l.phaseStep
	if l.phase >= 1 {
		l.phase -= 1
	}
	if l.flipPhase {
		tri = -tri
	}

	depth := l.internalDepth + l.extLevel
	if l.signed {
		return tri * depth
	}
	// unsigned: remap -1..1 to 0..1 before scaling by depth
	return (tri + 1) * 0.5 * depth
}
