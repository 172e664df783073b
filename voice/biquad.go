package voice

import "math"

// Biquad is a Direct Form I biquad filter with independent left/right
// state, recomputed each sub-fragment from the voice's current cutoff and
// resonance (spec.md §4.7 step 6). Coefficient derivation follows the
// standard RBJ cookbook formulas; original_source's per-format filter
// implementations differ in units and knob scaling but converge on this
// same topology.
type Biquad struct {
	Type FilterKind

	b0, b1, b2, a1, a2 float64

	// Direct Form I state, one channel each.
	x1L, x2L, y1L, y2L float64
	x1R, x2R, y1R, y2R float64
}

// FilterKind mirrors rtengine.FilterType but stays package-local so voice
// doesn't need to import rtengine just for this enum in filter math.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterLowpass
	FilterHighpass
	FilterBandpass
)

// SetCoefficients recomputes the biquad's coefficients for the given cutoff
// (Hz), resonance (Q, >0), and sample rate. A no-op filter (Type ==
// FilterNone) leaves the signal unmodified in Process.
func (b *Biquad) SetCoefficients(cutoffHz, resonance float64, sampleRate int) {
	if b.Type == FilterNone || cutoffHz <= 0 || sampleRate <= 0 {
		return
	}
	if resonance <= 0 {
		resonance = 0.707
	}
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * resonance)

	var b0, b1, b2, a0, a1, a2 float64
	switch b.Type {
	case FilterHighpass:
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	case FilterBandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	default: // FilterLowpass
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW0
		a2 = 1 - alpha
	}
	b.b0, b.b1, b.b2 = b0/a0, b1/a0, b2/a0
	b.a1, b.a2 = a1/a0, a2/a0
}

// Process filters left/right in place over n frames.
func (b *Biquad) Process(left, right []float32, n int) {
	if b.Type == FilterNone {
		return
	}
	for i := 0; i < n; i++ {
		xl := float64(left[i])
		yl := b.b0*xl + b.b1*b.x1L + b.b2*b.x2L - b.a1*b.y1L - b.a2*b.y2L
		b.x2L, b.x1L = b.x1L, xl
		b.y2L, b.y1L = b.y1L, yl
		left[i] = float32(yl)

		xr := float64(right[i])
		yr := b.b0*xr + b.b1*b.x1R + b.b2*b.x2R - b.a1*b.y1R - b.a2*b.y2R
		b.x2R, b.x1R = b.x1R, xr
		b.y2R, b.y1R = b.y1R, yr
		right[i] = float32(yr)
	}
}
