// Package voice implements the per-note state machine that combines a
// sample source, the modulate package's envelopes/LFOs, an optional biquad
// filter, and an interpolating resampler into a rendered sub-fragment of
// audio (spec.md §4.7). Grounded on
// original_source/src/engines/gig/Voice.cpp's Trigger/Render methods for
// the ordering of steps, generalized away from that file's gig-specific
// inheritance per spec.md §9's "replace with tagged voice kind + composition"
// redesign flag.
package voice

// Resampler performs linear interpolation of a mono or interleaved-stereo
// source at an arbitrary (possibly time-varying) pitch ratio, advancing a
// fractional read position across calls. This is the "synthesis routine"
// of spec.md §4.7 step 8, reduced to its RAM-cache/ring-buffer-agnostic
// core: callers hand it a flat source slice and get back the number of
// source frames it consumed.
type Resampler struct {
	FracPos float64 // fractional position within the source, in frames
}

// Render writes n raw (unscaled) output frames from src (interleaved,
// channels wide) into left/right at pitch ratio, starting at r.FracPos, and
// returns the number of whole source frames consumed. Loop wrapping is the
// caller's responsibility (RAM-loop or stream-based, per spec.md §4.7);
// Render writes silence for any tail beyond the source's end. Volume/pan
// gain is applied by the caller afterward via a vectorized buffer scale
// (see voice/render.go), not per-sample here.
func (r *Resampler) Render(src []float32, channels int, pitch float64, left, right []float32, n int) int {
	srcFrames := len(src) / channels
	startFrame := int(r.FracPos)
	for i := 0; i < n; i++ {
		idx := int(r.FracPos)
		if idx+1 >= srcFrames {
			left[i] = 0
			right[i] = 0
			r.FracPos += pitch
			continue
		}
		frac := r.FracPos - float64(idx)
		l, rr := interpolateFrame(src, channels, idx, frac)
		left[i] = l
		right[i] = rr
		r.FracPos += pitch
	}
	return int(r.FracPos) - startFrame
}

// interpolateFrame linearly interpolates the left/right samples at frame
// index idx and fractional offset frac (0..1) into the next frame.
func interpolateFrame(src []float32, channels, idx int, frac float64) (l, rgt float32) {
	a0 := frameAt(src, channels, idx, 0)
	a1 := frameAt(src, channels, idx+1, 0)
	l = a0 + float32(frac)*(a1-a0)
	if channels < 2 {
		return l, l
	}
	b0 := frameAt(src, channels, idx, 1)
	b1 := frameAt(src, channels, idx+1, 1)
	rgt = b0 + float32(frac)*(b1-b0)
	return l, rgt
}

// directFrame reads the left/right samples at frame index idx verbatim, with
// no interpolation: the direct-copy half of spec.md §4.7 step 7's "skip
// resampling within ±1 cent of unity" (see UnityPitch).
func directFrame(src []float32, channels, idx int) (l, rgt float32) {
	l = frameAt(src, channels, idx, 0)
	if channels < 2 {
		return l, l
	}
	rgt = frameAt(src, channels, idx, 1)
	return l, rgt
}

func frameAt(src []float32, channels, frame, ch int) float32 {
	i := frame*channels + ch
	if i < 0 || i >= len(src) {
		return 0
	}
	return src[i]
}

// UnityPitch is within ±1 cent of 1.0; spec.md §4.7 step 7 skips resampling
// entirely at this ratio (direct copy).
func UnityPitch(pitch float64) bool {
	const centRatio = 1.0005777895065548 // 2^(1/1200)
	return pitch > 1.0/centRatio && pitch < centRatio
}

// RenderUnity is Render's direct-copy counterpart for when UnityPitch(pitch)
// holds: one source frame per output frame, no interpolation. r.FracPos is
// truncated to its integer part as a side effect, which is harmless since a
// unity-pitch voice never accumulates a fraction worth preserving.
func (r *Resampler) RenderUnity(src []float32, channels int, left, right []float32, n int) int {
	srcFrames := len(src) / channels
	startFrame := int(r.FracPos)
	idx := startFrame
	for i := 0; i < n; i++ {
		if idx+1 >= srcFrames {
			left[i] = 0
			right[i] = 0
		} else {
			left[i], right[i] = directFrame(src, channels, idx)
		}
		idx++
	}
	r.FracPos = float64(idx)
	return idx - startFrame
}
