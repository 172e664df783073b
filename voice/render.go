package voice

import (
	"math"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/modulate"
	"github.com/viterin/vek/vek32"
)

// Render implements the render contract of spec.md §4.7: divides the cycle
// into fixed sub-fragments, and for each one runs the CC/pitch-bend scan,
// transition-event application, envelope/LFO advance, filter recompute, and
// synthesis call, accumulating into outL/outR starting at outOffset.
// ccEvents is this cycle's already-fragment-resolved CC/pitch-bend events
// (any channel-wide list; Render filters to the ones landing in each
// sub-fragment). Returns the number of frames actually rendered, which is
// less than frames only if the voice reaches state End mid-cycle.
func (v *Voice) Render(ch ChannelContext, frames int, outOffset int, outL, outR []float32, ccEvents []rtengine.Event) int {
	if v.state == StateEnd {
		return 0
	}
	if v.state == StateInit {
		v.state = StateRAM
	}

	rendered := 0
	for rendered < frames && v.state != StateEnd {
		n := SubFragmentSize
		if n > frames-rendered {
			n = frames - rendered
		}
		fragBase := outOffset + rendered

		// Step 1: initialize final volume for this sub-fragment (final
		// pitch is computed after step 2, once this sub-fragment's own
		// pitch-bend events, if any, have been applied).
		finalVolume := v.volume * v.crossfadeVol
		if ch.Muted {
			finalVolume = 0
		} else {
			finalVolume *= ch.GlobalVolume
		}
		cutoffFactor := 1.0

		// Step 2: process CC / pitch-bend / aftertouch events landing in
		// this sub-fragment. Each LFO's external depth only reacts to its
		// own routed controller (spec.md §4.7 step 9's enumeration), and
		// cutoff-CC/resonance-CC/crossfade-attenuation only react to the
		// controller number the region actually routed them to at Trigger.
		for _, ev := range ccEvents {
			if ev.FragmentPos < fragBase || ev.FragmentPos >= fragBase+n {
				continue
			}
			switch ev.Type {
			case rtengine.EventControlChange:
				if cc, _ := v.lfo1.ControllerNumber(); cc == ev.Controller {
					v.lfo1.Update(ev.CCValue)
				}
				if cc, _ := v.lfo2.ControllerNumber(); cc == ev.Controller {
					v.lfo2.Update(ev.CCValue)
				}
				if cc, _ := v.lfo3.ControllerNumber(); cc == ev.Controller {
					v.lfo3.Update(ev.CCValue)
				}
				if v.cutoffController >= 0 && ev.Controller == v.cutoffController {
					v.cutoffCtlVal = float64(ev.CCValue) / 127
				}
				if v.resonanceController >= 0 && ev.Controller == v.resonanceController {
					v.resonanceVal = float64(ev.CCValue) / 127
				}
				if v.attenCtl.Kind == rtengine.AttenuationControlChange && ev.Controller == int(v.attenCtl.CC) {
					v.crossfadeVol = attenuationFromValue(v.attenCtl, float64(ev.CCValue)/127)
				}
			case rtengine.EventChannelPressure:
				if _, at := v.lfo1.ControllerNumber(); at {
					v.lfo1.Update(ev.Pressure)
				}
				if _, at := v.lfo2.ControllerNumber(); at {
					v.lfo2.Update(ev.Pressure)
				}
				if _, at := v.lfo3.ControllerNumber(); at {
					v.lfo3.Update(ev.Pressure)
				}
				if v.attenCtl.Kind == rtengine.AttenuationChannelAftertouch {
					v.crossfadeVol = attenuationFromValue(v.attenCtl, float64(ev.Pressure)/127)
				}
			case rtengine.EventPitchBend:
				v.bendUnits = ev.PitchBend
			}
		}

		finalPitch := v.pitchBase * pitchBendRatio(v.bendUnits)

		// Step 3: process pending transition events (release, cancel-release).
		if v.releasePending && v.releaseAtFragmentPos >= fragBase && v.releaseAtFragmentPos < fragBase+n {
			v.ampEG.Release()
			v.filterEG.Release()
			v.releasePending = false
		}
		if v.cancelReleasePending && v.cancelReleaseAtFragmentPos >= fragBase && v.cancelReleaseAtFragmentPos < fragBase+n {
			v.ampEG.CancelRelease()
			v.filterEG.CancelRelease()
			v.cancelReleasePending = false
		}
		if v.killPending && v.killAtFragmentPos >= fragBase && v.killAtFragmentPos < fragBase+n {
			v.forceFastFadeDown()
			v.killPending = false
		}

		// Step 4: advance envelopes.
		finalVolume *= v.ampEG.Process(n)
		cutoffFactor *= v.filterEG.Process(n)
		finalPitch *= v.pitchEG.Process(n)

		// Step 5: multiply enabled LFOs into their target parameter.
		if v.lfo1.Enabled() {
			finalVolume *= 1 + v.lfo1.Render()
		}
		if v.lfo2.Enabled() {
			cutoffFactor *= 1 + v.lfo2.Render()
		}
		if v.lfo3.Enabled() {
			finalPitch *= 1 + v.lfo3.Render()
		}

		// Step 6: recompute filter coefficients from the current cutoff and
		// resonance, combining the same velocity/cutoff-CC base the trigger
		// contract's step 10 established (live-updated by step 2 whenever
		// the routed cutoff/resonance CC moves) with the EG/LFO cutoffFactor.
		if v.filter.Type != FilterNone {
			combined := (v.cutoffVelComponent + v.cutoffCtlVal) / 2
			if v.invertCutoff {
				combined = 1 - combined
			}
			combined = clamp01(combined)
			base := math.Exp(combined*math.Log(v.cutoffMax/v.cutoffMin)) * v.cutoffMin
			cutoff := base * cutoffFactor
			if cutoff < v.cutoffMin {
				cutoff = v.cutoffMin
			}
			if cutoff > v.cutoffMax {
				cutoff = v.cutoffMax
			}
			v.filter.SetCoefficients(cutoff, v.resonanceVal, v.engineSampleRate)
		}

		// Step 7/8: renderSubFragment itself decides, per spec.md §4.7 step
		// 7, whether finalPitch is within ±1 cent of unity and takes the
		// direct-copy path if so, else runs the interpolating synthesis
		// routine into scratch; then apply gain and filter, and sum into the
		// channel bus (multiple voices share it).
		left, right := v.scratchL[:n], v.scratchR[:n]
		v.renderSubFragment(finalPitch, n, left, right)
		vek32.MulNumber_Inplace(left, float32(finalVolume*v.panL))
		vek32.MulNumber_Inplace(right, float32(finalVolume*v.panR))
		v.filter.Process(left, right, n)
		vek32.Add_Inplace(outL[fragBase:fragBase+n], left)
		vek32.Add_Inplace(outR[fragBase:fragBase+n], right)

		rendered += n
		if v.ampEG.Stage() == modulate.StageOff {
			v.state = StateEnd
		}
	}
	return rendered
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func pitchBendRatio(bendUnits int) float64 {
	// +/-8192 maps to +/-2 semitones, a conventional pitch-bend range.
	semis := float64(bendUnits) / 8192 * 2
	return centsToFreqRatio(semis * 100)
}

// forceFastFadeDown implements the regular-kill fade of spec.md §4.7: the
// voice keeps rendering until the kill's fragment offset, then the
// amplitude envelope is re-triggered with a near-instant release so the
// contribution vanishes within about one sub-fragment.
func (v *Voice) forceFastFadeDown() {
	p := v.ampEG.CurrentParams()
	p.ReleaseSeconds = float64(SubFragmentSize) / float64(v.engineSampleRate)
	p.InfiniteSustain = true // avoid re-triggering the finite-sustain auto-release path
	v.ampEG.Trigger(p, v.engineSampleRate)
	v.ampEG.Release()
}

func (v *Voice) renderSubFragment(pitch float64, n int, left, right []float32) {
	switch v.state {
	case StateRAM:
		v.renderFromCache(pitch, n, left, right)
	case StateDisk:
		v.renderFromStream(pitch, n, left, right)
	}
}

func (v *Voice) renderFromCache(pitch float64, n int, left, right []float32) {
	cache := v.sample.Cache
	channels := sampleChannelsOf(v.sample)
	safeLimit := float64(v.sample.CacheFrames - v.sample.TrailerFrames)

	if v.ramLoopActive {
		v.renderLoopedFromCache(cache, channels, pitch, n, left, right)
		return
	}

	if UnityPitch(pitch) {
		v.resamp.RenderUnity(cache, channels, left, right, n)
	} else {
		v.resamp.Render(cache, channels, pitch, left, right, n)
	}

	if v.isDiskVoice && v.resamp.FracPos > safeLimit {
		v.state = StateDisk
	} else if !v.isDiskVoice && v.resamp.FracPos >= float64(v.sample.CacheFrames) {
		v.state = StateEnd
	}
}

func (v *Voice) renderLoopedFromCache(cache []float32, channels int, pitch float64, n int, left, right []float32) {
	unity := UnityPitch(pitch)
	for i := 0; i < n; i++ {
		if v.resamp.FracPos >= float64(v.ramLoopEnd) {
			v.resamp.FracPos -= float64(v.ramLoopEnd - v.ramLoopStart)
		}
		idx := int(v.resamp.FracPos)
		srcFrames := len(cache) / channels
		if idx+1 >= srcFrames {
			left[i], right[i] = 0, 0
			v.resamp.FracPos += pitch
			continue
		}
		if unity {
			left[i], right[i] = directFrame(cache, channels, idx)
			v.resamp.FracPos += 1
			continue
		}
		frac := v.resamp.FracPos - float64(idx)
		left[i], right[i] = interpolateFrame(cache, channels, idx, frac)
		v.resamp.FracPos += pitch
	}
}

// renderFromStream mirrors renderFromCache's resampling but against the
// stream's ring buffer instead of the RAM cache. Unlike the cache, a
// Stream.Read always fully drains whatever length it's handed (padding any
// shortfall with silence, never leaving frames behind for next time), so
// this method itself must carry any source frames read-but-not-yet-consumed
// forward across calls in streamBuf/streamAvail, and must size each read
// proportional to pitch: at pitch > 1 every output frame consumes more than
// one source frame, and reading a fixed n would let the resampler run past
// what was actually fetched, or (as read from a fresh Resampler{} each
// call) silently desync the stream's cursor from playback position.
func (v *Voice) renderFromStream(pitch float64, n int, left, right []float32) {
	s, ready := v.streamMgr.AskForCreatedStream(v.streamRef)
	if !ready {
		// The RAM cache's trailer still covers this sub-fragment by
		// construction (spec.md §4.4 preload-sizing invariant).
		v.renderFromCache(pitch, n, left, right)
		return
	}
	channels := s.Channels()

	// wantFrames is how many source frames, from the start of the
	// (carry-over + freshly-read) buffer, this call needs available: n
	// output frames at pitch consume ~n*pitch source frames, plus two
	// frames: one for the carried fractional start and one of
	// interpolation lookahead.
	wantFrames := int(math.Ceil(float64(n)*pitch)) + 2
	if wantFrames < v.streamAvail {
		wantFrames = v.streamAvail
	}
	readFrames := wantFrames - v.streamAvail
	if readFrames < 0 {
		readFrames = 0
	}

	carryLen := v.streamAvail * channels
	need := (v.streamAvail + readFrames) * channels
	if cap(v.streamBuf) < need {
		grown := make([]float32, need)
		copy(grown, v.streamBuf[:carryLen])
		v.streamBuf = grown
	}
	buf := v.streamBuf[:need]

	if readFrames > 0 {
		s.Read(buf[carryLen:need])
	}

	if UnityPitch(pitch) {
		v.streamResamp.RenderUnity(buf, channels, left, right, n)
	} else {
		v.streamResamp.Render(buf, channels, pitch, left, right, n)
	}

	// Shift whatever streamResamp didn't consume to the buffer's front,
	// carrying its fractional position along, so next call resumes
	// exactly where this one left off.
	srcFrames := need / channels
	consumed := int(v.streamResamp.FracPos)
	if consumed > srcFrames {
		consumed = srcFrames
	}
	frac := v.streamResamp.FracPos - float64(consumed)
	remaining := srcFrames - consumed
	copy(v.streamBuf[:remaining*channels], buf[consumed*channels:need])
	v.streamAvail = remaining
	v.streamResamp.FracPos = frac

	// The disk goroutine has produced the stream's real tail and the ring
	// is drained: this sub-fragment played the last of it.
	if s.AtEnd() {
		v.state = StateEnd
	}
}
