package voice

// RequestKill schedules a regular (fade) kill: the voice keeps rendering
// whatever's already in flight until atFragmentPos, then Render fades it out
// over a near-instant release and transitions to state End (spec.md §4.7).
func (v *Voice) RequestKill(atFragmentPos int) {
	v.killPending = true
	v.killAtFragmentPos = atFragmentPos
}

// RequestRelease schedules a natural note-off: at atFragmentPos the
// amplitude and filter envelopes enter their release segment from whatever
// level they currently hold, rather than the RequestKill's forced fast fade.
func (v *Voice) RequestRelease(atFragmentPos int) {
	v.releasePending = true
	v.releaseAtFragmentPos = atFragmentPos
}

// RequestCancelRelease reverts a still-releasing voice back to its sustain
// plateau, used when a sustain-pedal-down arrives after note-off but before
// the release segment finishes.
func (v *Voice) RequestCancelRelease(atFragmentPos int) {
	v.cancelReleasePending = true
	v.cancelReleaseAtFragmentPos = atFragmentPos
}

// KillPending reports whether a regular (fade) kill has been scheduled via
// RequestKill but not yet applied.
func (v *Voice) KillPending() bool { return v.killPending }

// KillImmediate ends the voice with no fade and cancels any pending stream
// order. Valid only when no audio from this voice is still in flight this
// cycle (i.e. before Render has been called for it), unlike RequestKill
// which is safe to schedule mid-cycle.
func (v *Voice) KillImmediate() {
	if v.isDiskVoice && v.streamMgr != nil {
		v.streamMgr.OrderDeletion(v.streamRef)
	}
	v.state = StateEnd
}
