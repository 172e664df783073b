package enginechannel

import "github.com/gosampler/rtengine"

// QueueNoteOff implements spec.md §4.9 step 4's note-off path: while the
// sustain pedal is down, the release is queued as a no-op (the key stays
// audible) until pedal-up; otherwise it queues a release transition into the
// key's pending list immediately.
func (c *Channel) QueueNoteOff(ev rtengine.Event) {
	if c.sustain {
		return
	}
	c.queueTransition(ev.Key, rtengine.Event{Type: rtengine.EventRelease, Key: ev.Key, FragmentPos: ev.FragmentPos})
}

// SetSustain implements the sustain-pedal transitions of spec.md §4.8: pedal
// down holds notes already released from sounding their release stage;
// pedal up releases everything that was only being held by the pedal.
func (c *Channel) SetSustain(down bool, fragmentPos int) {
	if down == c.sustain {
		return
	}
	c.sustain = down
	if down {
		return
	}
	for key := range c.activeByKey {
		if len(c.activeByKey[key]) == 0 {
			continue
		}
		c.queueTransition(key, rtengine.Event{Type: rtengine.EventRelease, Key: key, FragmentPos: fragmentPos})
	}
}

// QueueCancelRelease queues a cancel-release transition (e.g. a repeated
// note-on for a key already fading, or a sustain re-press before the
// release finished) into the key's pending list.
func (c *Channel) QueueCancelRelease(key, fragmentPos int) {
	c.queueTransition(key, rtengine.Event{Type: rtengine.EventCancelRelease, Key: key, FragmentPos: fragmentPos})
}

func (c *Channel) queueTransition(key int, ev rtengine.Event) {
	if key < 0 || key >= len(c.pending) {
		return
	}
	c.pending[key] = append(c.pending[key], ev)
}

// FlushPendingTransitions delivers every queued release/cancel-release event
// to the voices currently sounding on its key, then clears the per-key
// pending lists. Called once per cycle after the event walk, before Render.
func (c *Channel) FlushPendingTransitions() {
	for key := range c.pending {
		events := c.pending[key]
		if len(events) == 0 {
			continue
		}
		c.pending[key] = c.pending[key][:0]
		refs := c.activeByKey[key]
		if len(refs) == 0 {
			continue
		}
		for _, ev := range events {
			for _, slot := range refs {
				v := c.voices.Get(slot)
				switch ev.Type {
				case rtengine.EventRelease:
					v.RequestRelease(ev.FragmentPos)
				case rtengine.EventCancelRelease:
					v.RequestCancelRelease(ev.FragmentPos)
					// A cancel-release means this key was touched again
					// (re-pressed, or held through a sustain pedal
					// re-press) rather than left to fade: it counts as
					// fresh activity for StealLeastRecentlyTriggered.
					c.meta[slot].lastTouch = c.nextSeq
					c.nextSeq++
				}
			}
		}
	}
}

// QueueControlChange appends a CC event to this cycle's list, consumed by
// every active voice's per-sub-fragment scan (spec.md §4.7 step 2). Also
// updates the channel's own controller table so subsequently-triggered
// voices see the latest value.
func (c *Channel) QueueControlChange(ev rtengine.Event) {
	c.SetCC(ev.Controller, uint8(ev.CCValue))
	c.ccEvents = append(c.ccEvents, ev)
}

// QueuePitchBend appends a pitch-bend event to this cycle's list for the
// same fragment-gated per-sub-fragment consumption CC events get (spec.md
// §4.7 step 2's "update pitch-bend" requires sample accuracy exactly like a
// CC move, not an immediate whole-cycle change). Also updates the channel's
// own pitch-bend scalar so voices triggered later this cycle see the latest
// value as their baseline.
func (c *Channel) QueuePitchBend(ev rtengine.Event) {
	c.SetPitchBend(ev.PitchBend)
	c.ccEvents = append(c.ccEvents, ev)
}

// QueueChannelPressure appends a channel-pressure (aftertouch) event to this
// cycle's list so aftertouch-routed LFOs and aftertouch-driven crossfade
// attenuation see it at the sub-fragment it actually landed in (spec.md
// §4.7 step 9's LFORouteAftertouch, step 2's crossfade attenuation). Also
// updates the channel's own aftertouch scalar so voices triggered later this
// cycle see the latest value as their baseline.
func (c *Channel) QueueChannelPressure(ev rtengine.Event) {
	c.SetAftertouch(uint8(ev.Pressure))
	c.ccEvents = append(c.ccEvents, ev)
}
