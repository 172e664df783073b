package enginechannel

import (
	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/rtpool"
	"github.com/gosampler/rtengine/voice"
)

// TriggerNoteOn implements spec.md §4.9 step 4's note-on path: resolve a
// region, steal a voice if the pool is exhausted, and apply key-group
// exclusion. ev.FragmentPos must already be resolved. Silently discards the
// note if no region covers the key (ErrNoRegion in spirit; the audio path
// never surfaces an error value for this).
func (c *Channel) TriggerNoteOn(ev rtengine.Event) {
	if c.instrument == nil {
		return
	}
	region := c.selectRegion(ev.Key, ev.Velocity)
	if region == nil {
		return
	}
	c.triggerRegion(ev, region, voice.KindNormal, region.KeyGroup)
}

func (c *Channel) selectRegion(key, velocity int) *rtengine.DimensionRegion {
	for _, r := range c.instrument.RegionsForKey(key) {
		if !r.InRange(key, velocity) {
			continue
		}
		if dr := r.Select(key, velocity, c.CCValue); dr != nil {
			return dr
		}
	}
	return nil
}

// triggerRegion allocates a voice for region, stealing (and queuing a retry)
// if the pool is exhausted, then applies key-group exclusion against every
// other live voice sharing keyGroup.
func (c *Channel) triggerRegion(ev rtengine.Event, region *rtengine.DimensionRegion, kind voice.Kind, keyGroup int) {
	if region == nil || region.Sample == nil || region.Sample.TotalFrames == 0 {
		c.log.Warn("engine: cannot trigger region", "key", ev.Key, "error", rtengine.ErrEmptySample)
		return
	}

	slot := c.voices.Alloc()
	if slot == rtpool.Nil {
		c.stealVictim(ev)
		c.retries = append(c.retries, pendingTrigger{ev: ev, region: region, kind: kind, keyGroup: keyGroup})
		return
	}

	v := c.voices.Get(slot)
	if !v.Trigger(c.ChannelContext(), ev, c.pitchBend, region, kind, keyGroup, c.sampleRate, c.streamMgr) {
		switch {
		case kind == voice.KindReleaseTrigger || kind == voice.KindReleaseTriggerRequired:
			c.log.Debug("engine: release trigger decayed to silence", "key", ev.Key, "error", rtengine.ErrReleaseDecay)
		case region.Sample.CacheFrames < region.Sample.TotalFrames && c.streamMgr == nil:
			c.log.Warn("engine: disk-streamed region needs a stream manager", "key", ev.Key)
		}
		c.voices.Free(slot)
		return
	}
	c.meta[slot] = voiceMeta{key: ev.Key, velocity: ev.Velocity, seq: c.nextSeq, lastTouch: c.nextSeq}
	c.nextSeq++
	c.activeByKey[ev.Key] = append(c.activeByKey[ev.Key], slot)

	if keyGroup != 0 {
		c.killKeyGroupExcept(keyGroup, slot, ev.FragmentPos)
	}
}

// killKeyGroupExcept issues a regular kill, targeted at fragmentPos, to
// every live voice sharing keyGroup other than exceptSlot (spec.md §4.8).
func (c *Channel) killKeyGroupExcept(keyGroup int, exceptSlot rtpool.Ref, fragmentPos int) {
	for key := range c.activeByKey {
		for _, slot := range c.activeByKey[key] {
			if slot == exceptSlot {
				continue
			}
			v := c.voices.Get(slot)
			if v.KeyGroup() == keyGroup {
				v.RequestKill(fragmentPos)
			}
		}
	}
}

// stealVictim picks a voice per c.stealPolicy and issues a regular kill at
// the stealing event's fragment offset. Its slot only becomes available on a
// later cycle once the kill's fade has run the voice to state End and
// RenderCycle has reclaimed it (spec.md §4.9: "retry allocation after
// the kill completes").
func (c *Channel) stealVictim(ev rtengine.Event) {
	var (
		victim rtpool.Ref
		best   voiceMeta
		found  bool
	)
	c.voices.Each(func(r rtpool.Ref, v *voice.Voice) {
		m := c.meta[r]
		if !found {
			victim, best, found = r, m, true
			return
		}
		switch c.stealPolicy {
		case StealLowestVelocity:
			if m.velocity < best.velocity {
				victim, best = r, m
			}
		case StealLeastRecentlyTriggered:
			if m.lastTouch < best.lastTouch {
				victim, best = r, m
			}
		default: // StealOldest: rank by initial trigger order
			if m.seq < best.seq {
				victim, best = r, m
			}
		}
	})
	if !found {
		return
	}
	c.voices.Get(victim).RequestKill(ev.FragmentPos)
}

// RetryPendingTriggers re-attempts note-ons that previously lost the voice
// stealing race, called once per cycle before new events are walked
// (spec.md §4.9: "retry allocation after the kill completes").
func (c *Channel) RetryPendingTriggers() {
	if len(c.retries) == 0 {
		return
	}
	pending := c.retries
	c.retries = nil
	for _, p := range pending {
		c.triggerRegion(p.ev, p.region, p.kind, p.keyGroup)
	}
}
