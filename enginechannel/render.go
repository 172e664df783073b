package enginechannel

import (
	"github.com/viterin/vek/vek32"

	"github.com/gosampler/rtengine/rtpool"
	"github.com/gosampler/rtengine/voice"
)

// RenderCycle implements spec.md §4.9 steps 5-6 for this one channel: every
// live voice renders into the channel's stereo bus, ended voices are
// reclaimed, and this cycle's CC-event list is cleared for the next one.
func (c *Channel) RenderCycle(frames int) {
	c.EnsureBus(frames)
	ch := c.ChannelContext()

	var ended []rtpool.Ref
	c.voices.Each(func(r rtpool.Ref, v *voice.Voice) {
		v.Render(ch, frames, 0, c.outL, c.outR, c.ccEvents)
		if v.State() == voice.StateEnd {
			ended = append(ended, r)
		}
	})

	if len(ended) > 0 {
		c.reclaim(ended)
	}
	c.ccEvents = c.ccEvents[:0]
}

// reclaim frees ended voice slots and removes them from their key's active
// list. Must run after Pool.Each has fully returned (Each's contract
// forbids Free from within its own callback).
func (c *Channel) reclaim(ended []rtpool.Ref) {
	for _, r := range ended {
		key := c.meta[r].key
		refs := c.activeByKey[key]
		for i, other := range refs {
			if other == r {
				c.activeByKey[key] = append(refs[:i], refs[i+1:]...)
				break
			}
		}
		c.voices.Free(r)
	}
}

// MixInto adds this channel's stereo bus into the device-wide output buffers
// (spec.md §4.9 step 6), using the same vectorized accumulate the teacher
// uses for spectrum-band summation.
func (c *Channel) MixInto(outL, outR []float32) {
	vek32.Add_Inplace(outL[:len(c.outL)], c.outL)
	vek32.Add_Inplace(outR[:len(c.outR)], c.outR)
}
