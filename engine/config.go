package engine

import (
	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/enginechannel"
)

// ChannelRoute is one MIDI channel's persisted routing state: which
// instrument it plays and which voice-steal policy governs it (spec.md §6's
// "persisted state... loaded by the control collaborator and pushed through
// the config double-buffer").
type ChannelRoute struct {
	Instrument  *rtengine.Instrument
	StealPolicy enginechannel.VoiceStealPolicy
}

// RoutingTable is the value type carried by the engine's
// syncrt.DoubleBuffer: a snapshot of every channel's route, replaced
// wholesale by the control thread on each config switch.
type RoutingTable struct {
	Channels [16]ChannelRoute
}
