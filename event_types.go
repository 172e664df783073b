package rtengine

// EventType tags the Event union (spec.md §3, grounded on
// original_source/src/engines/common/Event.h's Event::type_t).
type EventType int

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventCancelRelease
	EventRelease
	EventControlChange
	EventPitchBend
	EventChannelPressure
	EventPolyAftertouch
	EventSysex
)

// Event is a tagged union of every MIDI-derived occurrence the engine
// consumes. Every event carries a fragment-relative sample offset resolved
// by package schedule from its originating wall-clock timestamp; FragmentPos
// is always in [0, cycleFrames) once resolved (spec.md §3 invariant).
type Event struct {
	Type    EventType
	Channel int // MIDI channel, 0-15

	// Note-on / note-off / cancel-release / release fields.
	Key      int
	Velocity int
	Region   *Region // resolved region for note-on; nil otherwise

	// Control-change fields.
	Controller int
	CCValue    int

	// Pitch-bend field, -8192..+8191.
	PitchBend int

	// Channel-pressure / poly-aftertouch value.
	Pressure int

	// Sysex payload.
	SysexData []byte

	// WallClockNanos is the originating timestamp, in nanoseconds since an
	// arbitrary epoch shared with schedule.Generator. Resolved into
	// FragmentPos by schedule.Generator.Resolve; -1 means "already resolved
	// directly to a fragment position" (set by sources that already know
	// the sample offset, such as vstadapter's delta-frame MIDI events).
	WallClockNanos int64

	// FragmentPos is the sample offset within the current audio cycle this
	// event applies at. Set by schedule.Generator.Resolve.
	FragmentPos int
}

// AudioOutput is the audio driver collaborator (spec.md §6): it supplies the
// sample rate, the maximum frames the engine will ever be asked to render in
// one cycle, and a pair of per-cycle output buffers the engine writes into.
type AudioOutput interface {
	SampleRate() int
	MaxFramesPerCycle() int
	// Buffers returns the left/right buffers for the next cycle, each
	// exactly frames long. The engine overwrites them completely; the
	// caller is responsible for device-level submission afterward.
	Buffers(frames int) (left, right []float32)
}

// MIDIInput is the MIDI transport collaborator (spec.md §6): a per-channel
// SPSC source of Events with wall-clock stamps.
type MIDIInput interface {
	// Drain appends all currently queued events for the given MIDI channel
	// into dst and returns the extended slice. Must not block.
	Drain(channel int, dst []Event) []Event
}

// InstrumentProvider loads a Region/DimensionRegion/Sample graph from a file
// path plus an implementation-defined index (spec.md §6). Instrument-file
// parsing itself is out of the core's scope; this interface is the seam.
type InstrumentProvider interface {
	LoadInstrument(path string, index int) (*Instrument, error)
}
