// Package rtengine implements the real-time core of a polyphonic, streaming
// software sampler: the pipeline that turns a stream of timestamped MIDI
// events into a continuous multi-channel audio signal by playing back and
// modulating sampled instruments.
//
// This root package holds the format-agnostic data model (Sample, Region,
// Instrument, Event) and the collaborator interfaces external subsystems
// (instrument-file parsing, MIDI transport, audio output, the instrument
// database) must implement. The concrete rendering engine lives in the
// sibling packages (syncrt, rtpool, resource, stream, schedule, modulate,
// voice, enginechannel, engine).
package rtengine

// Loop describes a sample's playback loop.
type Loop struct {
	Start     int64 // first frame of the loop, inclusive
	End       int64 // first frame past the loop, exclusive: playback wraps to Start on reaching End
	Size      int64 // End - Start, cached for convenience
	PlayCount int   // 0 means infinite
}

// Sample is an immutable asset: a decoded audio source plus a RAM-resident
// prefix cache sized for the worst-case interpolator lookahead. Identity is
// the source path plus any offset/end sub-range (see Key).
type Sample struct {
	Path        string
	Offset      int64
	End         int64 // 0 means "to end of source"
	SampleRate  int
	Channels    int   // 1 or 2
	TotalFrames int64
	FrameSize   int // bytes per frame (all channels)
	Loop        *Loop

	// Cache holds the first CacheFrames frames of audio, followed by a
	// zero-padded trailer of TrailerFrames frames sized for the largest
	// consumer's interpolator lookahead. Interleaved by channel, one
	// float32 sample per channel per frame.
	Cache        []float32
	CacheFrames  int64
	TrailerFrames int64
}

// Key identifies a Sample for the resource manager: at most one cache entry
// exists per (path, offset, end) triple.
type Key struct {
	Path   string
	Offset int64
	End    int64
}

// SampleKey returns s's resource-manager identity.
func (s *Sample) SampleKey() Key {
	return Key{Path: s.Path, Offset: s.Offset, End: s.End}
}

// FullyCached reports whether the entire sample fits in the RAM cache, i.e.
// this sample never requires disk streaming.
func (s *Sample) FullyCached() bool {
	return s.CacheFrames >= s.TotalFrames
}

// AttenuationControllerKind selects what drives a region's crossfade
// attenuation curve (spec.md glossary: "Crossfade attenuation").
type AttenuationControllerKind int

const (
	AttenuationNone AttenuationControllerKind = iota
	AttenuationVelocity
	AttenuationControlChange
	AttenuationChannelAftertouch
)

// AttenuationController describes one such curve driver.
type AttenuationController struct {
	Kind       AttenuationControllerKind
	CC         uint8 // meaningful only when Kind == AttenuationControlChange
	Invert     bool
	ThresholdLow, ThresholdHigh int // curve clamp bounds, region-defined units
}

// LFOControllerRoute selects which MIDI controller feeds an LFO's external
// depth (spec.md §4.6).
type LFOControllerRoute int

const (
	LFORouteInternalOnly LFOControllerRoute = iota
	LFORouteModWheel
	LFORouteBreath
	LFORouteFoot
	LFORouteAftertouch
	LFORouteInternalPlusModWheel
	LFORouteInternalPlusBreath
	LFORouteInternalPlusFoot
	LFORouteInternalPlusAftertouch
)

// ControllerNumber reports the MIDI CC number (-1 if none) and whether
// channel aftertouch feeds this route's external depth, per spec.md §4.7
// step 9's enumeration (internal-only, modwheel, breath, foot, aftertouch,
// or internal+one-of-the-above). CC numbers follow the conventional MIDI
// assignments (1=modwheel, 2=breath, 4=foot).
func (r LFOControllerRoute) ControllerNumber() (cc int, aftertouch bool) {
	switch r {
	case LFORouteModWheel, LFORouteInternalPlusModWheel:
		return 1, false
	case LFORouteBreath, LFORouteInternalPlusBreath:
		return 2, false
	case LFORouteFoot, LFORouteInternalPlusFoot:
		return 4, false
	case LFORouteAftertouch, LFORouteInternalPlusAftertouch:
		return -1, true
	default:
		return -1, false
	}
}

// EnvelopeCurve is the per-region shape used by an ADSR-style modulator; the
// core does not hard-code linear or exponential segments (spec.md §9 open
// question), each DimensionRegion supplies its own.
type EnvelopeCurve int

const (
	CurveLinear EnvelopeCurve = iota
	CurveExponential
)

// EnvelopeParams bundles the eight ADSR-style parameters from spec.md §4.6.
type EnvelopeParams struct {
	Curve            EnvelopeCurve
	PreAttackLevel   float64 // 0..1
	AttackSeconds    float64
	HoldFrames       int64
	Decay1Seconds    float64
	Decay2Seconds    float64
	InfiniteSustain  bool
	SustainLevel     float64
	ReleaseSeconds   float64
}

// DecayEnvelopeParams parameterizes the single-stage pitch decay envelope.
type DecayEnvelopeParams struct {
	DepthCents    float64
	AttackSeconds float64
}

// LFOParams bundles LFO trigger-time inputs (spec.md §4.6).
type LFOParams struct {
	Signed         bool
	FrequencyHz    float64
	StartMax       bool // true=start at +max, mutually exclusive with StartMin
	StartMin       bool // true=start at -max/0
	InternalDepth  float64
	ExternalRoute  LFOControllerRoute
	ExternalDepth  float64
	FlipPhase      bool
}

// FilterType enumerates the biquad topologies a region may request.
type FilterType int

const (
	FilterNone FilterType = iota
	FilterLowpass
	FilterHighpass
	FilterBandpass
)

// FilterParams bundles a region's filter configuration.
type FilterParams struct {
	Type              FilterType
	CutoffHz          float64
	CutoffMinHz       float64
	CutoffMaxHz       float64
	Resonance         float64
	CutoffController  int  // MIDI CC number, or -1 if none
	ResonanceController int // MIDI CC number, or -1 if none
	InvertCutoff      bool
}

// DimensionRegion is an immutable articulation descriptor: a bundle of DSP
// parameters selected at trigger time from a Region's dimension table by
// controller/velocity values.
type DimensionRegion struct {
	Sample *Sample

	SampleStartOffset int64 // initial playback position, frames from sample start
	UnityNote         int   // MIDI key that plays the sample at its native pitch
	FineTuneCents     float64
	PitchTrack        bool
	ScaleTuning       [12]float64 // per-semitone cents offset, index = key % 12

	VelocityAttenuationTable [128]float64 // velocity -> multiplicative attenuation
	SampleAttenuation        float64
	Pan                      float64 // -1..1

	AmpEG    EnvelopeParams
	FilterEG EnvelopeParams
	PitchEG  DecayEnvelopeParams

	LFO1, LFO2, LFO3 LFOParams

	Filter FilterParams

	AttenuationCtl AttenuationController
	EG1Ctl         AttenuationController // controller influencing EG1 attack/decay/release scaling
	EG2Ctl         AttenuationController

	KeyGroup int // 0 means "no exclusion class"

	ReleaseTriggerDecay float64 // multiplicative decay applied for release-trigger voices
}

// Region is a key/velocity-range articulation entry that selects one
// DimensionRegion at trigger time.
type Region struct {
	LowKey, HighKey     int
	LowVelocity, HighVelocity int
	Dimensions          []*DimensionRegion

	// SelectFunc, if set, overrides the default (first-dimension) selection
	// behavior of Select. Kept as a field rather than a required interface
	// method so a plain flat Region (one DimensionRegion) needs no
	// boilerplate.
	SelectFunc regionSelectFunc
}

// InRange reports whether key/velocity fall within this region's ranges.
func (r *Region) InRange(key, velocity int) bool {
	return key >= r.LowKey && key <= r.HighKey &&
		velocity >= r.LowVelocity && velocity <= r.HighVelocity
}

// Select picks the DimensionRegion for the given controller table snapshot
// and velocity. The default implementation is velocity-only; instrument
// providers supplying multi-dimensional gig-style regions replace this via
// SelectFunc.
func (r *Region) Select(key, velocity int, ccValue func(cc int) uint8) *DimensionRegion {
	if r.SelectFunc != nil {
		return r.SelectFunc(key, velocity, ccValue)
	}
	if len(r.Dimensions) == 0 {
		return nil
	}
	return r.Dimensions[0]
}

type regionSelectFunc = func(key, velocity int, ccValue func(cc int) uint8) *DimensionRegion

// Instrument is an ordered collection of Regions with a key->candidate-region
// lookup built once at load time.
type Instrument struct {
	Name    string
	Regions []*Region

	keyIndex [128][]*Region
}

// BuildIndex populates the key->region lookup table. Must be called once
// after Regions is fully populated and before the Instrument is published
// to the audio thread.
func (i *Instrument) BuildIndex() {
	for k := 0; k < 128; k++ {
		i.keyIndex[k] = i.keyIndex[k][:0]
	}
	for _, r := range i.Regions {
		lo, hi := r.LowKey, r.HighKey
		if lo < 0 {
			lo = 0
		}
		if hi > 127 {
			hi = 127
		}
		for k := lo; k <= hi; k++ {
			i.keyIndex[k] = append(i.keyIndex[k], r)
		}
	}
}

// RegionsForKey returns the candidate regions for a MIDI key, as built by
// BuildIndex.
func (i *Instrument) RegionsForKey(key int) []*Region {
	if key < 0 || key > 127 {
		return nil
	}
	return i.keyIndex[key]
}
