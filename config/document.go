// Package config loads persisted routing state — which instrument each
// channel plays, its voice-steal policy, and the regions/samples an
// instrument is built from — from YAML, the same way the teacher's tracker
// persists song and instrument files (tracker/files.go's
// yaml.Unmarshal/yaml.Marshal over gopkg.in/yaml.v3). A Loader turns a parsed
// Document into an engine.RoutingTable, decoding referenced WAV files
// through sampleio and caching them in a resource.Manager, so the same
// sample is decoded once no matter how many regions reference it.
package config

// EnvelopeDoc mirrors rtengine.EnvelopeParams in YAML-friendly form. A
// zero-value EnvelopeDoc (the field omitted entirely from a region) means
// "no envelope": buildEnvelope maps it to an infinite, full-level sustain
// rather than instant silence.
type EnvelopeDoc struct {
	Curve           string  `yaml:"curve,omitempty"`
	PreAttackLevel  float64 `yaml:"preAttackLevel,omitempty"`
	AttackSeconds   float64 `yaml:"attack,omitempty"`
	HoldFrames      int64   `yaml:"hold,omitempty"`
	Decay1Seconds   float64 `yaml:"decay1,omitempty"`
	Decay2Seconds   float64 `yaml:"decay2,omitempty"`
	InfiniteSustain bool    `yaml:"infiniteSustain,omitempty"`
	SustainLevel    float64 `yaml:"sustain,omitempty"`
	ReleaseSeconds  float64 `yaml:"release,omitempty"`
}

// LoopDoc mirrors rtengine.Loop.
type LoopDoc struct {
	Start     int64 `yaml:"start"`
	End       int64 `yaml:"end"`
	PlayCount int   `yaml:"playCount,omitempty"`
}

// FilterDoc mirrors rtengine.FilterParams.
type FilterDoc struct {
	Type                string  `yaml:"type,omitempty"` // "lowpass" | "highpass" | "bandpass"
	CutoffHz            float64 `yaml:"cutoff,omitempty"`
	CutoffMinHz         float64 `yaml:"cutoffMin,omitempty"`
	CutoffMaxHz         float64 `yaml:"cutoffMax,omitempty"`
	Resonance           float64 `yaml:"resonance,omitempty"`
	CutoffController    int     `yaml:"cutoffController,omitempty"`
	ResonanceController int     `yaml:"resonanceController,omitempty"`
	InvertCutoff        bool    `yaml:"invertCutoff,omitempty"`
}

// ControllerDoc mirrors rtengine.AttenuationController.
type ControllerDoc struct {
	Kind   string `yaml:"kind,omitempty"` // "velocity" | "cc" | "aftertouch"
	CC     uint8  `yaml:"cc,omitempty"`
	Invert bool   `yaml:"invert,omitempty"`
}

// DimensionRegionDoc mirrors rtengine.DimensionRegion, minus the fields
// (LFOs, pitch EG) an instrument author rarely needs to hand-author; those
// keep their model zero values (no vibrato, no pitch envelope) unless set.
type DimensionRegionDoc struct {
	SamplePath        string        `yaml:"sample"`
	UnityNote         int           `yaml:"unityNote"`
	FineTuneCents     float64       `yaml:"fineTune,omitempty"`
	PitchTrack        bool          `yaml:"pitchTrack"`
	Pan               float64       `yaml:"pan,omitempty"`
	SampleAttenuation float64       `yaml:"attenuation,omitempty"`
	VelocityCurve     string        `yaml:"velocityCurve,omitempty"` // "flat" (default) | "linear"
	AmpEG             EnvelopeDoc   `yaml:"ampEG,omitempty"`
	FilterEG          EnvelopeDoc   `yaml:"filterEG,omitempty"`
	Filter            FilterDoc     `yaml:"filter,omitempty"`
	AttenuationCtl    ControllerDoc `yaml:"attenuationController,omitempty"`
	EG1Ctl            ControllerDoc `yaml:"eg1Controller,omitempty"`
	EG2Ctl            ControllerDoc `yaml:"eg2Controller,omitempty"`
	KeyGroup          int           `yaml:"keyGroup,omitempty"`
	Loop              *LoopDoc      `yaml:"loop,omitempty"`
}

// RegionDoc mirrors rtengine.Region.
type RegionDoc struct {
	LowKey       int                  `yaml:"lowKey"`
	HighKey      int                  `yaml:"highKey"`
	LowVelocity  int                  `yaml:"lowVelocity,omitempty"`
	HighVelocity int                  `yaml:"highVelocity,omitempty"`
	Dimensions   []DimensionRegionDoc `yaml:"dimensions"`
}

// InstrumentDoc mirrors rtengine.Instrument.
type InstrumentDoc struct {
	Name    string      `yaml:"name,omitempty"`
	Regions []RegionDoc `yaml:"regions"`
}

// ChannelDoc is one MIDI channel's routing entry.
type ChannelDoc struct {
	Instrument  string `yaml:"instrument,omitempty"`
	StealPolicy string `yaml:"stealPolicy,omitempty"` // "oldest" (default) | "lowestVelocity" | "leastRecentlyTriggered"
}

// Document is the top-level routing file: named instrument definitions plus
// a channel table of up to 16 entries (entry i routes MIDI channel i)
// referencing them by name; channels past the listed entries stay unassigned.
type Document struct {
	Instruments map[string]InstrumentDoc `yaml:"instruments"`
	Channels    []ChannelDoc             `yaml:"channels"`
}
