package rtengine

import (
	"log/slog"
)

// EngineContext bundles the non-real-time collaborators and constants an
// Engine is constructed from, replacing the "singleton resource manager and
// static data" pattern the original codebase used: every value here is
// passed explicitly at construction time, so multiple Engine instances can
// coexist (e.g. in tests) without sharing process-wide mutable state.
type EngineContext struct {
	Logger *slog.Logger

	SampleRate        int
	MaxFramesPerCycle int

	// SubFragmentSize is the inner render granularity over which modulator
	// outputs are held constant (spec.md glossary: "Sub-fragment").
	SubFragmentSize int
}

// WithDefaults fills unset fields with the engine's conventional defaults
// (44100 Hz, 4096-frame cycles, 32-sample sub-fragments, slog.Default() as
// the logger) and returns the result; it never mutates the receiver.
func (c EngineContext) WithDefaults() EngineContext {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.MaxFramesPerCycle == 0 {
		c.MaxFramesPerCycle = 4096
	}
	if c.SubFragmentSize == 0 {
		c.SubFragmentSize = 32
	}
	return c
}
