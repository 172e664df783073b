// Package schedule resolves external wall-clock MIDI timestamps into
// fragment-relative sample offsets and maintains the monotonic
// sample-since-start scheduler clock used to schedule events into the
// future (spec.md §4.5), grounded on
// original_source/src/engines/common/Event.h's EventGenerator.
package schedule

import "github.com/gosampler/rtengine"

// SchedTime is a 64-bit sample count since the Generator was created. It
// will not wrap within any realistic lifetime (spec.md §4.5).
type SchedTime uint64

// Generator resolves event timestamps and tracks the scheduler clock.
type Generator struct {
	sampleRate int

	fragmentBeginNanos int64
	fragmentEndNanos   int64
	sampleRatio        float64 // samples per real nanosecond, over this fragment

	samplesProcessedThisFragment int
	totalSamplesProcessed        SchedTime
}

// NewGenerator creates a Generator for the given sample rate.
func NewGenerator(sampleRate int) *Generator {
	return &Generator{sampleRate: sampleRate}
}

// UpdateFragmentTime records the wall-clock timestamps of the fragment's
// first and last samples and computes the samples-per-real-time ratio used
// by Resolve. Must be called once at the start of every audio cycle, before
// any Resolve calls for that cycle.
func (g *Generator) UpdateFragmentTime(nowNanos int64, samplesToProcess int) {
	g.fragmentBeginNanos = nowNanos
	durationNanos := int64(float64(samplesToProcess) / float64(g.sampleRate) * 1e9)
	if durationNanos <= 0 {
		durationNanos = 1
	}
	g.fragmentEndNanos = nowNanos + durationNanos
	g.sampleRatio = float64(samplesToProcess) / float64(durationNanos)
	g.samplesProcessedThisFragment = samplesToProcess
}

// Resolve computes ev.FragmentPos from ev.WallClockNanos, clamping to
// [0, samplesToProcess-1]. An event that arrived shortly before the
// fragment began (negative offset) clamps to 0, per spec.md §4.5/§9.
func (g *Generator) Resolve(ev *rtengine.Event) {
	if ev.WallClockNanos < 0 {
		return // already resolved directly (e.g. internally generated event)
	}
	offset := float64(ev.WallClockNanos-g.fragmentBeginNanos) * g.sampleRatio
	pos := int(offset)
	if pos < 0 {
		pos = 0
	}
	max := g.samplesProcessedThisFragment - 1
	if max < 0 {
		max = 0
	}
	if pos > max {
		pos = max
	}
	ev.FragmentPos = pos
}

// AdvanceFragment must be called once at the end of every audio cycle,
// after all events for that cycle have been resolved and processed. It
// advances the monotonic scheduler clock by the number of samples actually
// rendered this cycle.
func (g *Generator) AdvanceFragment(samplesRendered int) {
	g.totalSamplesProcessed += SchedTime(samplesRendered)
}

// SchedTimeAtFragmentEnd returns the scheduler time for the first sample
// point of the next audio fragment cycle.
func (g *Generator) SchedTimeAtFragmentEnd() SchedTime {
	return g.totalSamplesProcessed + SchedTime(g.samplesProcessedThisFragment)
}

// TotalSamplesProcessed returns the monotonic scheduler clock value as of
// the start of the current fragment.
func (g *Generator) TotalSamplesProcessed() SchedTime {
	return g.totalSamplesProcessed
}

// ScheduleAheadMicroseconds computes the absolute scheduler time for an
// event that should fire `microseconds` in the future from `fragmentPosBase`
// (a sample point within the current fragment treated as "now"), per
// EventGenerator::scheduleAheadMicroSec in the original.
func (g *Generator) ScheduleAheadMicroseconds(fragmentPosBase int, microseconds int64) SchedTime {
	deltaSamples := int64(g.sampleRate) * microseconds / 1_000_000
	return g.totalSamplesProcessed + SchedTime(fragmentPosBase) + SchedTime(deltaSamples)
}
