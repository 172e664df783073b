package rtengine

import "errors"

// Real-time render errors. These never propagate as Go errors on the audio
// path; they are recorded as atomic counters/flags and only surfaced to the
// control plane after the fact.
var (
	ErrStreamStarved   = errors.New("rtengine: stream starved")
	ErrPoolExhausted   = errors.New("rtengine: voice pool exhausted")
	ErrNoRegion        = errors.New("rtengine: no region for key")
	ErrEmptySample     = errors.New("rtengine: sample has zero frames")
	ErrReleaseDecay    = errors.New("rtengine: release-trigger decay resolved to silence")
)

// Control-plane errors. These are returned as ordinary tagged error values.
var (
	ErrInstrumentLoadFailed = errors.New("rtengine: instrument load failed")
	ErrBadParameter         = errors.New("rtengine: bad parameter")
	ErrDatabase             = errors.New("rtengine: database error")
)

// Streaming failures. The disk goroutine downgrades the affected Stream to
// StateEnd on any of these; it never retries and never blocks the audio
// thread. There is no separate ErrSeekFailed: stream.Reader.ReadAt folds
// positioning into the read call itself rather than exposing a discrete
// seek step, so a failed seek and a failed read are the same failure here.
var (
	ErrOpenFailed = errors.New("rtengine: open failed")
	ErrReadShort  = errors.New("rtengine: short read")
)
