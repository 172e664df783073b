package config

import (
	"fmt"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/enginechannel"
	"github.com/gosampler/rtengine/engine"
)

// BuildRoutingTable builds every instrument a Document names and assembles
// the engine.RoutingTable spec.md §4.9's Tick reads on each cycle's config
// lock. loader supplies the sample cache regions borrow from.
func BuildRoutingTable(doc Document, loader *Loader) (engine.RoutingTable, error) {
	instruments := make(map[string]*rtengine.Instrument, len(doc.Instruments))
	for name, idoc := range doc.Instruments {
		instr, err := buildInstrument(name, idoc, loader)
		if err != nil {
			return engine.RoutingTable{}, fmt.Errorf("config: instrument %q: %w", name, err)
		}
		instruments[name] = instr
	}

	var rt engine.RoutingTable
	for i, cdoc := range doc.Channels {
		if i >= len(rt.Channels) {
			return engine.RoutingTable{}, fmt.Errorf("config: %d channel entries, at most %d allowed", len(doc.Channels), len(rt.Channels))
		}
		if cdoc.Instrument != "" {
			instr, ok := instruments[cdoc.Instrument]
			if !ok {
				return engine.RoutingTable{}, fmt.Errorf("config: channel %d references unknown instrument %q", i, cdoc.Instrument)
			}
			rt.Channels[i].Instrument = instr
		}
		rt.Channels[i].StealPolicy = parseStealPolicy(cdoc.StealPolicy)
	}
	return rt, nil
}

func buildInstrument(name string, doc InstrumentDoc, loader *Loader) (*rtengine.Instrument, error) {
	instrName := doc.Name
	if instrName == "" {
		instrName = name
	}
	instr := &rtengine.Instrument{Name: instrName}
	for i, rdoc := range doc.Regions {
		region := &rtengine.Region{
			LowKey: rdoc.LowKey, HighKey: rdoc.HighKey,
			LowVelocity: rdoc.LowVelocity, HighVelocity: rdoc.HighVelocity,
		}
		if region.HighVelocity == 0 {
			region.HighVelocity = 127
		}
		for _, ddoc := range rdoc.Dimensions {
			dr, err := buildDimensionRegion(ddoc, loader)
			if err != nil {
				return nil, fmt.Errorf("region %d: %w", i, err)
			}
			region.Dimensions = append(region.Dimensions, dr)
		}
		instr.Regions = append(instr.Regions, region)
	}
	instr.BuildIndex()
	return instr, nil
}

func buildDimensionRegion(doc DimensionRegionDoc, loader *Loader) (*rtengine.DimensionRegion, error) {
	sample, err := loader.samples.Borrow(doc.SamplePath, doc)
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", doc.SamplePath, err)
	}
	if doc.Loop != nil {
		sample.Loop = &rtengine.Loop{
			Start: doc.Loop.Start, End: doc.Loop.End,
			Size: doc.Loop.End - doc.Loop.Start, PlayCount: doc.Loop.PlayCount,
		}
	}

	attenuation := doc.SampleAttenuation
	if attenuation == 0 {
		attenuation = 1.0
	}

	return &rtengine.DimensionRegion{
		Sample:                   sample,
		UnityNote:                doc.UnityNote,
		FineTuneCents:            doc.FineTuneCents,
		PitchTrack:               doc.PitchTrack,
		VelocityAttenuationTable: velocityCurve(doc.VelocityCurve),
		SampleAttenuation:        attenuation,
		Pan:                      doc.Pan,
		AmpEG:                    buildEnvelope(doc.AmpEG),
		FilterEG:                 buildEnvelope(doc.FilterEG),
		Filter:                   buildFilter(doc.Filter),
		AttenuationCtl:           buildController(doc.AttenuationCtl),
		EG1Ctl:                   buildController(doc.EG1Ctl),
		EG2Ctl:                   buildController(doc.EG2Ctl),
		KeyGroup:                 doc.KeyGroup,
	}, nil
}

// buildEnvelope maps a EnvelopeDoc left entirely at its zero value to an
// infinite full-level sustain (a region that doesn't mention ampEG plays the
// sample straight through) rather than the model's literal zero value,
// which would be instant silence.
func buildEnvelope(doc EnvelopeDoc) rtengine.EnvelopeParams {
	if doc == (EnvelopeDoc{}) {
		return rtengine.EnvelopeParams{InfiniteSustain: true, SustainLevel: 1.0}
	}
	return rtengine.EnvelopeParams{
		Curve:           parseCurve(doc.Curve),
		PreAttackLevel:  doc.PreAttackLevel,
		AttackSeconds:   doc.AttackSeconds,
		HoldFrames:      doc.HoldFrames,
		Decay1Seconds:   doc.Decay1Seconds,
		Decay2Seconds:   doc.Decay2Seconds,
		InfiniteSustain: doc.InfiniteSustain,
		SustainLevel:    doc.SustainLevel,
		ReleaseSeconds:  doc.ReleaseSeconds,
	}
}

func buildFilter(doc FilterDoc) rtengine.FilterParams {
	cutoffCtl, resCtl := -1, -1
	if doc.CutoffController != 0 {
		cutoffCtl = doc.CutoffController
	}
	if doc.ResonanceController != 0 {
		resCtl = doc.ResonanceController
	}
	return rtengine.FilterParams{
		Type:                parseFilterType(doc.Type),
		CutoffHz:            doc.CutoffHz,
		CutoffMinHz:         doc.CutoffMinHz,
		CutoffMaxHz:         doc.CutoffMaxHz,
		Resonance:           doc.Resonance,
		CutoffController:    cutoffCtl,
		ResonanceController: resCtl,
		InvertCutoff:        doc.InvertCutoff,
	}
}

func buildController(doc ControllerDoc) rtengine.AttenuationController {
	var kind rtengine.AttenuationControllerKind
	switch doc.Kind {
	case "velocity":
		kind = rtengine.AttenuationVelocity
	case "cc":
		kind = rtengine.AttenuationControlChange
	case "aftertouch":
		kind = rtengine.AttenuationChannelAftertouch
	default:
		kind = rtengine.AttenuationNone
	}
	return rtengine.AttenuationController{Kind: kind, CC: doc.CC, Invert: doc.Invert}
}

// velocityCurve builds a 128-entry velocity->attenuation table. "flat"
// (the default) applies no velocity sensitivity; "linear" ramps from
// silence at velocity 0 to unity at velocity 127.
func velocityCurve(kind string) [128]float64 {
	var table [128]float64
	switch kind {
	case "linear":
		for v := range table {
			table[v] = float64(v) / 127
		}
	default:
		for v := range table {
			table[v] = 1.0
		}
	}
	return table
}

func parseStealPolicy(s string) enginechannel.VoiceStealPolicy {
	switch s {
	case "lowestVelocity":
		return enginechannel.StealLowestVelocity
	case "leastRecentlyTriggered":
		return enginechannel.StealLeastRecentlyTriggered
	default:
		return enginechannel.StealOldest
	}
}

func parseCurve(s string) rtengine.EnvelopeCurve {
	if s == "exponential" {
		return rtengine.CurveExponential
	}
	return rtengine.CurveLinear
}

func parseFilterType(s string) rtengine.FilterType {
	switch s {
	case "lowpass":
		return rtengine.FilterLowpass
	case "highpass":
		return rtengine.FilterHighpass
	case "bandpass":
		return rtengine.FilterBandpass
	default:
		return rtengine.FilterNone
	}
}
