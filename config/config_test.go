package config

import (
	"testing"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/enginechannel"
	"github.com/gosampler/rtengine/stream"
)

const testYAML = `
instruments:
  kick:
    regions:
      - lowKey: 0
        highKey: 127
        dimensions:
          - sample: kick.wav
            unityNote: 60
            attenuation: 0.9
            velocityCurve: linear
            keyGroup: 1
      - lowKey: 0
        highKey: 127
        dimensions:
          - sample: kick.wav
            unityNote: 60
channels:
  - instrument: kick
    stealPolicy: lowestVelocity
`

func fakeDecoder(calls *int) DecodeFunc {
	return func(path string, cacheFrames, trailer int64) (*rtengine.Sample, stream.Reader, error) {
		*calls++
		cache := make([]float32, cacheFrames+trailer)
		return &rtengine.Sample{
			Path: path, SampleRate: 44100, Channels: 1,
			TotalFrames: 1000, Cache: cache, CacheFrames: cacheFrames,
		}, nil, nil
	}
}

func TestParseAndBuildRoutingTable(t *testing.T) {
	doc, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	calls := 0
	loader := NewLoader(nil, fakeDecoder(&calls), 4096, 4)

	rt, err := BuildRoutingTable(doc, loader)
	if err != nil {
		t.Fatalf("BuildRoutingTable: %v", err)
	}

	if calls != 1 {
		t.Fatalf("sample decoded %d times, want 1 (shared across both regions)", calls)
	}

	route := rt.Channels[0]
	if route.Instrument == nil {
		t.Fatal("channel 0 has no instrument")
	}
	if route.StealPolicy != enginechannel.StealLowestVelocity {
		t.Fatalf("StealPolicy = %v, want StealLowestVelocity", route.StealPolicy)
	}
	if len(route.Instrument.Regions) != 2 {
		t.Fatalf("regions = %d, want 2", len(route.Instrument.Regions))
	}

	dr := route.Instrument.Regions[0].Dimensions[0]
	if dr.SampleAttenuation != 0.9 {
		t.Fatalf("SampleAttenuation = %v, want 0.9", dr.SampleAttenuation)
	}
	if dr.KeyGroup != 1 {
		t.Fatalf("KeyGroup = %d, want 1", dr.KeyGroup)
	}
	if dr.VelocityAttenuationTable[0] != 0 || dr.VelocityAttenuationTable[127] != 1.0 {
		t.Fatalf("linear velocity curve endpoints wrong: %v .. %v", dr.VelocityAttenuationTable[0], dr.VelocityAttenuationTable[127])
	}
	if !dr.AmpEG.InfiniteSustain || dr.AmpEG.SustainLevel != 1.0 {
		t.Fatalf("default AmpEG should be infinite full sustain, got %+v", dr.AmpEG)
	}

	drSecond := route.Instrument.Regions[1].Dimensions[0]
	if drSecond.Sample != dr.Sample {
		t.Fatal("both regions should share the same decoded Sample instance")
	}
}

func TestUnknownInstrumentReferenceFails(t *testing.T) {
	doc, err := Parse([]byte("channels:\n  - instrument: missing\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	calls := 0
	loader := NewLoader(nil, fakeDecoder(&calls), 4096, 4)
	if _, err := BuildRoutingTable(doc, loader); err == nil {
		t.Fatal("expected an error referencing an undefined instrument")
	}
}
