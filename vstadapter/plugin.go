package vstadapter

import (
	"log/slog"
	"time"

	"pipelined.dev/audio/vst2"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/config"
	"github.com/gosampler/rtengine/engine"
	"github.com/gosampler/rtengine/sampleio"
	"github.com/gosampler/rtengine/stream"
)

// vstOutput implements rtengine.AudioOutput by pointing Buffers at whatever
// channel slices the VST host handed the plugin for the current
// ProcessFloatFunc call, so the engine renders directly into the host's own
// buffer instead of through an intermediate copy.
type vstOutput struct {
	sampleRate int
	maxFrames  int
	left       []float32
	right      []float32
}

func (o *vstOutput) SampleRate() int        { return o.sampleRate }
func (o *vstOutput) MaxFramesPerCycle() int { return o.maxFrames }
func (o *vstOutput) Buffers(frames int) (left, right []float32) {
	return o.left[:frames], o.right[:frames]
}

// Options configures the plugin returned by Allocator.
type Options struct {
	UniqueID         int32
	Version          int32
	Name             string
	Vendor           string
	SampleRate       int
	MaxFrames        int
	NumChannels      int
	VoicesPerChannel int

	// RoutingPath, if set, is a YAML routing file loaded once at plugin
	// creation via config.LoadFile.
	RoutingPath string
	// SampleCacheFrames and SampleTrailerFrames size each sample's
	// resident RAM cache, per sampleio.Load's contract.
	SampleCacheFrames   int64
	SampleTrailerFrames int64

	// StreamCapacity, StreamRingFrames and StreamChunkFrames size the
	// disk-streaming subsystem serving any region whose sample outgrows
	// its RAM cache; zero values fall back to reasonable plugin-host
	// defaults.
	StreamCapacity    int
	StreamRingFrames  int
	StreamChunkFrames int

	Log *slog.Logger
}

func withDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Allocator returns a vst2.PluginAllocator suitable for assignment to
// vst2.PluginAllocator in a plugin's init(), mirroring the teacher's
// VSTIProcessContext-based allocator in
// _examples/vsariola-sointu/cmd/sointu-vsti/main.go.
func Allocator(opts Options) func(vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
	return func(host vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		log := opts.Log
		if log == nil {
			log = slog.Default()
		}

		audioOut := &vstOutput{
			sampleRate: opts.SampleRate,
			maxFrames:  opts.MaxFrames,
			left:       make([]float32, opts.MaxFrames),
			right:      make([]float32, opts.MaxFrames),
		}
		plugin := New(log)

		// A Loader (and the stream.Manager built on top of it) is needed
		// regardless of whether a routing file is given up front: a host
		// may still load an instrument referencing disk-backed samples,
		// and any such region needs somewhere to place its stream order.
		loader := config.NewLoader(log, sampleio.Load, opts.SampleCacheFrames, opts.SampleTrailerFrames)
		streamMgr := stream.NewManager(
			withDefault(opts.StreamCapacity, opts.NumChannels*opts.VoicesPerChannel),
			withDefault(opts.StreamRingFrames, 8192),
			loader.NewRoot,
			log,
		)
		streamStop := make(chan struct{})
		go streamMgr.Run(withDefault(opts.StreamChunkFrames, 4096))
		go logStreamDiagnostics(log, streamMgr, streamStop)

		eng := engine.New(engine.Config{
			Context:          rtengine.EngineContext{SampleRate: opts.SampleRate, Logger: log},
			NumChannels:      opts.NumChannels,
			VoicesPerChannel: opts.VoicesPerChannel,
			MIDIInput:        plugin,
			AudioOutput:      audioOut,
			StreamManager:    streamMgr,
		})

		if opts.RoutingPath != "" {
			doc, err := config.LoadFile(opts.RoutingPath)
			if err != nil {
				log.Error("vstadapter: loading routing file", "path", opts.RoutingPath, "error", err)
			} else if rt, err := config.BuildRoutingTable(doc, loader); err != nil {
				log.Error("vstadapter: building routing table", "path", opts.RoutingPath, "error", err)
			} else {
				eng.UpdateRouting(func(dst *engine.RoutingTable) { *dst = rt })
			}
		}

		return vst2.Plugin{
				UniqueID:       opts.UniqueID,
				Version:        opts.Version,
				InputChannels:  0,
				OutputChannels: 2,
				Name:           opts.Name,
				Vendor:         opts.Vendor,
				Category:       vst2.PluginCategorySynth,
				Flags:          vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) {
					audioOut.left = out.Channel(0)
					audioOut.right = out.Channel(1)
					eng.Tick(out.Frames)
				},
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					events := make([]vst2.MIDIEvent, 0, ev.NumEvents())
					for i := 0; i < ev.NumEvents(); i++ {
						if v, ok := ev.Event(i).(*vst2.MIDIEvent); ok {
							events = append(events, *v)
						}
					}
					plugin.ProcessEvents(events)
				},
				CloseFunc: func() {
					close(streamStop)
					streamMgr.Stop()
					eng.Close()
				},
			}
	}
}

// logStreamDiagnostics is the control-plane accessor spec.md §7 calls for:
// it periodically polls the RT-safe atomic counters the disk/audio threads
// bump on stream starvation and stream-pool exhaustion, logging only when
// either has grown since the last poll, until stop closes.
func logStreamDiagnostics(log *slog.Logger, streamMgr *stream.Manager, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var lastStarved, lastExhausted int64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if starved := streamMgr.StreamStarvedCount(); starved != lastStarved {
				log.Warn("stream diagnostics", "error", rtengine.ErrStreamStarved, "count", starved)
				lastStarved = starved
			}
			if exhausted := streamMgr.PoolExhaustedCount(); exhausted != lastExhausted {
				log.Warn("stream diagnostics", "error", rtengine.ErrPoolExhausted, "count", exhausted)
				lastExhausted = exhausted
			}
		}
	}
}
