// Command rtsamplerd is a standalone binary wiring config, midiio, audioio,
// and engine together into a runnable real-time sampler. Grounded
// structurally on _examples/vsariola-sointu/cmd/sointu-play/main.go's
// top-level shape (flag parsing, open context, open device, loop
// render-then-write), adapted from rendering a whole song file up front to
// driving a live audio callback loop against real MIDI input.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/audioio"
	"github.com/gosampler/rtengine/config"
	"github.com/gosampler/rtengine/engine"
	"github.com/gosampler/rtengine/midiio"
	"github.com/gosampler/rtengine/sampleio"
	"github.com/gosampler/rtengine/stream"
)

func main() {
	routingPath := flag.String("routing", "", "path to a YAML routing file (required)")
	midiDevice := flag.String("midi-device", "", "MIDI input device name prefix; empty opens the first available device")
	sampleRate := flag.Int("sample-rate", 44100, "audio sample rate in Hz")
	framesPerCycle := flag.Int("frames", 256, "frames rendered per audio cycle")
	numChannels := flag.Int("channels", 16, "number of MIDI/engine channels")
	voicesPerChannel := flag.Int("voices", 32, "polyphony per channel")
	sampleCacheFrames := flag.Int64("sample-cache-frames", 44100*2, "RAM-resident frames cached per sample")
	sampleTrailerFrames := flag.Int64("sample-trailer-frames", 64, "silent trailer frames appended past each cached sample")
	streamCapacity := flag.Int("stream-capacity", 64, "max concurrent disk-streamed voices")
	streamRingFrames := flag.Int("stream-ring-frames", 8192, "ring buffer frames held per disk-streamed voice")
	streamChunkFrames := flag.Int("stream-chunk-frames", 4096, "frames the disk goroutine reads per refill pass")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	log := newLogger(*logLevel)

	if *routingPath == "" {
		fmt.Fprintln(os.Stderr, "rtsamplerd: -routing is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(log, options{
		routingPath:         *routingPath,
		midiDevice:          *midiDevice,
		sampleRate:          *sampleRate,
		framesPerCycle:      *framesPerCycle,
		numChannels:         *numChannels,
		voicesPerChannel:    *voicesPerChannel,
		sampleCacheFrames:   *sampleCacheFrames,
		sampleTrailerFrames: *sampleTrailerFrames,
		streamCapacity:      *streamCapacity,
		streamRingFrames:    *streamRingFrames,
		streamChunkFrames:   *streamChunkFrames,
	}); err != nil {
		log.Error("rtsamplerd exiting", "error", err)
		os.Exit(1)
	}
}

type options struct {
	routingPath         string
	midiDevice          string
	sampleRate          int
	framesPerCycle      int
	numChannels         int
	voicesPerChannel    int
	sampleCacheFrames   int64
	sampleTrailerFrames int64
	streamCapacity      int
	streamRingFrames    int
	streamChunkFrames   int
}

func run(log *slog.Logger, opts options) error {
	doc, err := config.LoadFile(opts.routingPath)
	if err != nil {
		return fmt.Errorf("loading routing file: %w", err)
	}

	loader := config.NewLoader(log, sampleio.Load, opts.sampleCacheFrames, opts.sampleTrailerFrames)
	routing, err := config.BuildRoutingTable(doc, loader)
	if err != nil {
		return fmt.Errorf("building routing table: %w", err)
	}

	streamMgr := stream.NewManager(opts.streamCapacity, opts.streamRingFrames, loader.NewRoot, log)
	go streamMgr.Run(opts.streamChunkFrames)
	defer streamMgr.Stop()

	midiIn, err := midiio.New(log)
	if err != nil {
		return fmt.Errorf("opening MIDI: %w", err)
	}
	defer midiIn.Close()
	if opts.midiDevice != "" {
		err = midiIn.OpenByPrefix(opts.midiDevice)
	} else {
		err = midiIn.OpenFirst()
	}
	if err != nil {
		return fmt.Errorf("opening MIDI input device: %w", err)
	}

	audioOut, err := audioio.NewOutput(opts.sampleRate, opts.framesPerCycle, 0.25)
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	defer audioOut.Close()

	eng := engine.New(engine.Config{
		Context:          rtengine.EngineContext{SampleRate: opts.sampleRate, Logger: log},
		NumChannels:      opts.numChannels,
		VoicesPerChannel: opts.voicesPerChannel,
		MIDIInput:        midiIn,
		AudioOutput:      audioOut,
		StreamManager:    streamMgr,
	})
	defer eng.Close()
	eng.UpdateRouting(func(dst *engine.RoutingTable) { *dst = routing })

	log.Info("rtsamplerd started", "sampleRate", opts.sampleRate, "frames", opts.framesPerCycle,
		"channels", opts.numChannels, "voicesPerChannel", opts.voicesPerChannel)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go renderLoop(log, eng, audioOut, opts.sampleRate, opts.framesPerCycle, done, stop)
	go logStreamDiagnostics(log, streamMgr, done)
	<-done
	log.Info("rtsamplerd stopped")
	return nil
}

// logStreamDiagnostics is the control-plane accessor spec.md §7 calls for:
// it periodically polls the RT-safe atomic counters the disk/audio threads
// bump on stream starvation and stream-pool exhaustion, logging only when
// either has grown since the last poll, until done closes.
func logStreamDiagnostics(log *slog.Logger, streamMgr *stream.Manager, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var lastStarved, lastExhausted int64
	for {
		select {
		case <-done:
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

// renderLoop drives the engine at a fixed cycle size, submitting each
// rendered cycle to the audio device, until stop fires. Mirrors the
// teacher's render-then-write loop shape, generalized from rendering an
// entire pre-known song length up front to an unbounded live loop. Cycles
// are paced by a ticker sized to one cycle's real-time duration, since
// audioio.Output's Submit never blocks (it drops on backlog overflow
// instead) — without pacing this loop would spin as fast as the CPU
// allows and do nothing but drop cycles.
func renderLoop(log *slog.Logger, eng *engine.Engine, audioOut *audioio.Output, sampleRate, frames int, done chan<- struct{}, stop <-chan os.Signal) {
	defer close(done)
	cycleDuration := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(cycleDuration)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			eng.Tick(frames)
			if err := audioOut.Submit(frames); err != nil {
				log.Warn("audio underrun", "error", err)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "rtsamplerd: a real-time MIDI sampler engine.\nUsage: %s -routing routing.yaml [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
