package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gosampler/rtengine"
	"github.com/gosampler/rtengine/resource"
	"github.com/gosampler/rtengine/stream"
)

// DecodeFunc decodes a sample file into a Sample plus the stream.Reader
// disk voices read from once they outrun the Sample's cache. Production
// code passes sampleio.Load; tests substitute a synthetic decoder.
type DecodeFunc func(path string, cacheFrames, trailerFrames int64) (*rtengine.Sample, stream.Reader, error)

// Loader owns the sample resource cache a routing Document's regions borrow
// from, keyed by file path so multiple regions sharing a sample decode it
// once (spec.md §4.3's resource-manager contract).
type Loader struct {
	log         *slog.Logger
	decode      DecodeFunc
	cacheFrames int64
	trailer     int64

	samples *resource.Manager[string, *rtengine.Sample]

	mu      sync.Mutex
	readers map[string]stream.Reader
}

// NewLoader constructs a Loader that decodes samples via decode, caching up
// to cacheFrames frames in RAM per sample plus a trailer sized for the
// engine's interpolator lookahead.
func NewLoader(log *slog.Logger, decode DecodeFunc, cacheFrames, trailer int64) *Loader {
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{
		log:         log,
		decode:      decode,
		cacheFrames: cacheFrames,
		trailer:     trailer,
		readers:     make(map[string]stream.Reader),
	}
	l.samples = resource.New(resource.Callbacks[string, *rtengine.Sample]{
		Create: l.loadSample,
		Destroy: func(path string, _ *rtengine.Sample) {
			l.mu.Lock()
			delete(l.readers, path)
			l.mu.Unlock()
			l.log.Debug("sample released", "path", path)
		},
	})
	return l
}

func (l *Loader) loadSample(path string) (*rtengine.Sample, error) {
	sample, reader, err := l.decode(path, l.cacheFrames, l.trailer)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.readers[path] = reader
	l.mu.Unlock()
	l.log.Info("sample loaded", "path", path, "frames", sample.TotalFrames, "cached", sample.CacheFrames)
	return sample, nil
}

// ReaderFor returns the stream.Reader paired with sample at load time, or
// nil if sample was not produced by this Loader.
func (l *Loader) ReaderFor(sample *rtengine.Sample) stream.Reader {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readers[sample.Path]
}

// NewRoot adapts ReaderFor to the signature stream.NewManager expects for
// its newRoot argument.
func (l *Loader) NewRoot(sample *rtengine.Sample) stream.Reader { return l.ReaderFor(sample) }

// LoadFile reads and parses a routing Document from a YAML file.
func LoadFile(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(b)
}

// Parse unmarshals a routing Document from YAML bytes.
func Parse(b []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parsing YAML: %w", err)
	}
	return doc, nil
}
