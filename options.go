package dupfinder

import (
	"log/slog"

	"github.com/iobis/dupfinder/cell"
	"github.com/iobis/dupfinder/codec"
	"github.com/iobis/dupfinder/distance"
	"github.com/iobis/dupfinder/results"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/iobis/dupfinder/similarity"
)

// DefaultRunDir is the blob prefix holding a run's manifest and parts.
const DefaultRunDir = "run"

type options struct {
	precision        int
	threshold        float64
	workers          int
	chunkSize        int
	batchSize        int
	metric           distance.Metric
	compression      results.Compression
	runDir           string
	codec            codec.Codec
	lookupWorkers    int
	metricsCollector MetricsCollector
	logger           *Logger
	logLevel         *slog.Level
}

func defaultOptions() options {
	return options{
		precision:        cell.DefaultPrecision,
		threshold:        shortlist.DefaultThreshold,
		workers:          similarity.DefaultWorkers,
		chunkSize:        similarity.DefaultChunkSize,
		batchSize:        similarity.DefaultBatchSize,
		metric:           distance.MetricCosine,
		compression:      results.CompressionZstd,
		runDir:           DefaultRunDir,
		codec:            codec.Default,
		lookupWorkers:    4,
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures a Pipeline.
type Option func(*options)

// WithPrecision sets the geohash precision of a cell (1..12). Default 2.
// Resume uses the precision recorded in the run.
func WithPrecision(p int) Option {
	return func(o *options) {
		o.precision = p
	}
}

// WithThreshold sets the shortlist threshold. Pairs must score strictly above it.
func WithThreshold(th float64) Option {
	return func(o *options) {
		o.threshold = th
	}
}

// WithWorkers sets the number of concurrent similarity workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithChunkSize sets how many outer rows make one work range.
func WithChunkSize(rows int) Option {
	return func(o *options) {
		o.chunkSize = rows
	}
}

// WithBatchSize sets how many results a worker buffers per sink write.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithMetric selects the similarity metric. Default is cosine.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithCompression sets the codec for new results parts. Default zstd.
func WithCompression(c results.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithRunDir sets the blob prefix of the run.
func WithRunDir(dir string) Option {
	return func(o *options) {
		o.runDir = dir
	}
}

// WithCodec configures the codec for the manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLookupConcurrency bounds parallel metadata lookups during Shortlist.
func WithLookupConcurrency(n int) Option {
	return func(o *options) {
		o.lookupWorkers = n
	}
}

// WithMetricsCollector configures a metrics collector for pipeline stages.
//
// Example:
//
//	mc := &dupfinder.BasicMetricsCollector{}
//	p, _ := dupfinder.Open(store, dupfinder.WithMetricsCollector(mc))
//	stats := mc.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example:
//
//	logger := dupfinder.NewJSONLogger(slog.LevelInfo)
//	p, _ := dupfinder.Open(store, dupfinder.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel enables a text logger on stderr at the given level.
// Ignored when WithLogger is also given.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logLevel = &level
	}
}
