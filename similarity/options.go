package similarity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/iobis/dupfinder/distance"
)

const (
	DefaultWorkers   = 6
	DefaultChunkSize = 64
	DefaultBatchSize = 4096
)

// Observer is notified as ranges and batches complete.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveRange(r Range, pairs int64, d time.Duration, err error)
	ObserveBatch(size int, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRange(Range, int64, time.Duration, error) {}
func (noopObserver) ObserveBatch(int, time.Duration, error)          {}

type options struct {
	workers   int
	chunkSize int
	batchSize int
	metric    distance.Metric
	logger    *slog.Logger
	observer  Observer
}

// Option configures an Engine.
type Option func(*options)

// WithWorkers sets the size of the worker pool.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithChunkSize sets the number of outer rows per range.
func WithChunkSize(rows int) Option {
	return func(o *options) {
		o.chunkSize = rows
	}
}

// WithBatchSize sets how many results a worker buffers before flushing to the sink.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithMetric selects the similarity kernel. The default is cosine.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets a progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

func (o *options) validate() error {
	if o.workers < 1 {
		return fmt.Errorf("similarity: workers must be >= 1, got %d", o.workers)
	}
	if o.chunkSize < 1 {
		return fmt.Errorf("similarity: chunk size must be >= 1, got %d", o.chunkSize)
	}
	if o.batchSize < 1 {
		return fmt.Errorf("similarity: batch size must be >= 1, got %d", o.batchSize)
	}
	return nil
}
