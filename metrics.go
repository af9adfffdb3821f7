package dupfinder

import (
	"sync/atomic"
	"time"

	"github.com/iobis/dupfinder/similarity"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see metrics/prometheus).
type MetricsCollector interface {
	// RecordAggregate is called after the aggregation stage.
	// scanned and retained are record counts.
	RecordAggregate(scanned, retained int64, duration time.Duration, err error)

	// RecordRange is called after each similarity range.
	// pairs is the number of results delivered, err is nil if successful.
	RecordRange(pairs int64, duration time.Duration, err error)

	// RecordBatch is called after each results batch is written.
	RecordBatch(size int, duration time.Duration, err error)

	// RecordShortlist is called after each shortlist.
	RecordShortlist(considered, kept int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAggregate(int64, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRange(int64, time.Duration, error)            {}
func (NoopMetricsCollector) RecordBatch(int, time.Duration, error)              {}
func (NoopMetricsCollector) RecordShortlist(int, int, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AggregateCount    atomic.Int64
	AggregateErrors   atomic.Int64
	RecordsScanned    atomic.Int64
	RecordsRetained   atomic.Int64
	RangeCount        atomic.Int64
	RangeErrors       atomic.Int64
	RangeTotalNanos   atomic.Int64
	PairsComputed     atomic.Int64
	BatchCount        atomic.Int64
	BatchErrors       atomic.Int64
	BatchTotalNanos   atomic.Int64
	ShortlistCount    atomic.Int64
	ShortlistErrors   atomic.Int64
	ShortlistKept     atomic.Int64
	ShortlistConsider atomic.Int64
}

// RecordAggregate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAggregate(scanned, retained int64, _ time.Duration, err error) {
	b.AggregateCount.Add(1)
	b.RecordsScanned.Add(scanned)
	b.RecordsRetained.Add(retained)
	if err != nil {
		b.AggregateErrors.Add(1)
	}
}

// RecordRange implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRange(pairs int64, duration time.Duration, err error) {
	b.RangeCount.Add(1)
	b.RangeTotalNanos.Add(duration.Nanoseconds())
	b.PairsComputed.Add(pairs)
	if err != nil {
		b.RangeErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(_ int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordShortlist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShortlist(considered, kept int, _ time.Duration, err error) {
	b.ShortlistCount.Add(1)
	b.ShortlistConsider.Add(int64(considered))
	b.ShortlistKept.Add(int64(kept))
	if err != nil {
		b.ShortlistErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AggregateCount:  b.AggregateCount.Load(),
		AggregateErrors: b.AggregateErrors.Load(),
		RecordsScanned:  b.RecordsScanned.Load(),
		RecordsRetained: b.RecordsRetained.Load(),
		RangeCount:      b.RangeCount.Load(),
		RangeErrors:     b.RangeErrors.Load(),
		RangeAvgNanos:   avg(b.RangeTotalNanos.Load(), b.RangeCount.Load()),
		PairsComputed:   b.PairsComputed.Load(),
		BatchCount:      b.BatchCount.Load(),
		BatchErrors:     b.BatchErrors.Load(),
		BatchAvgNanos:   avg(b.BatchTotalNanos.Load(), b.BatchCount.Load()),
		ShortlistCount:  b.ShortlistCount.Load(),
		ShortlistErrors: b.ShortlistErrors.Load(),
		ShortlistKept:   b.ShortlistKept.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AggregateCount  int64
	AggregateErrors int64
	RecordsScanned  int64
	RecordsRetained int64
	RangeCount      int64
	RangeErrors     int64
	RangeAvgNanos   int64
	PairsComputed   int64
	BatchCount      int64
	BatchErrors     int64
	BatchAvgNanos   int64
	ShortlistCount  int64
	ShortlistErrors int64
	ShortlistKept   int64
}

// observer forwards similarity engine events to a MetricsCollector.
type observer struct {
	mc MetricsCollector
}

var _ similarity.Observer = observer{}

func (o observer) ObserveRange(_ similarity.Range, pairs int64, d time.Duration, err error) {
	o.mc.RecordRange(pairs, d, err)
}

func (o observer) ObserveBatch(size int, d time.Duration, err error) {
	o.mc.RecordBatch(size, d, err)
}
