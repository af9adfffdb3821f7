// Package prometheus exports pipeline metrics to Prometheus.
//
//	reg := prom.NewRegistry()
//	c := prometheus.NewCollector(reg)
//	p, _ := dupfinder.Open(store, dupfinder.WithMetricsCollector(c))
package prometheus

import (
	"time"

	"github.com/iobis/dupfinder"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "dupfinder"

// Collector implements dupfinder.MetricsCollector with Prometheus vectors.
type Collector struct {
	stageLatency *prom.HistogramVec
	records      *prom.CounterVec
	pairs        prom.Counter
	ranges       *prom.CounterVec
	batchRows    prom.Histogram
	candidates   *prom.CounterVec
}

var _ dupfinder.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prom.Registerer) *Collector {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	c := &Collector{
		stageLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage", "status"}),
		records: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "records_total",
			Help:      "Occurrence records scanned, by outcome",
		}, []string{"outcome"}),
		pairs: prom.NewCounter(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "pairs_total",
			Help:      "Dataset pairs computed",
		}),
		ranges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "ranges_total",
			Help:      "Similarity ranges processed",
		}, []string{"status"}),
		batchRows: prom.NewHistogram(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_rows",
			Help:      "Rows per results batch",
			Buckets:   prom.ExponentialBuckets(16, 4, 6),
		}),
		candidates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "shortlist_pairs_total",
			Help:      "Pairs seen by the shortlist, by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.stageLatency, c.records, c.pairs, c.ranges, c.batchRows, c.candidates)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAggregate implements dupfinder.MetricsCollector.
func (c *Collector) RecordAggregate(scanned, retained int64, d time.Duration, err error) {
	c.stageLatency.WithLabelValues("aggregate", status(err)).Observe(d.Seconds())
	c.records.WithLabelValues("retained").Add(float64(retained))
	c.records.WithLabelValues("dropped").Add(float64(scanned - retained))
}

// RecordRange implements dupfinder.MetricsCollector.
func (c *Collector) RecordRange(pairs int64, d time.Duration, err error) {
	c.stageLatency.WithLabelValues("range", status(err)).Observe(d.Seconds())
	c.ranges.WithLabelValues(status(err)).Inc()
	c.pairs.Add(float64(pairs))
}

// RecordBatch implements dupfinder.MetricsCollector.
func (c *Collector) RecordBatch(size int, d time.Duration, err error) {
	c.stageLatency.WithLabelValues("batch", status(err)).Observe(d.Seconds())
	if err == nil {
		c.batchRows.Observe(float64(size))
	}
}

// RecordShortlist implements dupfinder.MetricsCollector.
func (c *Collector) RecordShortlist(considered, kept int, d time.Duration, err error) {
	c.stageLatency.WithLabelValues("shortlist", status(err)).Observe(d.Seconds())
	c.candidates.WithLabelValues("kept").Add(float64(kept))
	c.candidates.WithLabelValues("dropped").Add(float64(considered - kept))
}
