// Package aggregate turns occurrence rows into per-dataset cell counts.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/iobis/dupfinder/cell"
	"github.com/iobis/dupfinder/occurrence"
)

// ErrCountOverflow is returned when a single (dataset, cell) count exceeds uint32.
var ErrCountOverflow = errors.New("aggregate: count overflow")

// Count is the number of retained occurrences of one dataset in one cell.
type Count struct {
	DatasetID string
	Cell      uint32
	Count     uint32
}

// Stats summarises an aggregation.
type Stats struct {
	Scanned  int64
	Retained int64
	Dropped  int64
	Datasets int
	Cells    int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEncoder sets the cell encoder.
func WithEncoder(e cell.Encoder) Option {
	return func(a *Aggregator) {
		a.encoder = e
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Aggregator filters, bins and counts occurrences. It is single-threaded.
type Aggregator struct {
	encoder cell.Encoder
	logger  *slog.Logger
}

// New creates an Aggregator with geohash precision cell.DefaultPrecision.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Aggregate scans src and returns the count table. The table's indexer is frozen.
func (a *Aggregator) Aggregate(ctx context.Context, src occurrence.Source) (*Table, error) {
	t := newTable()
	err := src.Scan(ctx, func(r occurrence.Record) error {
		return a.add(t, r)
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	t.finish()

	a.logger.Debug("aggregated occurrences",
		slog.Int64("scanned", t.stats.Scanned),
		slog.Int64("retained", t.stats.Retained),
		slog.Int64("dropped", t.stats.Dropped),
		slog.Int("datasets", t.stats.Datasets),
		slog.Int("cells", t.stats.Cells),
	)
	return t, nil
}

// AggregateRecords is Aggregate over an in-memory slice.
func (a *Aggregator) AggregateRecords(records []occurrence.Record) (*Table, error) {
	return a.Aggregate(context.Background(), occurrence.SliceSource(records))
}

func (a *Aggregator) add(t *Table, r occurrence.Record) error {
	t.stats.Scanned++
	if !r.Valid() {
		t.stats.Dropped++
		return nil
	}

	idx, err := t.indexer.IndexOf(a.encoder.Encode(r.Latitude, r.Longitude, r.SpeciesID, r.Year))
	if err != nil {
		return err
	}

	m, ok := t.counts[r.DatasetID]
	if !ok {
		m = make(map[uint32]uint32)
		t.counts[r.DatasetID] = m
	}
	if m[idx] == math.MaxUint32 {
		return fmt.Errorf("%w: dataset %s cell %d", ErrCountOverflow, r.DatasetID, idx)
	}
	m[idx]++
	t.records[r.DatasetID]++
	t.stats.Retained++
	return nil
}

// Table holds the sparse per-dataset counts of one run.
type Table struct {
	indexer *cell.Indexer
	counts  map[string]map[uint32]uint32
	records map[string]int64
	stats   Stats
}

func newTable() *Table {
	return &Table{
		indexer: cell.NewIndexer(),
		counts:  make(map[string]map[uint32]uint32),
		records: make(map[string]int64),
	}
}

func (t *Table) finish() {
	t.indexer.Freeze()
	t.stats.Datasets = len(t.counts)
	t.stats.Cells = t.indexer.Len()
}

// Indexer returns the frozen cell indexer.
func (t *Table) Indexer() *cell.Indexer { return t.indexer }

// Stats returns aggregation statistics.
func (t *Table) Stats() Stats { return t.stats }

// Cells returns the number of distinct cells, the vector dimension.
func (t *Table) Cells() int { return t.indexer.Len() }

// Datasets returns the dataset ids with at least one retained record, sorted.
func (t *Table) Datasets() []string {
	ids := make([]string, 0, len(t.counts))
	for id := range t.counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Counts returns a copy of the cell counts of one dataset.
func (t *Table) Counts(dataset string) map[uint32]uint32 {
	m := t.counts[dataset]
	out := make(map[uint32]uint32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecordCount returns the number of retained records of dataset.
func (t *Table) RecordCount(dataset string) int64 {
	return t.records[dataset]
}

// Rows flattens the table, ordered by dataset id then cell index.
func (t *Table) Rows() []Count {
	var n int
	for _, m := range t.counts {
		n += len(m)
	}
	rows := make([]Count, 0, n)
	for _, id := range t.Datasets() {
		m := t.counts[id]
		cells := make([]uint32, 0, len(m))
		for c := range m {
			cells = append(cells, c)
		}
		slices.Sort(cells)
		for _, c := range cells {
			rows = append(rows, Count{DatasetID: id, Cell: c, Count: m[c]})
		}
	}
	return rows
}
