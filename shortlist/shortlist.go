// Package shortlist selects and ranks likely-duplicate dataset pairs.
package shortlist

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/iobis/dupfinder/metadata"
	"github.com/iobis/dupfinder/similarity"
	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the similarity a pair must exceed to be shortlisted.
const DefaultThreshold = 0.85

// Candidate is a shortlisted pair with its metadata. A nil meta means the
// dataset was not found.
type Candidate struct {
	X          string            `json:"x"`
	Y          string            `json:"y"`
	Similarity float64           `json:"similarity"`
	XMeta      *metadata.Dataset `json:"x_meta,omitempty"`
	YMeta      *metadata.Dataset `json:"y_meta,omitempty"`
}

// CombinedRecords is the sum of both datasets' record counts. Missing
// metadata counts as zero.
func (c Candidate) CombinedRecords() int64 {
	var n int64
	if c.XMeta != nil {
		n += c.XMeta.RecordCount
	}
	if c.YMeta != nil {
		n += c.YMeta.RecordCount
	}
	return n
}

// Stats describes a shortlisting run.
type Stats struct {
	Considered int
	Kept       int
	// Warnings is the number of dataset ids without metadata.
	Warnings int
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithThreshold sets the exclusive lower bound on similarity.
func WithThreshold(th float64) Option {
	return func(r *Ranker) {
		r.threshold = th
	}
}

// WithLogger sets the logger for missing-metadata warnings. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		r.logger = l
	}
}

// WithLookupConcurrency bounds parallel metadata lookups.
func WithLookupConcurrency(n int) Option {
	return func(r *Ranker) {
		r.concurrency = n
	}
}

// Ranker filters results by threshold, joins metadata and orders candidates.
type Ranker struct {
	threshold   float64
	concurrency int
	logger      *slog.Logger
}

// NewRanker creates a Ranker.
func NewRanker(opts ...Option) (*Ranker, error) {
	r := &Ranker{threshold: DefaultThreshold, concurrency: 4}
	for _, opt := range opts {
		opt(r)
	}
	if r.threshold < 0 || r.threshold > 1 {
		return nil, fmt.Errorf("shortlist: threshold must be in [0, 1], got %v", r.threshold)
	}
	if r.concurrency < 1 {
		return nil, fmt.Errorf("shortlist: lookup concurrency must be >= 1, got %d", r.concurrency)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Threshold returns the configured threshold.
func (r *Ranker) Threshold() float64 { return r.threshold }

// Keep reports whether res passes the threshold.
func (r *Ranker) Keep(res similarity.Result) bool {
	return res.Similarity > r.threshold
}

// Shortlist keeps results strictly above the threshold, attaches metadata and
// ranks them by similarity, then combined record count, both descending.
// Ties are broken by (X, Y) so output is deterministic. Duplicate pairs are
// collapsed. Lookup errors abort; missing metadata only logs a warning.
func (r *Ranker) Shortlist(ctx context.Context, results []similarity.Result, lookup metadata.Lookup) ([]Candidate, Stats, error) {
	stats := Stats{Considered: len(results)}

	seen := make(map[[2]string]bool)
	var cands []Candidate
	ids := make(map[string]*metadata.Dataset)
	for _, res := range results {
		if !r.Keep(res) {
			continue
		}
		key := [2]string{res.X, res.Y}
		if seen[key] {
			continue
		}
		seen[key] = true
		cands = append(cands, Candidate{X: res.X, Y: res.Y, Similarity: res.Similarity})
		ids[res.X] = nil
		ids[res.Y] = nil
	}

	if lookup == nil {
		lookup = metadata.Map{}
	}
	missing, err := r.resolve(ctx, ids, lookup)
	if err != nil {
		return nil, stats, err
	}
	stats.Warnings = len(missing)
	for _, id := range missing {
		r.logger.Warn("dataset metadata missing", slog.String("dataset", id))
	}

	for i := range cands {
		cands[i].XMeta = ids[cands[i].X]
		cands[i].YMeta = ids[cands[i].Y]
	}
	slices.SortFunc(cands, compare)
	stats.Kept = len(cands)
	return cands, stats, nil
}

// resolve fills ids in place and returns the ids without metadata, sorted.
func (r *Ranker) resolve(ctx context.Context, ids map[string]*metadata.Dataset, lookup metadata.Lookup) ([]string, error) {
	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}

	found := make([]*metadata.Dataset, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range keys {
		g.Go(func() error {
			d, ok, err := lookup.Lookup(gctx, id)
			if err != nil {
				return fmt.Errorf("shortlist: metadata for %s: %w", id, err)
			}
			if ok {
				found[i] = &d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []string
	for i, id := range keys {
		if found[i] == nil {
			missing = append(missing, id)
			continue
		}
		ids[id] = found[i]
	}
	slices.Sort(missing)
	return missing, nil
}

func compare(a, b Candidate) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	if c := cmp.Compare(b.CombinedRecords(), a.CombinedRecords()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}
