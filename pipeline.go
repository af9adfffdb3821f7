package dupfinder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/iobis/dupfinder/aggregate"
	"github.com/iobis/dupfinder/blobstore"
	"github.com/iobis/dupfinder/cell"
	"github.com/iobis/dupfinder/distance"
	"github.com/iobis/dupfinder/internal/hash"
	"github.com/iobis/dupfinder/internal/manifest"
	"github.com/iobis/dupfinder/metadata"
	"github.com/iobis/dupfinder/occurrence"
	"github.com/iobis/dupfinder/results"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/iobis/dupfinder/similarity"
	"github.com/iobis/dupfinder/sparse"
)

// Pipeline runs duplicate detection against one run directory of a blob store.
type Pipeline struct {
	store     blobstore.BlobStore
	manifests *manifest.Store
	opts      options
	logger    *Logger
	ranker    *shortlist.Ranker
}

// RunReport summarises a Run or Resume call.
type RunReport struct {
	RunID       string
	Aggregation aggregate.Stats
	Datasets    int
	Cells       int
	Pairs       int64
	Part        string
	Completed   []similarity.Range
	Failed      []similarity.RangeFailure
	// Remaining is the number of ranges still missing after this call.
	Remaining int
	Duration  time.Duration
}

// Open creates a Pipeline over store.
func Open(store blobstore.BlobStore, optFns ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("dupfinder: nil blob store")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if _, err := cell.NewEncoder(opts.precision); err != nil {
		return nil, err
	}
	if opts.chunkSize < 1 {
		return nil, fmt.Errorf("dupfinder: chunk size must be >= 1, got %d", opts.chunkSize)
	}

	logger := opts.logger
	if logger == nil {
		if opts.logLevel != nil {
			logger = NewTextLogger(*opts.logLevel)
		} else {
			logger = NoopLogger()
		}
	}

	ranker, err := shortlist.NewRanker(
		shortlist.WithThreshold(opts.threshold),
		shortlist.WithLookupConcurrency(opts.lookupWorkers),
		shortlist.WithLogger(logger.Logger),
	)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		store:     store,
		manifests: manifest.NewStore(store, opts.runDir, opts.codec),
		opts:      opts,
		logger:    logger,
		ranker:    ranker,
	}, nil
}

func (p *Pipeline) results() *results.Store {
	return results.NewStore(p.store, p.opts.runDir, p.opts.compression)
}

// Manifest returns the current run manifest.
func (p *Pipeline) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	m, err := p.manifests.Load(ctx)
	return m, translateError(err)
}

// prepared is the input of a compute attempt.
type prepared struct {
	table       *aggregate.Table
	vectors     map[string]*sparse.Vector
	fingerprint uint32
}

func (p *Pipeline) prepare(ctx context.Context, src occurrence.Source, precision int) (*prepared, error) {
	enc, err := cell.NewEncoder(precision)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	agg := aggregate.New(aggregate.WithEncoder(enc), aggregate.WithLogger(p.logger.Logger))
	table, err := agg.Aggregate(ctx, src)
	var stats aggregate.Stats
	if table != nil {
		stats = table.Stats()
	}
	p.opts.metricsCollector.RecordAggregate(stats.Scanned, stats.Retained, time.Since(start), err)
	p.logger.LogAggregate(ctx, stats, err)
	if err != nil {
		return nil, err
	}

	vectors, err := sparse.BuildTable(table)
	if err != nil {
		return nil, err
	}
	return &prepared{
		table:       table,
		vectors:     vectors,
		fingerprint: hash.Fingerprint(similarity.Order(vectors)),
	}, nil
}

// Run aggregates src, computes every dataset pair and records the run.
//
// When some ranges fail, the report is returned together with a
// *similarity.PartialError; call Resume to finish the run.
func (p *Pipeline) Run(ctx context.Context, src occurrence.Source) (*RunReport, error) {
	if _, err := p.manifests.Load(ctx); err == nil {
		return nil, ErrRunExists
	} else if !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	in, err := p.prepare(ctx, src, p.opts.precision)
	if err != nil {
		return nil, err
	}

	m := manifest.New(manifest.RunConfig{
		Precision:   p.opts.precision,
		Metric:      p.opts.metric.String(),
		ChunkSize:   p.opts.chunkSize,
		Compression: p.opts.compression.String(),
	}, len(in.vectors), in.table.Cells(), in.fingerprint)
	stats := in.table.Stats()
	m.Aggregation = manifest.AggregationStats{Scanned: stats.Scanned, Retained: stats.Retained, Dropped: stats.Dropped}

	if err := p.manifests.Save(ctx, m); err != nil {
		return nil, err
	}
	return p.compute(ctx, m, in)
}

// Resume computes the ranges the run has not completed yet.
// The run's precision, metric, chunk size and compression are reused.
func (p *Pipeline) Resume(ctx context.Context, src occurrence.Source) (*RunReport, error) {
	m, err := p.manifests.Load(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	in, err := p.prepare(ctx, src, m.Config.Precision)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(len(in.vectors), in.fingerprint); err != nil {
		return nil, err
	}
	return p.compute(ctx, m, in)
}

func (p *Pipeline) compute(ctx context.Context, m *manifest.Manifest, in *prepared) (*RunReport, error) {
	logger := p.logger.WithRun(m.RunID)
	report := &RunReport{
		RunID:       m.RunID,
		Aggregation: in.table.Stats(),
		Datasets:    len(in.vectors),
		Cells:       in.table.Cells(),
	}

	missing := m.Missing()
	if len(missing) == 0 {
		logger.InfoContext(ctx, "run already complete")
		return report, nil
	}

	metric, err := distance.ParseMetric(m.Config.Metric)
	if err != nil {
		return nil, err
	}
	compression, err := results.ParseCompression(m.Config.Compression)
	if err != nil {
		return nil, err
	}
	engine, err := similarity.New(
		similarity.WithWorkers(p.opts.workers),
		similarity.WithChunkSize(m.Config.ChunkSize),
		similarity.WithBatchSize(p.opts.batchSize),
		similarity.WithMetric(metric),
		similarity.WithLogger(logger.Logger),
		similarity.WithObserver(observer{mc: p.opts.metricsCollector}),
	)
	if err != nil {
		return nil, err
	}

	store := results.NewStore(p.store, p.opts.runDir, compression)
	part, err := store.Create(ctx, m.NextPartSeq())
	if err != nil {
		return nil, err
	}

	sr, computeErr := engine.ComputeRanges(ctx, in.vectors, missing, part)

	// The manifest must be written even when ctx was canceled mid-run.
	bg := context.WithoutCancel(ctx)
	if err := part.Close(); err != nil {
		return nil, errors.Join(computeErr, err)
	}
	if sr == nil {
		_ = store.Delete(bg, part.Name())
		return nil, computeErr
	}

	m.Record(manifest.Part{
		Name:     part.Name(),
		Rows:     part.Rows(),
		Excluded: outerIDs(similarity.Order(in.vectors), sr.Failed),
	}, sr.Completed, sr.Failed)
	if err := p.manifests.Save(bg, m); err != nil {
		return nil, err
	}
	logger.LogCompute(ctx, sr, part.Name())
	for _, f := range sr.Failed {
		logger.LogRange(ctx, f)
	}

	report.Pairs = sr.Pairs
	report.Part = part.Name()
	report.Completed = sr.Completed
	report.Failed = sr.Failed
	report.Remaining = len(m.Missing())
	report.Duration = sr.Duration
	return report, computeErr
}

// outerIDs returns the dataset ids at the outer indexes of failed ranges.
func outerIDs(ids []string, failed []similarity.RangeFailure) []string {
	var out []string
	for _, f := range failed {
		out = append(out, ids[f.Range.Start:f.Range.End]...)
	}
	return out
}

// Each streams every persisted result of a completed range exactly once.
// Rows a failed range flushed before failing are skipped; the range is
// read from the part that later completed it.
func (p *Pipeline) Each(ctx context.Context, fn func(similarity.Result) error) error {
	m, err := p.manifests.Load(ctx)
	if err != nil {
		return translateError(err)
	}
	store := p.results()
	for _, part := range m.Parts {
		skip := part.Skips()
		err := store.Scan(ctx, part.Name, func(r similarity.Result) error {
			if _, ok := skip[r.X]; ok {
				return nil
			}
			return fn(r)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Results reads every persisted result, ordered by (X, Y).
func (p *Pipeline) Results(ctx context.Context) ([]similarity.Result, error) {
	var out []similarity.Result
	if err := p.Each(ctx, func(r similarity.Result) error {
		out = append(out, r)
		return nil
	}); err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b similarity.Result) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return out, nil
}

// Export writes every persisted result to w as one results file.
func (p *Pipeline) Export(ctx context.Context, w io.Writer) (int64, error) {
	rw := results.NewWriter(w)
	var n int64
	err := p.Each(ctx, func(r similarity.Result) error {
		n++
		return rw.Write(r)
	})
	if err != nil {
		return n, err
	}
	return n, rw.Flush()
}

// Shortlist ranks persisted results above the threshold. Nothing is
// recomputed. A nil lookup yields candidates without metadata.
func (p *Pipeline) Shortlist(ctx context.Context, lookup metadata.Lookup) ([]shortlist.Candidate, shortlist.Stats, error) {
	start := time.Now()
	var (
		kept       []similarity.Result
		considered int
	)
	err := p.Each(ctx, func(r similarity.Result) error {
		considered++
		if p.ranker.Keep(r) {
			kept = append(kept, r)
		}
		return nil
	})
	if err != nil {
		p.opts.metricsCollector.RecordShortlist(considered, 0, time.Since(start), err)
		p.logger.LogShortlist(ctx, shortlist.Stats{}, err)
		return nil, shortlist.Stats{}, err
	}

	candidates, stats, err := p.ranker.Shortlist(ctx, kept, lookup)
	stats.Considered = considered
	p.opts.metricsCollector.RecordShortlist(considered, stats.Kept, time.Since(start), err)
	p.logger.LogShortlist(ctx, stats, err)
	return candidates, stats, err
}

// Reset deletes the run's manifests and parts so Run can start over.
// Other blobs under the run directory are left alone.
func (p *Pipeline) Reset(ctx context.Context) error {
	store := p.results()
	parts, err := store.Parts(ctx)
	if err != nil {
		return err
	}
	for _, name := range parts {
		if err := store.Delete(ctx, name); err != nil {
			return err
		}
	}
	if err := p.manifests.Clear(ctx); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "run reset", "dir", p.opts.runDir, "parts", len(parts))
	return nil
}
