package similarity

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iobis/dupfinder/distance"
	"github.com/iobis/dupfinder/sparse"
	"golang.org/x/sync/errgroup"
)

// Report summarises a compute call.
type Report struct {
	Datasets  int
	Pairs     int64
	Completed []Range
	Failed    []RangeFailure
	Duration  time.Duration
}

// Engine runs all-pairs similarity on a bounded worker pool.
// An Engine holds no per-run state and may be reused.
type Engine struct {
	opts options
	fn   distance.Func
}

// New creates an Engine.
func New(optFns ...Option) (*Engine, error) {
	opts := options{
		workers:   DefaultWorkers,
		chunkSize: DefaultChunkSize,
		batchSize: DefaultBatchSize,
		metric:    distance.MetricCosine,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}
	if opts.observer == nil {
		opts.observer = noopObserver{}
	}

	fn, err := distance.Provider(opts.metric)
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}
	return &Engine{opts: opts, fn: fn}, nil
}

// Plan returns the ranges covering every pair of n datasets.
func (e *Engine) Plan(n int) []Range {
	return Plan(n, e.opts.chunkSize)
}

// Compute computes every pair and writes the results to sink.
func (e *Engine) Compute(ctx context.Context, vectors map[string]*sparse.Vector, sink Sink) (*Report, error) {
	return e.ComputeRanges(ctx, vectors, e.Plan(len(vectors)), sink)
}

// ComputeRanges computes only the pairs whose outer index falls in ranges.
//
// Dimension mismatches, invalid ranges and overlapping ranges are fatal and
// nothing is computed.
// Otherwise every range runs; failed ranges, including those skipped after ctx
// is canceled, are listed in the report and in the returned *PartialError.
func (e *Engine) ComputeRanges(ctx context.Context, vectors map[string]*sparse.Vector, ranges []Range, sink Sink) (*Report, error) {
	start := time.Now()

	ids := Order(vectors)
	vs := make([]*sparse.Vector, len(ids))
	for i, id := range ids {
		vs[i] = vectors[id]
		if err := distance.CheckDims(vs[0], vs[i]); err != nil {
			return nil, fmt.Errorf("similarity: dataset %s: %w", id, err)
		}
	}
	for _, r := range ranges {
		if !r.Valid(len(ids)) {
			return nil, fmt.Errorf("%w: %s with %d datasets", ErrInvalidRange, r, len(ids))
		}
	}
	if err := checkDisjoint(ranges); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		completed []Range
		failed    []RangeFailure
		pairs     atomic.Int64
	)

	var g errgroup.Group
	g.SetLimit(e.opts.workers)

	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			failed = append(failed, RangeFailure{Range: r, Err: err})
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			t0 := time.Now()
			n, err := e.runRange(ctx, ids, vs, r, sink)
			pairs.Add(n)
			e.opts.observer.ObserveRange(r, n, time.Since(t0), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.opts.logger.Warn("range failed", slog.String("range", r.String()), slog.Any("error", err))
				failed = append(failed, RangeFailure{Range: r, Err: err})
				return nil
			}
			e.opts.logger.Debug("range done", slog.String("range", r.String()), slog.Int64("pairs", n))
			completed = append(completed, r)
			return nil
		})
	}
	_ = g.Wait()

	byStart := func(a, b Range) int { return a.Start - b.Start }
	slices.SortFunc(completed, byStart)
	slices.SortFunc(failed, func(a, b RangeFailure) int { return byStart(a.Range, b.Range) })

	report := &Report{
		Datasets:  len(ids),
		Pairs:     pairs.Load(),
		Completed: completed,
		Failed:    failed,
		Duration:  time.Since(start),
	}
	if len(failed) > 0 {
		return report, &PartialError{Failed: failed}
	}
	return report, nil
}

// checkDisjoint rejects ranges that share an outer index; they would emit
// the same pairs twice.
func checkDisjoint(ranges []Range) error {
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int { return a.Start - b.Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return fmt.Errorf("%w: %s overlaps %s", ErrInvalidRange, sorted[i], sorted[i-1])
		}
	}
	return nil
}

// runRange computes one range and returns the number of results delivered.
func (e *Engine) runRange(ctx context.Context, ids []string, vs []*sparse.Vector, r Range, sink Sink) (written int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRangePanic, p)
		}
	}()

	buf := make([]Result, 0, e.opts.batchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		t0 := time.Now()
		err := sink.WriteBatch(buf)
		e.opts.observer.ObserveBatch(len(buf), time.Since(t0), err)
		if err != nil {
			return fmt.Errorf("similarity: sink: %w", err)
		}
		written += int64(len(buf))
		buf = buf[:0]
		return nil
	}

	n := len(vs)
	for i := r.Start; i < r.End; i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		for j := i + 1; j < n; j++ {
			s, err := e.fn(vs[i], vs[j])
			if err != nil {
				return written, fmt.Errorf("similarity: %s/%s: %w", ids[i], ids[j], err)
			}
			buf = append(buf, Result{X: ids[i], Y: ids[j], Similarity: s})
			if len(buf) == cap(buf) {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
	}
	return written, flush()
}

// Pairs streams every pair lazily. Results arrive in batch order, which is
// not the enumeration order when more than one worker runs. Breaking out of
// the loop stops the workers. A compute error is yielded once, last.
func (e *Engine) Pairs(ctx context.Context, vectors map[string]*sparse.Vector) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan []Result, e.opts.workers)
		errc := make(chan error, 1)
		go func() {
			_, err := e.Compute(ctx, vectors, NewChannelSink(ctx, ch))
			close(ch)
			errc <- err
		}()

		for batch := range ch {
			for _, r := range batch {
				if !yield(r, nil) {
					cancel()
					for range ch {
					}
					<-errc
					return
				}
			}
		}
		if err := <-errc; err != nil {
			yield(Result{}, err)
		}
	}
}
