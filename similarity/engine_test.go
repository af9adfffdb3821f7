package similarity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/iobis/dupfinder/aggregate"
	"github.com/iobis/dupfinder/distance"
	"github.com/iobis/dupfinder/sparse"
	"github.com/iobis/dupfinder/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectors(t *testing.T, dim int, m map[string]map[uint32]float64) map[string]*sparse.Vector {
	t.Helper()
	out := make(map[string]*sparse.Vector, len(m))
	for id, entries := range m {
		v, err := sparse.New(dim, entries)
		require.NoError(t, err)
		out[id] = v
	}
	return out
}

func syntheticVectors(t *testing.T, datasets int) map[string]*sparse.Vector {
	t.Helper()
	rng := testutil.NewRNG(99)
	records := rng.Occurrences(datasets, datasets*50)
	records = append(records, testutil.Republish(records, testutil.DatasetID(0), "copy-of-0")...)

	table, err := aggregate.New().AggregateRecords(records)
	require.NoError(t, err)
	vs, err := sparse.BuildTable(table)
	require.NoError(t, err)
	return vs
}

func sortResults(rs []Result) []Result {
	slices.SortFunc(rs, func(a, b Result) int {
		if a.X != b.X {
			if a.X < b.X {
				return -1
			}
			return 1
		}
		if a.Y < b.Y {
			return -1
		}
		if a.Y > b.Y {
			return 1
		}
		return 0
	})
	return rs
}

func TestComputeSmall(t *testing.T) {
	vs := vectors(t, 4, map[string]map[uint32]float64{
		"c": {0: 1},
		"a": {0: 1, 1: 1},
		"b": {2: 3},
	})
	eng, err := New(WithWorkers(2), WithChunkSize(1), WithBatchSize(1))
	require.NoError(t, err)

	sink := &SliceSink{}
	report, err := eng.Compute(context.Background(), vs, sink)
	require.NoError(t, err)

	got := sortResults(sink.Results())
	require.Len(t, got, 3)
	assert.Equal(t, Result{X: "a", Y: "b", Similarity: 0}, got[0])
	assert.Equal(t, "a", got[1].X)
	assert.Equal(t, "c", got[1].Y)
	assert.InDelta(t, 0.7071067811865475, got[1].Similarity, 1e-12)
	assert.Equal(t, Result{X: "b", Y: "c", Similarity: 0}, got[2])

	assert.Equal(t, 3, report.Datasets)
	assert.Equal(t, int64(3), report.Pairs)
	assert.Equal(t, []Range{{0, 1}, {1, 2}}, report.Completed)
	assert.Empty(t, report.Failed)
}

func TestComputeEveryPairOnce(t *testing.T) {
	vs := syntheticVectors(t, 30)
	n := len(vs)

	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			eng, err := New(WithWorkers(workers), WithChunkSize(4), WithBatchSize(7))
			require.NoError(t, err)

			sink := &SliceSink{}
			report, err := eng.Compute(context.Background(), vs, sink)
			require.NoError(t, err)
			assert.Equal(t, TotalPairs(n), report.Pairs)

			seen := map[[2]string]bool{}
			for _, r := range sink.Results() {
				assert.Less(t, r.X, r.Y)
				key := [2]string{r.X, r.Y}
				assert.False(t, seen[key], "duplicate pair %v", key)
				seen[key] = true
				assert.GreaterOrEqual(t, r.Similarity, 0.0)
				assert.LessOrEqual(t, r.Similarity, 1.0)

				want, err := distance.Cosine(vs[r.X], vs[r.Y])
				require.NoError(t, err)
				assert.Equal(t, want, r.Similarity)
			}
			assert.Len(t, seen, int(TotalPairs(n)))
			assert.True(t, seen[[2]string{testutil.DatasetID(0), "copy-of-0"}] ||
				seen[[2]string{"copy-of-0", testutil.DatasetID(0)}])
		})
	}
}

func TestComputeDuplicateScoresOne(t *testing.T) {
	vs := syntheticVectors(t, 5)
	eng, err := New()
	require.NoError(t, err)

	sink := &SliceSink{}
	_, err = eng.Compute(context.Background(), vs, sink)
	require.NoError(t, err)

	for _, r := range sink.Results() {
		if (r.X == "copy-of-0" && r.Y == testutil.DatasetID(0)) || (r.Y == "copy-of-0" && r.X == testutil.DatasetID(0)) {
			assert.InDelta(t, 1.0, r.Similarity, 1e-12)
			return
		}
	}
	t.Fatal("duplicate pair not found")
}

func TestComputeDegenerate(t *testing.T) {
	eng, err := New()
	require.NoError(t, err)

	for _, m := range []map[string]map[uint32]float64{
		{},
		{"only": {0: 1}},
	} {
		sink := &SliceSink{}
		report, err := eng.Compute(context.Background(), vectors(t, 2, m), sink)
		require.NoError(t, err)
		assert.Equal(t, 0, sink.Len())
		assert.Equal(t, int64(0), report.Pairs)
	}
}

func TestComputeDimensionMismatchIsFatal(t *testing.T) {
	a, err := sparse.New(3, map[uint32]float64{0: 1})
	require.NoError(t, err)
	b, err := sparse.New(4, map[uint32]float64{0: 1})
	require.NoError(t, err)

	eng, err := New()
	require.NoError(t, err)

	sink := &SliceSink{}
	report, err := eng.Compute(context.Background(), map[string]*sparse.Vector{"a": a, "b": b}, sink)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, distance.ErrDimensionMismatch)
	assert.Equal(t, 0, sink.Len())
}

func TestComputeRangesInvalid(t *testing.T) {
	vs := syntheticVectors(t, 3)
	eng, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		ranges []Range
	}{
		{"out of bounds", []Range{{Start: 0, End: 99}}},
		{"empty", []Range{{Start: 1, End: 1}}},
		{"duplicate", []Range{{Start: 0, End: 1}, {Start: 0, End: 1}}},
		{"overlap", []Range{{Start: 1, End: 2}, {Start: 0, End: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &SliceSink{}
			report, err := eng.ComputeRanges(context.Background(), vs, tt.ranges, sink)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, ErrInvalidRange)
			assert.Equal(t, 0, sink.Len())
		})
	}

	_, err = eng.ComputeRanges(context.Background(), vs, []Range{{Start: 1, End: 2}, {Start: 0, End: 1}}, &SliceSink{})
	assert.NoError(t, err, "adjacent ranges in any order are disjoint")
}

func TestComputeRangesResume(t *testing.T) {
	vs := syntheticVectors(t, 12)
	eng, err := New(WithChunkSize(3))
	require.NoError(t, err)

	full := &SliceSink{}
	_, err = eng.Compute(context.Background(), vs, full)
	require.NoError(t, err)

	plan := eng.Plan(len(vs))
	require.Greater(t, len(plan), 2)

	first, second := &SliceSink{}, &SliceSink{}
	_, err = eng.ComputeRanges(context.Background(), vs, plan[:2], first)
	require.NoError(t, err)
	_, err = eng.ComputeRanges(context.Background(), vs, plan[2:], second)
	require.NoError(t, err)

	combined := append(first.Results(), second.Results()...)
	assert.Equal(t, sortResults(full.Results()), sortResults(combined))
}

func TestComputePartialFailure(t *testing.T) {
	vs := syntheticVectors(t, 10)
	n := len(vs)
	ids := Order(vs)

	boom := errors.New("disk full")
	inner := &SliceSink{}
	sink := SinkFunc(func(batch []Result) error {
		for _, r := range batch {
			if r.X == ids[2] {
				return boom
			}
		}
		return inner.WriteBatch(batch)
	})

	eng, err := New(WithWorkers(3), WithChunkSize(1), WithBatchSize(1))
	require.NoError(t, err)

	report, err := eng.Compute(context.Background(), vs, sink)
	require.Error(t, err)
	require.NotNil(t, report)

	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Range{{2, 3}}, pe.Ranges())
	assert.Len(t, report.Completed, len(Plan(n, 1))-1)
	assert.Equal(t, TotalPairs(n)-int64(n-3), int64(inner.Len()))
	assert.Contains(t, err.Error(), "1 range(s) failed")
}

func TestComputeRecoversPanics(t *testing.T) {
	vs := syntheticVectors(t, 4)
	sink := SinkFunc(func([]Result) error { panic("bad sink") })

	eng, err := New(WithChunkSize(1))
	require.NoError(t, err)

	_, err = eng.Compute(context.Background(), vs, sink)
	assert.ErrorIs(t, err, ErrRangePanic)
}

func TestComputeCanceled(t *testing.T) {
	vs := syntheticVectors(t, 8)
	eng, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Compute(ctx, vs, &SliceSink{})
	assert.ErrorIs(t, err, context.Canceled)

	t.Run("mid run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var once sync.Once
		sink := SinkFunc(func([]Result) error {
			once.Do(cancel)
			return nil
		})
		eng, err := New(WithWorkers(1), WithChunkSize(1), WithBatchSize(1))
		require.NoError(t, err)

		report, err := eng.Compute(ctx, vs, sink)
		var pe *PartialError
		require.ErrorAs(t, err, &pe)
		assert.ErrorIs(t, err, context.Canceled)

		var covered []Range
		covered = append(covered, report.Completed...)
		covered = append(covered, pe.Ranges()...)
		assert.ElementsMatch(t, Plan(len(vs), 1), covered, "every range is either completed or reported")
	})
}

type countingObserver struct {
	mu      sync.Mutex
	ranges  int
	batches int
}

func (o *countingObserver) ObserveRange(Range, int64, time.Duration, error) {
	o.mu.Lock()
	o.ranges++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveBatch(int, time.Duration, error) {
	o.mu.Lock()
	o.batches++
	o.mu.Unlock()
}

func TestObserverAndMetric(t *testing.T) {
	vs := syntheticVectors(t, 6)
	obs := &countingObserver{}
	eng, err := New(WithObserver(obs), WithMetric(distance.MetricJaccard), WithChunkSize(2))
	require.NoError(t, err)

	sink := &SliceSink{}
	_, err = eng.Compute(context.Background(), vs, sink)
	require.NoError(t, err)

	assert.Equal(t, len(eng.Plan(len(vs))), obs.ranges)
	assert.Positive(t, obs.batches)

	for _, r := range sink.Results() {
		want, err := distance.Jaccard(vs[r.X], vs[r.Y])
		require.NoError(t, err)
		assert.Equal(t, want, r.Similarity)
	}
}

func TestNewValidation(t *testing.T) {
	for _, opt := range []Option{WithWorkers(0), WithChunkSize(0), WithBatchSize(-1), WithMetric(distance.Metric(42))} {
		_, err := New(opt)
		assert.Error(t, err)
	}
}

func TestPairs(t *testing.T) {
	vs := syntheticVectors(t, 9)
	eng, err := New(WithWorkers(3), WithChunkSize(2), WithBatchSize(5))
	require.NoError(t, err)

	var got []Result
	for r, err := range eng.Pairs(context.Background(), vs) {
		require.NoError(t, err)
		got = append(got, r)
	}
	assert.Len(t, got, int(TotalPairs(len(vs))))

	t.Run("early break", func(t *testing.T) {
		n := 0
		for _, err := range eng.Pairs(context.Background(), vs) {
			require.NoError(t, err)
			n++
			if n == 3 {
				break
			}
		}
		assert.Equal(t, 3, n)
	})

	t.Run("error yielded", func(t *testing.T) {
		a, _ := sparse.New(1, nil)
		b, _ := sparse.New(2, nil)
		var errs []error
		for _, err := range eng.Pairs(context.Background(), map[string]*sparse.Vector{"a": a, "b": b}) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], distance.ErrDimensionMismatch)
	})
}
