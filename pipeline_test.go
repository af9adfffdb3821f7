package dupfinder

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/iobis/dupfinder/blobstore"
	"github.com/iobis/dupfinder/internal/manifest"
	"github.com/iobis/dupfinder/metadata"
	"github.com/iobis/dupfinder/occurrence"
	"github.com/iobis/dupfinder/results"
	"github.com/iobis/dupfinder/similarity"
	"github.com/iobis/dupfinder/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() occurrence.SliceSource {
	rng := testutil.NewRNG(7)
	records := rng.Occurrences(8, 2000)
	records = append(records, testutil.Republish(records, "ds-0", "ds-copy")...)
	return occurrence.SliceSource(records)
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mc := &BasicMetricsCollector{}

	p, err := Open(store, WithChunkSize(2), WithWorkers(3), WithMetricsCollector(mc))
	require.NoError(t, err)

	report, err := p.Run(ctx, fixture())
	require.NoError(t, err)
	assert.Equal(t, 9, report.Datasets)
	assert.Equal(t, similarity.TotalPairs(9), report.Pairs)
	assert.Equal(t, "pairs-000001.txt.zst", report.Part)
	assert.Empty(t, report.Failed)
	assert.Zero(t, report.Remaining)
	assert.NotEmpty(t, report.RunID)

	m, err := p.Manifest(ctx)
	require.NoError(t, err)
	assert.True(t, m.Done())
	assert.Equal(t, report.RunID, m.RunID)
	assert.Equal(t, "zstd", m.Config.Compression)

	res, err := p.Results(ctx)
	require.NoError(t, err)
	require.Len(t, res, 36)
	for _, r := range res {
		assert.Less(t, r.X, r.Y)
		if r.X == "ds-0" && r.Y == "ds-copy" {
			assert.InDelta(t, 1.0, r.Similarity, 1e-12)
		}
	}

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.AggregateCount)
	assert.Equal(t, int64(4), stats.RangeCount)
	assert.Equal(t, int64(36), stats.PairsComputed)

	_, err = p.Run(ctx, fixture())
	assert.ErrorIs(t, err, ErrRunExists)
}

func TestPipelineShortlist(t *testing.T) {
	ctx := context.Background()
	p, err := Open(blobstore.NewMemoryStore(), WithCompression(results.CompressionNone))
	require.NoError(t, err)

	_, _, err = p.Shortlist(ctx, nil)
	assert.ErrorIs(t, err, ErrNoRun)

	_, err = p.Run(ctx, fixture())
	require.NoError(t, err)

	lookup := metadata.NewMap(metadata.Dataset{ID: "ds-0", Title: "Original", RecordCount: 250})
	candidates, stats, err := p.Shortlist(ctx, lookup)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "ds-0", candidates[0].X)
	assert.Equal(t, "ds-copy", candidates[0].Y)
	assert.Equal(t, "Original", candidates[0].XMeta.Title)
	assert.Nil(t, candidates[0].YMeta)
	assert.Equal(t, 36, stats.Considered)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 1, stats.Warnings)
}

func TestPipelineResume(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	p, err := Open(store, WithChunkSize(3), WithRunDir("runs/a"))
	require.NoError(t, err)

	_, err = p.Resume(ctx, fixture())
	assert.ErrorIs(t, err, ErrNoRun)

	_, err = p.Run(ctx, fixture())
	require.NoError(t, err)

	// Record the middle range as failed after it flushed its pairs.
	m, err := p.Manifest(ctx)
	require.NoError(t, err)
	require.Len(t, m.Completed, 3)
	require.Len(t, m.Parts, 1)
	assert.Empty(t, m.Parts[0].Excluded)
	m.Completed = append(m.Completed[:1], m.Completed[2:]...)
	m.Failed = []manifest.FailedRange{{Range: similarity.Range{Start: 3, End: 6}, Error: "sink: boom"}}
	m.Parts[0].Excluded = []string{"ds-3", "ds-4", "ds-5"}
	require.NoError(t, p.manifests.Save(ctx, m))

	partial, err := p.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, partial, 36-int(similarity.Range{Start: 3, End: 6}.Pairs(9)), "rows of a failed range are not read")
	for _, r := range partial {
		assert.NotContains(t, []string{"ds-3", "ds-4", "ds-5"}, r.X)
	}

	report, err := p.Resume(ctx, fixture())
	require.NoError(t, err)
	assert.Equal(t, []similarity.Range{{Start: 3, End: 6}}, report.Completed)
	assert.Equal(t, similarity.Range{Start: 3, End: 6}.Pairs(9), report.Pairs)
	assert.Equal(t, "pairs-000002.txt.zst", report.Part)

	m, err = p.Manifest(ctx)
	require.NoError(t, err)
	assert.True(t, m.Done())
	require.Len(t, m.Parts, 2)
	assert.Empty(t, m.Parts[1].Excluded)
	assert.Empty(t, m.Failed)

	res, err := p.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 36, "pairs written twice are read once")
	seen := make(map[[2]string]bool, len(res))
	for _, r := range res {
		k := [2]string{r.X, r.Y}
		assert.False(t, seen[k], "duplicate pair %v", k)
		seen[k] = true
	}

	var buf bytes.Buffer
	n, err := p.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(36), n)
	exported, err := results.ReadAll(&buf)
	require.NoError(t, err)
	assert.ElementsMatch(t, res, exported)

	report, err = p.Resume(ctx, fixture())
	require.NoError(t, err)
	assert.Zero(t, report.Pairs, "a complete run has nothing to resume")
	assert.Empty(t, report.Part)
}

func TestPipelineIdempotentUnderShuffle(t *testing.T) {
	ctx := context.Background()

	run := func(src occurrence.Source) []similarity.Result {
		p, err := Open(blobstore.NewMemoryStore(), WithChunkSize(2), WithWorkers(4))
		require.NoError(t, err)
		_, err = p.Run(ctx, src)
		require.NoError(t, err)
		res, err := p.Results(ctx)
		require.NoError(t, err)
		return res
	}

	src := fixture()
	shuffled := slices.Clone(src)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	require.NotEqual(t, src, shuffled)

	want := run(src)
	got := run(shuffled)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].X, got[i].X)
		assert.Equal(t, want[i].Y, got[i].Y)
		assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-12, "%s/%s", want[i].X, want[i].Y)
	}
}

func TestPipelineResumeFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	p, err := Open(blobstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = p.Run(ctx, fixture())
	require.NoError(t, err)

	other := append(fixture(), occurrence.Record{DatasetID: "ds-new", Latitude: 1, Longitude: 1, SpeciesID: 1}.WithYear(2000))
	_, err = p.Resume(ctx, other)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)
}

func TestPipelinePartialFailure(t *testing.T) {
	ctx := context.Background()
	p, err := Open(blobstore.NewMemoryStore(), WithChunkSize(1), WithWorkers(2))
	require.NoError(t, err)

	// "a bad" sorts first and cannot be written to a results file.
	src := append(fixture(), occurrence.Record{DatasetID: "a bad", Latitude: 1, Longitude: 1, SpeciesID: 1}.WithYear(2000))
	report, err := p.Run(ctx, src)
	require.Error(t, err)

	var pe *similarity.PartialError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, results.ErrInvalidID)
	assert.Equal(t, []similarity.Range{{Start: 0, End: 1}}, pe.Ranges())

	require.NotNil(t, report)
	assert.Len(t, report.Completed, 8)
	assert.Equal(t, 1, report.Remaining)

	m, err := p.Manifest(ctx)
	require.NoError(t, err)
	require.Len(t, m.Failed, 1)
	assert.Equal(t, similarity.Range{Start: 0, End: 1}, m.Failed[0].Range)
	assert.False(t, m.Done())
	require.Len(t, m.Parts, 1)
	assert.Equal(t, []string{"a bad"}, m.Parts[0].Excluded)

	res, err := p.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 36, "pairs among the other nine datasets")
}

func TestPipelineReset(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "run/input.csv", []byte("keep")))

	p, err := Open(store)
	require.NoError(t, err)
	_, err = p.Run(ctx, fixture())
	require.NoError(t, err)

	require.NoError(t, p.Reset(ctx))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"run/input.csv"}, names)

	_, err = p.Run(ctx, fixture())
	assert.NoError(t, err)
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	tests := []struct {
		name string
		opt  Option
	}{
		{"precision", WithPrecision(13)},
		{"threshold", WithThreshold(1.5)},
		{"chunk", WithChunkSize(0)},
		{"lookup", WithLookupConcurrency(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(blobstore.NewMemoryStore(), tt.opt)
			assert.Error(t, err)
		})
	}
}
