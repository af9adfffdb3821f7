package dupfinder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/iobis/dupfinder/aggregate"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/iobis/dupfinder/similarity"
	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	obs := observer{mc: mc}

	mc.RecordAggregate(100, 90, time.Second, nil)
	obs.ObserveRange(similarity.Range{Start: 0, End: 2}, 10, 2*time.Millisecond, nil)
	obs.ObserveRange(similarity.Range{Start: 2, End: 4}, 0, 4*time.Millisecond, errors.New("boom"))
	obs.ObserveBatch(10, time.Millisecond, nil)
	mc.RecordShortlist(10, 2, time.Millisecond, nil)

	stats := mc.GetStats()
	assert.Equal(t, int64(100), stats.RecordsScanned)
	assert.Equal(t, int64(90), stats.RecordsRetained)
	assert.Equal(t, int64(2), stats.RangeCount)
	assert.Equal(t, int64(1), stats.RangeErrors)
	assert.Equal(t, int64(3*time.Millisecond), stats.RangeAvgNanos)
	assert.Equal(t, int64(10), stats.PairsComputed)
	assert.Equal(t, int64(1), stats.BatchCount)
	assert.Equal(t, int64(2), stats.ShortlistKept)

	assert.Zero(t, (&BasicMetricsCollector{}).GetStats().RangeAvgNanos)
}

func TestLoggerHelpers(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).WithRun("r1")

	l.LogAggregate(ctx, aggregate.Stats{Scanned: 5, Retained: 4, Dropped: 1, Datasets: 2, Cells: 3}, nil)
	assert.Contains(t, buf.String(), "aggregation completed")
	assert.Contains(t, buf.String(), "run=r1")
	assert.Contains(t, buf.String(), "dropped=1")

	buf.Reset()
	l.LogCompute(ctx, &similarity.Report{Datasets: 3, Pairs: 3, Failed: []similarity.RangeFailure{{}}}, "p")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "failed_ranges=1")

	buf.Reset()
	l.LogShortlist(ctx, shortlist.Stats{Considered: 3, Kept: 1, Warnings: 2}, nil)
	assert.Contains(t, buf.String(), "missing=2")

	buf.Reset()
	l.LogShortlist(ctx, shortlist.Stats{}, errors.New("lookup down"))
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	NoopLogger().Error("dropped")
	assert.Empty(t, buf.String())
}
