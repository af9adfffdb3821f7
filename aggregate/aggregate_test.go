package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/iobis/dupfinder/cell"
	"github.com/iobis/dupfinder/occurrence"
	"github.com/iobis/dupfinder/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(ds string, lat, lon float64, sp int64, year int) occurrence.Record {
	return occurrence.Record{DatasetID: ds, Latitude: lat, Longitude: lon, SpeciesID: sp}.WithYear(year)
}

func TestAggregate(t *testing.T) {
	records := []occurrence.Record{
		rec("a", 51.2, 2.9, 1, 2000),
		rec("a", 51.3, 3.1, 1, 2000), // same coarse cell
		rec("a", 51.2, 2.9, 2, 2000),
		rec("b", 51.2, 2.9, 1, 2000),
		rec("b", -33.9, 18.4, 1, 2000),
		rec("b", 90, 0, 1, 2000),  // dropped
		rec("b", 0, 180, 1, 2000), // dropped
		{DatasetID: "b", Latitude: 1, Longitude: 1, SpeciesID: 1},
	}

	table, err := New().AggregateRecords(records)
	require.NoError(t, err)

	assert.Equal(t, Stats{Scanned: 8, Retained: 5, Dropped: 3, Datasets: 2, Cells: 3}, table.Stats())
	assert.Equal(t, 3, table.Cells())
	assert.True(t, table.Indexer().Frozen())
	assert.Equal(t, []string{"a", "b"}, table.Datasets())

	assert.Equal(t, []Count{
		{DatasetID: "a", Cell: 0, Count: 2},
		{DatasetID: "a", Cell: 1, Count: 1},
		{DatasetID: "b", Cell: 0, Count: 1},
		{DatasetID: "b", Cell: 2, Count: 1},
	}, table.Rows())

	assert.Equal(t, int64(3), table.RecordCount("a"))
	assert.Equal(t, int64(2), table.RecordCount("b"))
	assert.Equal(t, int64(0), table.RecordCount("missing"))

	assert.Equal(t, map[uint32]uint32{0: 2, 1: 1}, table.Counts("a"))
}

func TestAggregatePrecision(t *testing.T) {
	records := []occurrence.Record{
		rec("a", 51.2, 2.9, 1, 2000),
		rec("a", 51.3, 3.1, 1, 2000),
	}

	enc, err := cell.NewEncoder(6)
	require.NoError(t, err)
	table, err := New(WithEncoder(enc)).AggregateRecords(records)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Cells())
}

func TestAggregateCountsMatchRetained(t *testing.T) {
	rng := testutil.NewRNG(7)
	records := rng.Occurrences(20, 2000)

	table, err := New().AggregateRecords(records)
	require.NoError(t, err)

	perDataset := map[string]int64{}
	var total int64
	for _, row := range table.Rows() {
		assert.GreaterOrEqual(t, row.Count, uint32(1))
		assert.Less(t, int(row.Cell), table.Cells())
		perDataset[row.DatasetID] += int64(row.Count)
		total += int64(row.Count)
	}
	assert.Equal(t, table.Stats().Retained, total)
	for ds, n := range perDataset {
		assert.Equal(t, table.RecordCount(ds), n)
	}
}

func TestAggregateSourceError(t *testing.T) {
	boom := errors.New("read failed")
	src := occurrence.SourceFunc(func(ctx context.Context, fn func(occurrence.Record) error) error {
		if err := fn(rec("a", 1, 1, 1, 2000)); err != nil {
			return err
		}
		return boom
	})
	_, err := New().Aggregate(context.Background(), src)
	assert.ErrorIs(t, err, boom)
}

func TestAggregateNaN(t *testing.T) {
	table, err := New().AggregateRecords([]occurrence.Record{rec("a", math.NaN(), 1, 1, 2000)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), table.Stats().Dropped)
	assert.Empty(t, table.Rows())
}
