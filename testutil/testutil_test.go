package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42).Occurrences(5, 100)
	b := NewRNG(42).Occurrences(5, 100)
	assert.Equal(t, a, b)

	r := NewRNG(42)
	first := r.Intn(1000)
	r.Reset()
	assert.Equal(t, first, r.Intn(1000))
	assert.Equal(t, int64(42), r.Seed())
}

func TestOccurrences(t *testing.T) {
	records := NewRNG(1).Occurrences(4, 1000)
	require.Len(t, records, 1000)

	var valid int
	seen := map[string]bool{}
	for _, rec := range records {
		seen[rec.DatasetID] = true
		if rec.Valid() {
			valid++
		}
	}
	assert.Len(t, seen, 4)
	assert.Greater(t, valid, 900)
	assert.Less(t, valid, 1000)
}

func TestRepublish(t *testing.T) {
	records := NewRNG(3).Occurrences(3, 300)
	dup := Republish(records, DatasetID(1), "copy")

	var n int
	for _, rec := range records {
		if rec.DatasetID == DatasetID(1) {
			n++
		}
	}
	require.Len(t, dup, n)
	for _, rec := range dup {
		assert.Equal(t, "copy", rec.DatasetID)
	}
}

func TestDenseCosine(t *testing.T) {
	assert.InDelta(t, 1.0, DenseCosine([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.Equal(t, 0.0, DenseCosine([]float64{1, 0}, []float64{0, 1}))
	assert.Equal(t, 0.0, DenseCosine([]float64{0, 0}, []float64{1, 1}))
	assert.Panics(t, func() { DenseCosine([]float64{1}, []float64{1, 2}) })
}
