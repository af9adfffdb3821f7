package distance

import (
	"errors"
	"math"
	"testing"

	"github.com/iobis/dupfinder/sparse"
	"github.com/iobis/dupfinder/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(t *testing.T, dim int, entries map[uint32]float64) *sparse.Vector {
	t.Helper()
	v, err := sparse.New(dim, entries)
	require.NoError(t, err)
	return v
}

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[uint32]float64
		expected float64
	}{
		{"Simple", map[uint32]float64{0: 1, 1: 2, 2: 3}, map[uint32]float64{0: 4, 1: 5, 2: 6}, 32},
		{"Disjoint", map[uint32]float64{0: 1}, map[uint32]float64{1: 1}, 0},
		{"Partial", map[uint32]float64{0: 1, 5: 2, 9: 3}, map[uint32]float64{5: 4, 8: 1, 9: 1}, 11},
		{"Empty", nil, map[uint32]float64{1: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(vec(t, 10, tt.a), vec(t, 10, tt.b))
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[uint32]float64
		expected float64
	}{
		{"Identical", map[uint32]float64{1: 2, 3: 1}, map[uint32]float64{1: 2, 3: 1}, 1},
		{"Scaled", map[uint32]float64{1: 2, 3: 1}, map[uint32]float64{1: 20, 3: 10}, 1},
		{"Disjoint", map[uint32]float64{0: 5}, map[uint32]float64{1: 5}, 0},
		{"ZeroNorm", nil, map[uint32]float64{1: 5}, 0},
		{"BothZero", nil, nil, 0},
		// (1*1) / (sqrt(2) * 1)
		{"Half", map[uint32]float64{0: 1, 1: 1}, map[uint32]float64{0: 1}, 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(vec(t, 4, tt.a), vec(t, 4, tt.b))
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCosineSymmetricAndMatchesDense(t *testing.T) {
	rng := testutil.NewRNG(5)
	const dim = 64
	for n := 0; n < 50; n++ {
		a, b := map[uint32]float64{}, map[uint32]float64{}
		for k := 0; k < 10; k++ {
			a[uint32(rng.Intn(dim))] = float64(1 + rng.Intn(9))
			b[uint32(rng.Intn(dim))] = float64(1 + rng.Intn(9))
		}
		va, vb := vec(t, dim, a), vec(t, dim, b)

		ab, err := Cosine(va, vb)
		require.NoError(t, err)
		ba, err := Cosine(vb, va)
		require.NoError(t, err)

		assert.Equal(t, ab, ba)
		assert.InDelta(t, testutil.DenseCosine(va.Dense(), vb.Dense()), ab, 1e-12)
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := vec(t, 3, map[uint32]float64{0: 1})
	b := vec(t, 4, map[uint32]float64{0: 1})

	_, err := Cosine(a, b)
	require.Error(t, err)

	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 4, dm.Actual)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Jaccard(a, b)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestJaccard(t *testing.T) {
	a := vec(t, 8, map[uint32]float64{0: 1, 1: 9, 2: 1})
	b := vec(t, 8, map[uint32]float64{1: 1, 2: 1, 3: 1})

	got, err := Jaccard(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	got, err = Jaccard(vec(t, 8, nil), vec(t, 8, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestMetric(t *testing.T) {
	assert.Equal(t, "Cosine", MetricCosine.String())
	assert.Equal(t, "Jaccard", MetricJaccard.String())
	assert.Equal(t, "Unknown(9)", Metric(9).String())

	for _, m := range []Metric{MetricCosine, MetricJaccard} {
		fn, err := Provider(m)
		require.NoError(t, err)
		assert.NotNil(t, fn)
	}
	_, err := Provider(Metric(9))
	assert.Error(t, err)

	m, err := ParseMetric("JACCARD")
	require.NoError(t, err)
	assert.Equal(t, MetricJaccard, m)
	m, err = ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)
	_, err = ParseMetric("l2")
	assert.Error(t, err)
}
