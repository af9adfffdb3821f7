package cell

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncoder(t *testing.T) {
	for _, p := range []int{1, 2, 12} {
		e, err := NewEncoder(p)
		require.NoError(t, err)
		assert.Equal(t, p, e.Precision())
	}
	for _, p := range []int{0, -1, 13} {
		_, err := NewEncoder(p)
		assert.ErrorIs(t, err, ErrInvalidPrecision)
	}

	var zero Encoder
	assert.Equal(t, DefaultPrecision, zero.Precision())
}

func TestEncode(t *testing.T) {
	e2, _ := NewEncoder(2)
	e5, _ := NewEncoder(5)

	// Ostend, Belgium.
	k := e2.Encode(51.2154, 2.9286, 127160, 2001)
	assert.Equal(t, Key{Geohash: "u1", SpeciesID: 127160, Year: 2001}, k)

	k5 := e5.Encode(51.2154, 2.9286, 127160, 2001)
	assert.Len(t, k5.Geohash, 5)
	assert.Equal(t, k.Geohash, k5.Geohash[:2], "geohash prefixes are hierarchical")

	t.Run("nearby points share a coarse cell", func(t *testing.T) {
		a := e2.Encode(51.2, 2.9, 1, 2000)
		b := e2.Encode(51.3, 3.1, 1, 2000)
		assert.Equal(t, a, b)
	})

	t.Run("species and year split cells", func(t *testing.T) {
		a := e2.Encode(51.2, 2.9, 1, 2000)
		assert.NotEqual(t, a, e2.Encode(51.2, 2.9, 2, 2000))
		assert.NotEqual(t, a, e2.Encode(51.2, 2.9, 1, 2001))
	})

	assert.Equal(t, "u1:127160:2001", k.String())
}

func TestIndexer(t *testing.T) {
	ix := NewIndexer()
	a := Key{Geohash: "u1", SpeciesID: 1, Year: 2000}
	b := Key{Geohash: "u1", SpeciesID: 2, Year: 2000}
	c := Key{Geohash: "gc", SpeciesID: 1, Year: 2000}

	for _, k := range []Key{a, b, a, c, b} {
		_, err := ix.IndexOf(k)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, ix.Len())

	ia, _ := ix.Lookup(a)
	ib, _ := ix.Lookup(b)
	ic, _ := ix.Lookup(c)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{ia, ib, ic}, "first-seen order")

	got, ok := ix.Key(2)
	assert.True(t, ok)
	assert.Equal(t, c, got)
	_, ok = ix.Key(3)
	assert.False(t, ok)

	ix.Freeze()
	assert.True(t, ix.Frozen())

	i, err := ix.IndexOf(b)
	require.NoError(t, err, "known keys resolve after freeze")
	assert.Equal(t, uint32(1), i)

	_, err = ix.IndexOf(Key{Geohash: "zz"})
	assert.ErrorIs(t, err, ErrFrozen)
	assert.Equal(t, 3, ix.Len())
}

func TestFrozenIndexerConcurrentReads(t *testing.T) {
	ix := NewIndexer()
	for y := 0; y < 100; y++ {
		_, err := ix.IndexOf(Key{Geohash: "u1", Year: y})
		require.NoError(t, err)
	}
	ix.Freeze()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := 0; y < 100; y++ {
				i, ok := ix.Lookup(Key{Geohash: "u1", Year: y})
				assert.True(t, ok)
				assert.Equal(t, uint32(y), i)
			}
		}()
	}
	wg.Wait()
}
