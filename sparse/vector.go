package sparse

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrIndexOutOfRange is returned for an entry outside [0, dim).
	ErrIndexOutOfRange = errors.New("sparse: index out of range")
	// ErrInvalidDimension is returned for a negative dimension.
	ErrInvalidDimension = errors.New("sparse: invalid dimension")
)

// IndexOutOfRangeError reports an entry index outside the vector dimension.
type IndexOutOfRangeError struct {
	Dataset string
	Index   uint32
	Dim     int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("sparse: index %d out of range [0, %d)", e.Index, e.Dim)
	}
	return fmt.Sprintf("sparse: dataset %s: index %d out of range [0, %d)", e.Dataset, e.Index, e.Dim)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// Vector is an immutable sparse vector.
type Vector struct {
	dim     int
	indices []uint32
	values  []float64
	norm    float64
	support *roaring.Bitmap
}

// New builds a vector of the given dimension. Zero entries are discarded.
func New(dim int, entries map[uint32]float64) (*Vector, error) {
	if dim < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}

	indices := make([]uint32, 0, len(entries))
	for i, v := range entries {
		if int64(i) >= int64(dim) {
			return nil, &IndexOutOfRangeError{Index: i, Dim: dim}
		}
		if v != 0 {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)

	values := make([]float64, len(indices))
	var sum float64
	for k, i := range indices {
		values[k] = entries[i]
		sum += values[k] * values[k]
	}

	support := roaring.BitmapOf(indices...)
	support.RunOptimize()

	return &Vector{
		dim:     dim,
		indices: indices,
		values:  values,
		norm:    math.Sqrt(sum),
		support: support,
	}, nil
}

// Dim returns the vector dimension (the number of cells in the run).
func (v *Vector) Dim() int { return v.dim }

// NNZ returns the number of nonzero entries.
func (v *Vector) NNZ() int { return len(v.indices) }

// Norm returns the Euclidean norm.
func (v *Vector) Norm() float64 { return v.norm }

// Indices returns the sorted nonzero indices. The slice must not be modified.
func (v *Vector) Indices() []uint32 { return v.indices }

// Values returns the values aligned with Indices. The slice must not be modified.
func (v *Vector) Values() []float64 { return v.values }

// Support returns the set of nonzero indices. The bitmap must not be modified.
func (v *Vector) Support() *roaring.Bitmap { return v.support }

// At returns the value at index i.
func (v *Vector) At(i uint32) float64 {
	k, ok := slices.BinarySearch(v.indices, i)
	if !ok {
		return 0
	}
	return v.values[k]
}

// Entries iterates nonzero entries in index order.
func (v *Vector) Entries() iter.Seq2[uint32, float64] {
	return func(yield func(uint32, float64) bool) {
		for k, i := range v.indices {
			if !yield(i, v.values[k]) {
				return
			}
		}
	}
}

// Dense expands the vector. Intended for tests and small dimensions.
func (v *Vector) Dense() []float64 {
	out := make([]float64, v.dim)
	for k, i := range v.indices {
		out[i] = v.values[k]
	}
	return out
}
