package distance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iobis/dupfinder/sparse"
)

// ErrDimensionMismatch is the sentinel wrapped by DimensionMismatchError.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionMismatchError indicates two vectors built over different cell spaces.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// CheckDims returns a *DimensionMismatchError when a and b differ in dimension.
func CheckDims(a, b *sparse.Vector) error {
	if a.Dim() != b.Dim() {
		return &DimensionMismatchError{Expected: a.Dim(), Actual: b.Dim()}
	}
	return nil
}

// Dot calculates the dot product with a merge join over the sorted indices.
// Assumes vectors have the same dimension (caller's responsibility).
func Dot(a, b *sparse.Vector) float64 {
	ai, av := a.Indices(), a.Values()
	bi, bv := b.Indices(), b.Values()

	var sum float64
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			sum += av[i] * bv[j]
			i++
			j++
		case ai[i] < bi[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, clamped to [0, 1].
func Cosine(a, b *sparse.Vector) (float64, error) {
	if err := CheckDims(a, b); err != nil {
		return 0, err
	}
	if a.Norm() == 0 || b.Norm() == 0 {
		return 0, nil
	}
	if !a.Support().Intersects(b.Support()) {
		return 0, nil
	}
	return clamp(Dot(a, b) / (a.Norm() * b.Norm())), nil
}

// Jaccard returns the Jaccard index of the occupied cell sets of a and b.
func Jaccard(a, b *sparse.Vector) (float64, error) {
	if err := CheckDims(a, b); err != nil {
		return 0, err
	}
	union := a.Support().OrCardinality(b.Support())
	if union == 0 {
		return 0, nil
	}
	return clamp(float64(a.Support().AndCardinality(b.Support())) / float64(union)), nil
}

func clamp(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// Metric selects a similarity kernel.
type Metric int

const (
	MetricCosine Metric = iota
	MetricJaccard
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricJaccard:
		return "Jaccard"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "jaccard":
		return MetricJaccard, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Func is a similarity function over sparse vectors.
type Func func(a, b *sparse.Vector) (float64, error)

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricJaccard:
		return Jaccard, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
