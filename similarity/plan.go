package similarity

import (
	"fmt"
	"slices"

	"github.com/iobis/dupfinder/sparse"
)

// Result is the similarity of one unordered dataset pair. X sorts before Y.
type Result struct {
	X          string
	Y          string
	Similarity float64
}

// Range is a half-open interval [Start, End) of outer dataset indexes.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Pairs returns how many pairs the range produces over n datasets.
func (r Range) Pairs(n int) int64 {
	var total int64
	for i := r.Start; i < r.End && i < n; i++ {
		total += int64(n - 1 - i)
	}
	return total
}

// Valid reports whether the range lies within n datasets.
func (r Range) Valid(n int) bool {
	return r.Start >= 0 && r.Start < r.End && r.End <= n
}

// TotalPairs returns n*(n-1)/2.
func TotalPairs(n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(n) * int64(n-1) / 2
}

// Order returns the dataset ids in the order used for pair enumeration.
func Order(vectors map[string]*sparse.Vector) []string {
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Plan splits outer indexes 0..n-1 into ranges of chunk rows. The last outer
// index pairs with nothing, so it is not planned.
func Plan(n, chunk int) []Range {
	if chunk < 1 {
		chunk = 1
	}
	last := n - 1
	var ranges []Range
	for start := 0; start < last; start += chunk {
		ranges = append(ranges, Range{Start: start, End: min(start+chunk, last)})
	}
	return ranges
}
