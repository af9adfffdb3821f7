package sparse

import (
	"fmt"

	"github.com/iobis/dupfinder/aggregate"
)

// Build turns count rows into one vector per dataset. Every vector has
// dimension nCells. Rows for the same (dataset, cell) are summed.
func Build(counts []aggregate.Count, nCells int) (map[string]*Vector, error) {
	if nCells < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, nCells)
	}

	acc := make(map[string]map[uint32]float64)
	for _, c := range counts {
		if int64(c.Cell) >= int64(nCells) {
			return nil, &IndexOutOfRangeError{Dataset: c.DatasetID, Index: c.Cell, Dim: nCells}
		}
		m, ok := acc[c.DatasetID]
		if !ok {
			m = make(map[uint32]float64)
			acc[c.DatasetID] = m
		}
		m[c.Cell] += float64(c.Count)
	}

	out := make(map[string]*Vector, len(acc))
	for id, m := range acc {
		v, err := New(nCells, m)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// BuildTable builds vectors straight from an aggregation table.
func BuildTable(t *aggregate.Table) (map[string]*Vector, error) {
	return Build(t.Rows(), t.Cells())
}
