// Package sparse builds per-dataset count vectors over the cell space.
//
// A Vector stores only its nonzero entries, sorted by cell index, together with
// its Euclidean norm and a roaring bitmap of the occupied cells. Vectors are
// immutable once built and safe for concurrent reads.
//
// Memory is proportional to the number of (dataset, cell) pairs, never to
// datasets times cells.
package sparse
