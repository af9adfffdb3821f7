package cell

import (
	"errors"
	"math"
)

var (
	// ErrFrozen is returned when a new key is offered to a frozen indexer.
	ErrFrozen = errors.New("cell: indexer is frozen")
	// ErrIndexOverflow is returned when the index space is exhausted.
	ErrIndexOverflow = errors.New("cell: too many cells")
)

// Indexer maps distinct keys to dense indexes 0..n-1 in first-seen order.
//
// IndexOf is not safe for concurrent use. After Freeze, Lookup, Key and Len are.
type Indexer struct {
	index  map[Key]uint32
	keys   []Key
	frozen bool
}

// NewIndexer creates an empty indexer.
func NewIndexer() *Indexer {
	return &Indexer{index: make(map[Key]uint32)}
}

// IndexOf returns the index for k, assigning the next free index if k is new.
func (ix *Indexer) IndexOf(k Key) (uint32, error) {
	if i, ok := ix.index[k]; ok {
		return i, nil
	}
	if ix.frozen {
		return 0, ErrFrozen
	}
	if len(ix.keys) >= math.MaxUint32 {
		return 0, ErrIndexOverflow
	}
	i := uint32(len(ix.keys))
	ix.index[k] = i
	ix.keys = append(ix.keys, k)
	return i, nil
}

// Lookup returns the index for k without assigning one.
func (ix *Indexer) Lookup(k Key) (uint32, bool) {
	i, ok := ix.index[k]
	return i, ok
}

// Key returns the key with index i.
func (ix *Indexer) Key(i uint32) (Key, bool) {
	if int(i) >= len(ix.keys) {
		return Key{}, false
	}
	return ix.keys[i], true
}

// Len returns the number of distinct cells.
func (ix *Indexer) Len() int {
	return len(ix.keys)
}

// Freeze stops further index assignment.
func (ix *Indexer) Freeze() {
	ix.frozen = true
}

// Frozen reports whether Freeze was called.
func (ix *Indexer) Frozen() bool {
	return ix.frozen
}
