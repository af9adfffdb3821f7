package metadata

import (
	"context"
	"maps"
	"slices"
)

// Dataset describes one dataset.
type Dataset struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	RecordCount int64  `json:"records"`
}

// Lookup resolves dataset metadata.
// Implementations must be safe for concurrent use.
type Lookup interface {
	Lookup(ctx context.Context, id string) (Dataset, bool, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, id string) (Dataset, bool, error)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	return f(ctx, id)
}

// Map is an in-memory Lookup keyed by dataset id. It must not be modified
// while in use.
type Map map[string]Dataset

// NewMap indexes datasets by id. Later entries win.
func NewMap(datasets ...Dataset) Map {
	m := make(Map, len(datasets))
	for _, d := range datasets {
		m[d.ID] = d
	}
	return m
}

// Lookup implements Lookup.
func (m Map) Lookup(_ context.Context, id string) (Dataset, bool, error) {
	d, ok := m[id]
	return d, ok, nil
}

// IDs returns the dataset ids, sorted.
func (m Map) IDs() []string {
	return slices.Sorted(maps.Keys(m))
}
