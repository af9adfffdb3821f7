package occurrence

import (
	"context"
	"errors"
)

// ErrStop can be returned by a scan callback to end the scan early without error.
var ErrStop = errors.New("occurrence: stop scan")

// Source is a bulk, read-only occurrence reader.
type Source interface {
	// Scan calls fn for every row until the source is exhausted, fn returns an
	// error, or ctx is canceled. Returning ErrStop from fn ends the scan with a nil error.
	Scan(ctx context.Context, fn func(Record) error) error
}

// SliceSource serves records from memory.
type SliceSource []Record

// Scan implements Source.
func (s SliceSource) Scan(ctx context.Context, fn func(Record) error) error {
	for i, r := range s {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(r); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, fn func(Record) error) error

// Scan implements Source.
func (f SourceFunc) Scan(ctx context.Context, fn func(Record) error) error {
	return f(ctx, fn)
}
