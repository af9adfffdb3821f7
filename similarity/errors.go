package similarity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRange is returned for a range outside the dataset order.
	ErrInvalidRange = errors.New("similarity: invalid range")
	// ErrRangePanic wraps a panic recovered from a worker.
	ErrRangePanic = errors.New("similarity: worker panic")
)

// RangeFailure records why a range did not complete.
type RangeFailure struct {
	Range Range
	Err   error
}

// PartialError is returned when some ranges failed. Results of the other
// ranges have been delivered to the sink.
type PartialError struct {
	Failed []RangeFailure
}

func (e *PartialError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "similarity: %d range(s) failed", len(e.Failed))
	for i, f := range e.Failed {
		if i == 3 {
			fmt.Fprintf(&sb, "; and %d more", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&sb, "; %s: %v", f.Range, f.Err)
	}
	return sb.String()
}

// Unwrap exposes the per-range errors to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// Ranges returns the failed ranges.
func (e *PartialError) Ranges() []Range {
	out := make([]Range, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f.Range
	}
	return out
}
