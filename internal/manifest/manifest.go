package manifest

import (
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/iobis/dupfinder/similarity"
)

// CurrentVersion is the version of the manifest format.
const CurrentVersion = 1

// Manifest describes a similarity run.
type Manifest struct {
	Version   int       `json:"version"`
	ID        uint64    `json:"id"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Config      RunConfig `json:"config"`
	Datasets    int       `json:"datasets"`
	Cells       int       `json:"cells"`
	Fingerprint uint32    `json:"fingerprint"`

	Aggregation AggregationStats `json:"aggregation"`

	Completed []similarity.Range `json:"completed"`
	Failed    []FailedRange      `json:"failed,omitempty"`
	Parts     []Part             `json:"parts"`
}

// RunConfig holds the settings that shape the computed pairs. Resume reuses them.
type RunConfig struct {
	Precision   int    `json:"precision"`
	Metric      string `json:"metric"`
	ChunkSize   int    `json:"chunk_size"`
	Compression string `json:"compression"`
}

// AggregationStats mirrors aggregate.Stats of the run.
type AggregationStats struct {
	Scanned  int64 `json:"scanned"`
	Retained int64 `json:"retained"`
	Dropped  int64 `json:"dropped"`
}

// FailedRange is a range that did not complete and why.
type FailedRange struct {
	Range similarity.Range `json:"range"`
	Error string           `json:"error"`
}

// Part is a results part written by one compute attempt.
type Part struct {
	Name      string    `json:"name"`
	Rows      int64     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
	// Excluded holds the outer dataset ids of ranges that failed while
	// writing this part. Their rows are partial and must not be read.
	Excluded []string `json:"excluded,omitempty"`
}

// Skips returns the set of outer dataset ids whose rows in p are ignored.
// It is nil when the part has no failed ranges.
func (p Part) Skips() map[string]struct{} {
	if len(p.Excluded) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(p.Excluded))
	for _, id := range p.Excluded {
		set[id] = struct{}{}
	}
	return set
}

// New creates a manifest for a fresh run.
func New(cfg RunConfig, datasets, cells int, fingerprint uint32) *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		Version:     CurrentVersion,
		RunID:       uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Config:      cfg,
		Datasets:    datasets,
		Cells:       cells,
		Fingerprint: fingerprint,
	}
}

// Verify checks that the run still describes the same datasets.
func (m *Manifest) Verify(datasets int, fingerprint uint32) error {
	if m.Datasets != datasets || m.Fingerprint != fingerprint {
		return fmt.Errorf("%w: manifest has %d datasets (%08x), input has %d (%08x)",
			ErrFingerprintMismatch, m.Datasets, m.Fingerprint, datasets, fingerprint)
	}
	return nil
}

// covered returns the outer indexes of all completed ranges.
func (m *Manifest) covered() *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range m.Completed {
		bm.AddRange(uint64(r.Start), uint64(r.End))
	}
	return bm
}

// Missing returns the ranges still to compute, split into chunks of at most
// Config.ChunkSize rows.
func (m *Manifest) Missing() []similarity.Range {
	last := m.Datasets - 1
	if last <= 0 {
		return nil
	}
	chunk := max(m.Config.ChunkSize, 1)

	cov := m.covered()
	var out []similarity.Range
	for i := 0; i < last; {
		if cov.Contains(uint32(i)) {
			i++
			continue
		}
		start := i
		for i < last && i-start < chunk && !cov.Contains(uint32(i)) {
			i++
		}
		out = append(out, similarity.Range{Start: start, End: i})
	}
	return out
}

// Done reports whether every pair has been computed.
func (m *Manifest) Done() bool {
	return len(m.Missing()) == 0
}

// Record merges the outcome of one compute attempt.
// Failed is replaced: ranges from earlier attempts were either retried or are
// still missing.
func (m *Manifest) Record(part Part, completed []similarity.Range, failed []similarity.RangeFailure) {
	if part.Name != "" {
		if part.CreatedAt.IsZero() {
			part.CreatedAt = time.Now().UTC()
		}
		m.Parts = append(m.Parts, part)
	}

	m.Completed = append(m.Completed, completed...)
	slices.SortFunc(m.Completed, func(a, b similarity.Range) int { return a.Start - b.Start })

	m.Failed = m.Failed[:0]
	for _, f := range failed {
		m.Failed = append(m.Failed, FailedRange{Range: f.Range, Error: f.Err.Error()})
	}
	m.UpdatedAt = time.Now().UTC()
}

// NextPartSeq returns the sequence number for the next results part.
func (m *Manifest) NextPartSeq() int {
	return len(m.Parts) + 1
}

// PartNames returns the names of all parts, oldest first.
func (m *Manifest) PartNames() []string {
	names := make([]string, len(m.Parts))
	for i, p := range m.Parts {
		names[i] = p.Name
	}
	return names
}
