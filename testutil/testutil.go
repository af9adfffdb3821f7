package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/iobis/dupfinder/occurrence"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// DatasetID returns the synthetic id of the i-th dataset.
func DatasetID(i int) string {
	return fmt.Sprintf("ds-%d", i)
}

// Occurrences generates n records spread over the given number of datasets.
// Each dataset samples from its own small region, species pool and decade so
// datasets are mostly dissimilar. About one in twenty records is invalid.
func (r *RNG) Occurrences(datasets, n int) []occurrence.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]occurrence.Record, n)
	for i := range out {
		d := r.rand.Intn(datasets)
		rec := occurrence.Record{
			DatasetID: DatasetID(d),
			Latitude:  float64(d%17)*10 - 80 + r.rand.Float64()*5,
			Longitude: float64(d%35)*10 - 170 + r.rand.Float64()*5,
			SpeciesID: int64(d*100 + r.rand.Intn(5)),
		}
		if r.rand.Intn(20) != 0 {
			rec = rec.WithYear(1950 + (d%7)*10 + r.rand.Intn(10))
		}
		out[i] = rec
	}
	return out
}

// Republish returns copies of every record of dataset from, relabelled as to.
// Appending the result to records yields an exact duplicate dataset.
func Republish(records []occurrence.Record, from, to string) []occurrence.Record {
	var out []occurrence.Record
	for _, rec := range records {
		if rec.DatasetID == from {
			rec.DatasetID = to
			out = append(out, rec)
		}
	}
	return out
}

// DenseCosine is the brute-force cosine similarity of two dense vectors.
// It returns 0 when either vector has zero norm.
func DenseCosine(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("testutil: dimension mismatch")
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
