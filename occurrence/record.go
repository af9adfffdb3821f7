package occurrence

import "math"

// Record is one occurrence row projected to the columns used for similarity.
type Record struct {
	DatasetID string
	Longitude float64
	Latitude  float64
	SpeciesID int64
	// Year is meaningful only when HasYear is true.
	Year    int
	HasYear bool
}

// WithYear returns a copy of r with the year set.
func (r Record) WithYear(year int) Record {
	r.Year = year
	r.HasYear = true
	return r
}

// Valid reports whether the record can be binned into a cell.
// Records without a year, with latitude >= 90 or longitude >= 180 are unusable.
// NaN coordinates fail the comparisons and are unusable too.
func (r Record) Valid() bool {
	if !r.HasYear {
		return false
	}
	if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
		return false
	}
	return r.Latitude < 90 && r.Longitude < 180
}
