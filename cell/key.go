package cell

import (
	"errors"
	"fmt"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

const (
	// DefaultPrecision is the geohash length used when none is configured.
	DefaultPrecision = 2
	// MaxPrecision is the longest geohash the encoder produces.
	MaxPrecision = 12
)

// ErrInvalidPrecision is returned for a precision outside [1, MaxPrecision].
var ErrInvalidPrecision = errors.New("cell: precision out of range")

// Key identifies a cell.
type Key struct {
	Geohash   string
	SpeciesID int64
	Year      int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Geohash, k.SpeciesID, k.Year)
}

// Encoder turns coordinates, species and year into a Key.
type Encoder struct {
	precision int
}

// NewEncoder returns an encoder for the given geohash length.
func NewEncoder(precision int) (Encoder, error) {
	if precision < 1 || precision > MaxPrecision {
		return Encoder{}, fmt.Errorf("%w: %d", ErrInvalidPrecision, precision)
	}
	return Encoder{precision: precision}, nil
}

// Precision returns the geohash length.
func (e Encoder) Precision() int {
	if e.precision == 0 {
		return DefaultPrecision
	}
	return e.precision
}

// Encode returns the cell key. Geohashes are prefix-hierarchical, so the
// full-length hash is truncated to the configured precision.
func (e Encoder) Encode(lat, lon float64, species int64, year int) Key {
	gh := geohash.Encode(lat, lon)
	if p := e.Precision(); len(gh) > p {
		gh = gh[:p]
	}
	return Key{Geohash: gh, SpeciesID: species, Year: year}
}
