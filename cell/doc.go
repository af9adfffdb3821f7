// Package cell bins occurrences into (geohash prefix, species, year) cells and
// assigns each distinct cell a dense integer index.
//
// Index assignment is single-writer and happens during aggregation. Once the
// indexer is frozen it is read-only and may be shared across goroutines.
package cell
