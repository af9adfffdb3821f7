// Package testutil provides testing utilities for dupfinder.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic synthetic occurrence data and computes
// brute-force reference similarities.
//
// # Synthetic Occurrences
//
//	rng := testutil.NewRNG(seed)
//	records := rng.Occurrences(10, 5000)        // 10 datasets, 5000 rows
//	dup := testutil.Republish(records, "ds-0", "ds-0-copy")
//
// # Reference Similarity
//
//	want := testutil.DenseCosine(a, b)
package testutil
