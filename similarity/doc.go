// Package similarity computes pairwise similarity between all dataset vectors.
//
// Datasets are put in a stable order (sorted by id). Outer index i is paired
// with every j > i, so each unordered pair is produced exactly once. The outer
// index space is split into ranges that run on a bounded worker pool. Each
// worker buffers results and hands them to a Sink one batch at a time.
//
// A range that fails does not stop the others. Failed ranges are returned in a
// *PartialError and can be recomputed later with ComputeRanges.
//
// # Usage
//
//	eng, err := similarity.New(similarity.WithWorkers(6))
//	sink := &similarity.SliceSink{}
//	report, err := eng.Compute(ctx, vectors, sink)
//
//	for r, err := range eng.Pairs(ctx, vectors) {
//		...
//	}
package similarity
