// Package distance provides similarity kernels over sparse count vectors.
//
// # Supported Metrics
//
//   - MetricCosine: dot(a, b) / (|a| |b|), the default
//   - MetricJaccard: |support(a) ∩ support(b)| / |support(a) ∪ support(b)|
//
// Both return values in [0, 1] for non-negative vectors. A vector with zero
// norm (or empty support) has similarity 0 with everything.
//
// # Usage
//
//	sim, err := distance.Cosine(a, b)
//	fn, err := distance.Provider(distance.MetricJaccard)
package distance
