// Package testutil provides testing utilities for the neighbor search
// packages.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random point sets and computing
// exact neighbors by exhaustive scan as ground truth.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	ref := rng.UniformPoints(1000, 8)   // uniform [0, 1)
//	ref = rng.GaussianPoints(1000, 8)   // standard normal
//
// # Ground Truth
//
//	truth := testutil.BruteForce(ref, queries, k, false)
package testutil
