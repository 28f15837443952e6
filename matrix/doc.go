// Package matrix provides the point matrices used throughout the module.
//
// Dense stores float64 points one per row on top of gonum's mat.Dense, so
// a row is a contiguous view that callers can hand to distance kernels
// without copying. Matrices load from CSV (optionally gzip-compressed) or
// from a binary format that can be memory-mapped for large reference sets.
//
// Ints is the companion integer grid used for neighbor index output.
package matrix
