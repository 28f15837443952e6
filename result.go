package allknn

import "github.com/hupe1980/allknn/matrix"

// Result holds the neighbors of one search as two k x M grids: column j
// carries the results for query j in best-first order, so row 0 is the
// best neighbor of every query. Indices refer to the caller's original
// reference row numbering.
type Result struct {
	K          int
	NumQueries int

	// Neighbors holds reference row indices; entry (i, j) is the i-th
	// best neighbor of query j.
	Neighbors *matrix.Ints

	// Distances holds the matching true metric distances.
	Distances *matrix.Dense
}

// Neighbor returns the index and distance of the rank-th best neighbor of
// a query, rank 0 being the best.
func (r *Result) Neighbor(rank, query int) (int, float64) {
	return r.Neighbors.At(rank, query), r.Distances.At(rank, query)
}
