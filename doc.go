// Package allknn implements exact k-nearest-neighbor search over fixed
// point sets in Euclidean space.
//
// A reference set is indexed once with a binary space-partitioning tree of
// axis-aligned bounding hyper-rectangles; queries are answered by one of
// three strategies with identical results:
//
//   - ModeNaive compares every query against every reference point.
//   - ModeSingleTree descends the reference tree once per query with
//     bound pruning.
//   - ModeDualTree (the default) recurses over query-tree/reference-tree
//     node pairs, pruning whole pairs at once.
//
// Trees reorder points internally; results are always reported in the
// caller's original row indexing, so the strategy choice is invisible in
// the output.
//
// Basic usage:
//
//	ref, err := matrix.Load("reference.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s, err := allknn.New(ref, allknn.WithLeafSize(20))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := s.Search(context.Background(), 5)
//	if err != nil {
//		log.Fatal(err)
//	}
//	idx, dist := res.Neighbor(0, 0) // best neighbor of point 0
//
// A separate query set goes through SearchWith; the self-query path never
// reports a point as its own neighbor. Nearest is the default policy,
// WithPolicy(search.Furthest{}) flips the engines to k-furthest-neighbor
// search.
//
// Searcher is safe for concurrent searches: the tree and both matrices
// are read-only after New.
package allknn
