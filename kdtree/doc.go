// Package kdtree implements a binary space-partitioning tree over a point
// matrix for exact neighbor search.
//
// Build recursively splits index ranges on the dimension of maximum
// spread, partitioning around the median until a range fits in a leaf.
// The point matrix is never touched: the tree permutes an index array and
// exposes the mapping as a Permutation, so callers can translate tree
// positions back to original matrix rows after a search.
//
// Every node carries the bounding hyper-rectangle of its owned points,
// which the traversal engines use to lower-bound distances and prune
// subtrees.
//
// Trees can be snapshotted to an LZ4-compressed binary format and later
// rebound to the identical point matrix, skipping reconstruction.
package kdtree
