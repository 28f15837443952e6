// Package search implements the exact k-neighbor traversal engines.
//
// Three strategies produce identical results at different costs:
//
//   - Naive scans every query x reference pair.
//   - SingleTree descends the reference tree once per query point,
//     pruning subtrees whose bound cannot beat the query's current
//     worst candidate.
//   - DualTree recurses over (query node, reference node) pairs,
//     pruning whole pair subtrees against per-query-node bounds.
//
// Engines operate in tree position space and return one bounded
// candidate list per query position; callers translate positions back to
// original indices through the tree permutations.
//
// The Policy interface fixes the target ordering: Nearest hunts the k
// smallest distances, Furthest the k largest.
package search
