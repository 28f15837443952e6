package search

import (
	"math"

	"github.com/hupe1980/allknn/bound"
	"github.com/hupe1980/allknn/queue"
)

// Policy fixes which neighbors a traversal hunts for. It orders candidate
// distances and scores tree nodes optimistically: a node's score is the
// best distance any point inside it could achieve, so a node whose score
// cannot beat the current worst candidate is safe to prune.
type Policy interface {
	queue.Ordering

	// NodeToPoint returns the best possible distance between the point
	// and any point inside the bound.
	NodeToPoint(b *bound.HRect, point []float64) float64

	// NodeToNode returns the best possible distance between any pair of
	// points drawn from the two bounds.
	NodeToNode(a, b *bound.HRect) float64
}

// Compile-time checks to ensure the policies satisfy the interface.
var (
	_ Policy = Nearest{}
	_ Policy = Furthest{}
)

// Nearest hunts for the k smallest distances.
type Nearest struct{}

// Better reports whether a is smaller than b.
func (Nearest) Better(a, b float64) bool { return a < b }

// Worst returns +Inf, the distance every real candidate beats.
func (Nearest) Worst() float64 { return math.Inf(1) }

// NodeToPoint returns the smallest distance the bound allows.
func (Nearest) NodeToPoint(b *bound.HRect, point []float64) float64 {
	return b.MinDistance(point)
}

// NodeToNode returns the smallest distance the two bounds allow.
func (Nearest) NodeToNode(a, b *bound.HRect) float64 {
	return a.MinDistanceBound(b)
}

// Furthest hunts for the k largest distances.
type Furthest struct{}

// Better reports whether a is larger than b.
func (Furthest) Better(a, b float64) bool { return a > b }

// Worst returns -Inf so that zero-distance candidates (duplicate points)
// still qualify while a list is underfull.
func (Furthest) Worst() float64 { return math.Inf(-1) }

// NodeToPoint returns the largest distance the bound allows.
func (Furthest) NodeToPoint(b *bound.HRect, point []float64) float64 {
	return b.MaxDistance(point)
}

// NodeToNode returns the largest distance the two bounds allow.
func (Furthest) NodeToNode(a, b *bound.HRect) float64 {
	return a.MaxDistanceBound(b)
}
