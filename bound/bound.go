// Package bound implements axis-aligned bounding hyper-rectangles.
//
// Tree nodes carry an HRect enclosing every point they own; traversals use
// the min/max distance algebra to prune subtrees. Distances come in true
// (Euclidean) and squared variants; the squared forms avoid the square root
// and are safe to compare against other squared values.
package bound

import "math"

// HRect is an axis-aligned hyper-rectangle: one closed interval [lo, hi]
// per dimension. A freshly created rectangle is empty (every interval is
// inverted) and reports +Inf minimum distance to everything.
type HRect struct {
	lo []float64
	hi []float64
}

// New returns an empty bound over dims dimensions.
func New(dims int) *HRect {
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for d := range lo {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	return &HRect{lo: lo, hi: hi}
}

// Dims returns the dimensionality of the bound.
func (h *HRect) Dims() int { return len(h.lo) }

// Empty reports whether nothing has been grown into the bound.
func (h *HRect) Empty() bool { return len(h.lo) == 0 || h.lo[0] > h.hi[0] }

// Lo returns the lower corner. The slice is a view; callers must not modify it.
func (h *HRect) Lo() []float64 { return h.lo }

// Hi returns the upper corner. The slice is a view; callers must not modify it.
func (h *HRect) Hi() []float64 { return h.hi }

// Grow expands the bound minimally so that it contains point.
func (h *HRect) Grow(point []float64) {
	for d, v := range point {
		if v < h.lo[d] {
			h.lo[d] = v
		}
		if v > h.hi[d] {
			h.hi[d] = v
		}
	}
}

// GrowBound expands the bound minimally so that it contains other.
func (h *HRect) GrowBound(other *HRect) {
	if other.Empty() {
		return
	}
	for d := range h.lo {
		if other.lo[d] < h.lo[d] {
			h.lo[d] = other.lo[d]
		}
		if other.hi[d] > h.hi[d] {
			h.hi[d] = other.hi[d]
		}
	}
}

// Contains reports whether point lies inside the bound (borders included).
func (h *HRect) Contains(point []float64) bool {
	for d, v := range point {
		if v < h.lo[d] || v > h.hi[d] {
			return false
		}
	}
	return !h.Empty()
}

// WidestDim returns the dimension with the largest extent and that extent.
// Splitting on it keeps the partition balanced in the widest direction.
func (h *HRect) WidestDim() (dim int, width float64) {
	width = math.Inf(-1)
	for d := range h.lo {
		if w := h.hi[d] - h.lo[d]; w > width {
			width = w
			dim = d
		}
	}
	return dim, width
}

// MinSquared returns the squared minimum distance from point to the bound.
// Zero when the point is inside; +Inf for an empty bound.
func (h *HRect) MinSquared(point []float64) float64 {
	var sum float64
	for d, v := range point {
		gap := h.lo[d] - v
		if g := v - h.hi[d]; g > gap {
			gap = g
		}
		if gap > 0 {
			sum += gap * gap
		}
	}
	return sum
}

// MinDistance returns the minimum Euclidean distance from point to the
// bound. It is a lower bound on the distance from point to any point the
// bound contains.
func (h *HRect) MinDistance(point []float64) float64 {
	return math.Sqrt(h.MinSquared(point))
}

// MinSquaredBound returns the squared minimum distance between two bounds.
// Zero when they overlap; +Inf when either is empty.
func (h *HRect) MinSquaredBound(other *HRect) float64 {
	if h.Empty() || other.Empty() {
		return math.Inf(1)
	}
	var sum float64
	for d := range h.lo {
		gap := h.lo[d] - other.hi[d]
		if g := other.lo[d] - h.hi[d]; g > gap {
			gap = g
		}
		if gap > 0 {
			sum += gap * gap
		}
	}
	return sum
}

// MinDistanceBound returns the minimum Euclidean distance between any pair
// of points drawn from the two bounds.
func (h *HRect) MinDistanceBound(other *HRect) float64 {
	return math.Sqrt(h.MinSquaredBound(other))
}

// MaxSquared returns the squared maximum distance from point to the bound.
// Undefined for an empty bound.
func (h *HRect) MaxSquared(point []float64) float64 {
	var sum float64
	for d, v := range point {
		gap := math.Abs(v - h.lo[d])
		if g := math.Abs(h.hi[d] - v); g > gap {
			gap = g
		}
		sum += gap * gap
	}
	return sum
}

// MaxDistance returns the maximum Euclidean distance from point to the
// bound. It is an upper bound on the distance from point to any point the
// bound contains.
func (h *HRect) MaxDistance(point []float64) float64 {
	return math.Sqrt(h.MaxSquared(point))
}

// MaxSquaredBound returns the squared maximum distance between two bounds.
func (h *HRect) MaxSquaredBound(other *HRect) float64 {
	var sum float64
	for d := range h.lo {
		gap := h.hi[d] - other.lo[d]
		if g := other.hi[d] - h.lo[d]; g > gap {
			gap = g
		}
		sum += gap * gap
	}
	return sum
}

// MaxDistanceBound returns the maximum Euclidean distance between any pair
// of points drawn from the two bounds.
func (h *HRect) MaxDistanceBound(other *HRect) float64 {
	return math.Sqrt(h.MaxSquaredBound(other))
}
