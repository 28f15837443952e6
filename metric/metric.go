// Package metric provides distance metrics over float64 point vectors.
//
// Every metric exposes the true distance and a cheaper monotone surrogate
// (the "reduced" distance; squared L2 for Euclidean). Hot paths may compare
// in reduced space and convert at the boundary; all reported distances are
// true distances.
package metric

import "math"

// Metric computes distances between equal-length point vectors.
// Length agreement is the caller's responsibility.
type Metric interface {
	// Distance returns the true distance between a and b.
	Distance(a, b []float64) float64

	// Reduced returns a monotone surrogate of Distance that is cheaper to
	// compute. Ordering is preserved: Reduced(a,b) < Reduced(a,c) iff
	// Distance(a,b) < Distance(a,c).
	Reduced(a, b []float64) float64

	// ToReduced converts a true distance into reduced space.
	ToReduced(d float64) float64

	// FromReduced converts a reduced distance back to a true distance.
	FromReduced(r float64) float64
}

// Euclidean is the L2 metric. Its reduced space is the squared distance,
// which skips the square root in inner loops.
type Euclidean struct{}

var _ Metric = Euclidean{}

// Distance returns the L2 distance between a and b.
func (e Euclidean) Distance(a, b []float64) float64 {
	return math.Sqrt(e.Reduced(a, b))
}

// Reduced returns the squared L2 distance between a and b.
func (Euclidean) Reduced(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// ToReduced squares a true distance.
func (Euclidean) ToReduced(d float64) float64 { return d * d }

// FromReduced takes the square root of a reduced distance.
func (Euclidean) FromReduced(r float64) float64 { return math.Sqrt(r) }

// Manhattan is the L1 metric. Reduced space is the distance itself.
type Manhattan struct{}

var _ Metric = Manhattan{}

// Distance returns the L1 distance between a and b.
func (Manhattan) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

func (m Manhattan) Reduced(a, b []float64) float64 { return m.Distance(a, b) }
func (Manhattan) ToReduced(d float64) float64      { return d }
func (Manhattan) FromReduced(r float64) float64    { return r }

// Chebyshev is the L-infinity metric. Reduced space is the distance itself.
type Chebyshev struct{}

var _ Metric = Chebyshev{}

// Distance returns the L-infinity distance between a and b.
func (Chebyshev) Distance(a, b []float64) float64 {
	var max float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > max {
			max = d
		}
	}
	return max
}

func (c Chebyshev) Reduced(a, b []float64) float64 { return c.Distance(a, b) }
func (Chebyshev) ToReduced(d float64) float64      { return d }
func (Chebyshev) FromReduced(r float64) float64    { return r }
