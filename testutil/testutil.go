package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/allknn/matrix"
)

// Neighbor is one entry of a brute-force oracle result.
type Neighbor struct {
	Index    int
	Distance float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*span
	}
}

// UniformPoints generates a point matrix with values in range [0, 1).
func (r *RNG) UniformPoints(num, dims int) *matrix.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	x := matrix.NewDense(num, dims)
	for i := 0; i < num; i++ {
		row := x.Row(i)
		for j := range row {
			row[j] = r.rand.Float64()
		}
	}
	return x
}

// GaussianPoints generates a point matrix with values from a standard
// normal distribution.
func (r *RNG) GaussianPoints(num, dims int) *matrix.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	x := matrix.NewDense(num, dims)
	for i := 0; i < num; i++ {
		row := x.Row(i)
		for j := range row {
			row[j] = r.rand.NormFloat64()
		}
	}
	return x
}

// ClusteredPoints generates points grouped around random centroids.
// Useful for exercising tree pruning on non-uniform data.
func (r *RNG) ClusteredPoints(num, dims, clusters int, spread float64) *matrix.Dense {
	centroids := r.GaussianPoints(clusters, dims)

	r.mu.Lock()
	defer r.mu.Unlock()

	x := matrix.NewDense(num, dims)
	for i := 0; i < num; i++ {
		centroid := centroids.Row(i % clusters)
		row := x.Row(i)
		for j := range row {
			row[j] = centroid[j] + r.rand.NormFloat64()*spread
		}
	}
	return x
}

// BruteForce computes exact k-nearest neighbors of every query row by
// exhaustive scan, as ground truth for the tree traversals. When
// excludeSelf is set, reference row j is skipped for query row j
// (identical point sets). Results per query are sorted ascending by
// distance, ties by reference index.
func BruteForce(ref, queries *matrix.Dense, k int, excludeSelf bool) [][]Neighbor {
	return bruteForce(ref, queries, k, excludeSelf, false)
}

// BruteForceFurthest is BruteForce with descending distance order.
func BruteForceFurthest(ref, queries *matrix.Dense, k int, excludeSelf bool) [][]Neighbor {
	return bruteForce(ref, queries, k, excludeSelf, true)
}

func bruteForce(ref, queries *matrix.Dense, k int, excludeSelf, furthest bool) [][]Neighbor {
	out := make([][]Neighbor, queries.Rows())

	all := make([]Neighbor, 0, ref.Rows())
	for q := 0; q < queries.Rows(); q++ {
		all = all[:0]
		qRow := queries.Row(q)
		for i := 0; i < ref.Rows(); i++ {
			if excludeSelf && i == q {
				continue
			}
			all = append(all, Neighbor{Index: i, Distance: euclidean(qRow, ref.Row(i))})
		}

		sort.SliceStable(all, func(a, b int) bool {
			if furthest {
				return all[a].Distance > all[b].Distance
			}
			return all[a].Distance < all[b].Distance
		})

		n := k
		if n > len(all) {
			n = len(all)
		}
		out[q] = append([]Neighbor(nil), all[:n]...)
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
