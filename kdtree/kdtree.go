package kdtree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/allknn/bound"
	"github.com/hupe1980/allknn/matrix"
)

// NoChild marks an absent child link in the node arena.
const NoChild int32 = -1

var (
	// ErrEmptySet is returned when Build is given no points.
	ErrEmptySet = errors.New("kdtree: empty point set")

	// ErrLeafSize is returned when the configured leaf size is below 1.
	ErrLeafSize = errors.New("kdtree: leaf size must be at least 1")
)

// Options represents the options for configuring tree construction.
type Options struct {
	// LeafSize caps the number of points a leaf may own. Larger leaves
	// mean fewer nodes and more exhaustive comparisons; smaller leaves
	// prune harder at the cost of deeper recursion.
	LeafSize int
}

var DefaultOptions = Options{
	LeafSize: 20,
}

// Node is one arena entry. Children are arena indices (NoChild when
// absent); a node owns the contiguous tree positions [Begin, Begin+Count).
type Node struct {
	Left  int32
	Right int32
	Begin int32
	Count int32
	Bound *bound.HRect
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left == NoChild }

// Tree is a binary space-partitioning tree over a point matrix. Nodes live
// in a flat arena with the root at index 0. The matrix is never reordered:
// the tree records an index permutation instead, and all traversal happens
// in permuted position space.
type Tree struct {
	data     *matrix.Dense
	nodes    []Node
	perm     *Permutation
	leafSize int
}

// Build constructs a tree over data. The matrix must stay alive and
// unmodified for the lifetime of the tree.
func Build(data *matrix.Dense, optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if data == nil || data.Rows() == 0 {
		return nil, ErrEmptySet
	}
	if opts.LeafSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLeafSize, opts.LeafSize)
	}

	n := data.Rows()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	t := &Tree{
		data:     data,
		nodes:    make([]Node, 0, 2*(n/opts.LeafSize)+1),
		perm:     &Permutation{oldFromNew: idx},
		leafSize: opts.LeafSize,
	}
	t.build(0, n)
	return t, nil
}

// build lays out the subtree over tree positions [begin, begin+count) and
// returns its arena index. Child links are patched after recursion since
// append may move the arena.
func (t *Tree) build(begin, count int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Left:  NoChild,
		Right: NoChild,
		Begin: int32(begin),
		Count: int32(count),
		Bound: t.boundOf(begin, count),
	})

	if count == 1 || count <= t.leafSize {
		return id
	}

	dim, width := t.nodes[id].Bound.WidestDim()
	if width == 0 {
		// All owned points coincide; the node stays an oversized leaf.
		return id
	}

	mid := begin + count/2
	t.selectOn(dim, begin, begin+count, mid)

	left := t.build(begin, mid-begin)
	right := t.build(mid, begin+count-mid)
	t.nodes[id].Left = left
	t.nodes[id].Right = right
	return id
}

func (t *Tree) boundOf(begin, count int) *bound.HRect {
	b := bound.New(t.data.Cols())
	for i := begin; i < begin+count; i++ {
		b.Grow(t.Point(i))
	}
	return b
}

// selectOn rearranges the permutation slots [start, end) so that the slot
// at mid holds the mid-th order statistic of dimension dim, with no
// greater value left of it (quickselect).
func (t *Tree) selectOn(dim, start, end, mid int) {
	for end-start > 1 {
		p := t.partition(dim, start, end)
		switch {
		case mid < p:
			end = p
		case mid > p:
			start = p + 1
		default:
			return
		}
	}
}

func (t *Tree) partition(dim, start, end int) int {
	idx := t.perm.oldFromNew
	at := func(i int) float64 { return t.data.At(idx[i], dim) }

	// Median-of-three pivot.
	m := start + (end-start)/2
	if at(m) < at(start) {
		idx[start], idx[m] = idx[m], idx[start]
	}
	if at(end-1) < at(start) {
		idx[start], idx[end-1] = idx[end-1], idx[start]
	}
	if at(end-1) < at(m) {
		idx[m], idx[end-1] = idx[end-1], idx[m]
	}

	pivot := at(m)
	idx[m], idx[end-1] = idx[end-1], idx[m]

	store := start
	for i := start; i < end-1; i++ {
		if at(i) < pivot {
			idx[i], idx[store] = idx[store], idx[i]
			store++
		}
	}
	idx[store], idx[end-1] = idx[end-1], idx[store]
	return store
}

// Root returns the arena index of the root node.
func (t *Tree) Root() int32 { return 0 }

// Node returns the node at arena index i.
func (t *Tree) Node(i int32) *Node { return &t.nodes[i] }

// NumNodes returns the arena size.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// Len returns the number of points the tree is built over.
func (t *Tree) Len() int { return t.data.Rows() }

// Dims returns the dimensionality of the point set.
func (t *Tree) Dims() int { return t.data.Cols() }

// LeafSize returns the configured leaf size.
func (t *Tree) LeafSize() int { return t.leafSize }

// PointIndex translates a tree position to the original matrix row.
func (t *Tree) PointIndex(pos int) int { return t.perm.oldFromNew[pos] }

// Point returns the point at a tree position as a zero-copy row view.
func (t *Tree) Point(pos int) []float64 { return t.data.Row(t.perm.oldFromNew[pos]) }

// Permutation returns the tree's position mapping.
func (t *Tree) Permutation() *Permutation { return t.perm }

// Data returns the matrix the tree was built over.
func (t *Tree) Data() *matrix.Dense { return t.data }
