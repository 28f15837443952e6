package kdtree

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/allknn/matrix"
	"github.com/hupe1980/allknn/testutil"
)

func TestBuildErrors(t *testing.T) {
	t.Run("nil data", func(t *testing.T) {
		_, err := Build(nil)
		require.ErrorIs(t, err, ErrEmptySet)
	})

	t.Run("leaf size zero", func(t *testing.T) {
		data := testutil.NewRNG(1).UniformPoints(10, 2)
		_, err := Build(data, func(o *Options) { o.LeafSize = 0 })
		require.ErrorIs(t, err, ErrLeafSize)
	})
}

func TestBuildSinglePoint(t *testing.T) {
	data, err := matrix.FromRows([][]float64{{1, 2, 3}})
	require.NoError(t, err)

	tree, err := Build(data)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.NumNodes())
	root := tree.Node(tree.Root())
	assert.True(t, root.IsLeaf())
	assert.Equal(t, int32(1), root.Count)
	assert.Equal(t, []float64{1, 2, 3}, tree.Point(0))
	assert.Equal(t, 0, tree.PointIndex(0))
}

func TestBuildSingleLeafWhenLeafSizeCoversAll(t *testing.T) {
	data := testutil.NewRNG(2).UniformPoints(15, 3)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 20 })
	require.NoError(t, err)

	assert.Equal(t, 1, tree.NumNodes())
	assert.True(t, tree.Node(tree.Root()).IsLeaf())
	assert.Equal(t, int32(15), tree.Node(tree.Root()).Count)
	assert.Equal(t, 20, tree.LeafSize())
}

func TestBuildLeafSizeOne(t *testing.T) {
	data := testutil.NewRNG(3).UniformPoints(16, 2)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 1 })
	require.NoError(t, err)

	for i := 0; i < tree.NumNodes(); i++ {
		n := tree.Node(int32(i))
		if n.IsLeaf() {
			assert.Equal(t, int32(1), n.Count)
		}
	}
}

func TestLeafRangesPartitionPositions(t *testing.T) {
	data := testutil.NewRNG(4).UniformPoints(137, 5)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 8 })
	require.NoError(t, err)

	owned := make([]int, data.Rows())
	for i := 0; i < tree.NumNodes(); i++ {
		n := tree.Node(int32(i))
		if !n.IsLeaf() {
			left, right := tree.Node(n.Left), tree.Node(n.Right)
			assert.Equal(t, n.Count, left.Count+right.Count)
			assert.Equal(t, n.Begin, left.Begin)
			assert.Equal(t, left.Begin+left.Count, right.Begin)
			continue
		}
		for pos := n.Begin; pos < n.Begin+n.Count; pos++ {
			owned[pos]++
		}
	}

	for pos, c := range owned {
		assert.Equal(t, 1, c, "position %d", pos)
	}
}

func TestPermutationBijection(t *testing.T) {
	data := testutil.NewRNG(5).UniformPoints(100, 4)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 3 })
	require.NoError(t, err)

	perm := tree.Permutation()
	require.Equal(t, 100, perm.Len())

	sorted := append([]int(nil), perm.OldFromNew()...)
	sort.Ints(sorted)
	for i, v := range sorted {
		require.Equal(t, i, v)
	}

	for pos := 0; pos < perm.Len(); pos++ {
		assert.Equal(t, data.Row(perm.ToOld(pos)), tree.Point(pos))
	}
}

func TestBoundsContainOwnedPoints(t *testing.T) {
	data := testutil.NewRNG(6).GaussianPoints(80, 3)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 4 })
	require.NoError(t, err)

	for i := 0; i < tree.NumNodes(); i++ {
		n := tree.Node(int32(i))
		for pos := n.Begin; pos < n.Begin+n.Count; pos++ {
			assert.True(t, n.Bound.Contains(tree.Point(int(pos))),
				"node %d does not contain position %d", i, pos)
		}
	}
}

func TestChildBoundsNestInParent(t *testing.T) {
	data := testutil.NewRNG(7).UniformPoints(64, 2)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 2 })
	require.NoError(t, err)

	for i := 0; i < tree.NumNodes(); i++ {
		n := tree.Node(int32(i))
		if n.IsLeaf() {
			continue
		}
		for _, child := range []int32{n.Left, n.Right} {
			c := tree.Node(child)
			assert.True(t, n.Bound.Contains(c.Bound.Lo()))
			assert.True(t, n.Bound.Contains(c.Bound.Hi()))
		}
	}
}

func TestMedianSplitSeparatesHalves(t *testing.T) {
	data, err := matrix.FromRows([][]float64{
		{7}, {3}, {5}, {1}, {6}, {0}, {2}, {4},
	})
	require.NoError(t, err)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 2 })
	require.NoError(t, err)

	root := tree.Node(tree.Root())
	require.False(t, root.IsLeaf())

	left, right := tree.Node(root.Left), tree.Node(root.Right)
	assert.Equal(t, int32(4), left.Count)
	assert.Equal(t, int32(4), right.Count)
	assert.LessOrEqual(t, left.Bound.Hi()[0], right.Bound.Lo()[0])
}

func TestDuplicatePointsStayOneLeaf(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{2.5, -1}
	}
	data, err := matrix.FromRows(rows)
	require.NoError(t, err)

	tree, err := Build(data, func(o *Options) { o.LeafSize = 2 })
	require.NoError(t, err)

	assert.Equal(t, 1, tree.NumNodes())
	root := tree.Node(tree.Root())
	assert.True(t, root.IsLeaf())
	assert.Equal(t, int32(10), root.Count)

	_, width := root.Bound.WidestDim()
	assert.Equal(t, 0.0, width)
}

func TestIdentityPermutation(t *testing.T) {
	p := Identity(4)
	assert.Equal(t, 4, p.Len())
	for i := 0; i < 4; i++ {
		assert.Equal(t, i, p.ToOld(i))
	}
}
