package kdtree

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/allknn/persistence"
	"github.com/hupe1980/allknn/testutil"
)

func assertSameTree(t *testing.T, want, got *Tree) {
	t.Helper()

	require.Equal(t, want.NumNodes(), got.NumNodes())
	require.Equal(t, want.LeafSize(), got.LeafSize())
	require.Equal(t, want.Permutation().OldFromNew(), got.Permutation().OldFromNew())

	for i := 0; i < want.NumNodes(); i++ {
		w, g := want.Node(int32(i)), got.Node(int32(i))
		assert.Equal(t, w.Left, g.Left, "node %d left", i)
		assert.Equal(t, w.Right, g.Right, "node %d right", i)
		assert.Equal(t, w.Begin, g.Begin, "node %d begin", i)
		assert.Equal(t, w.Count, g.Count, "node %d count", i)
		assert.Equal(t, w.Bound.Lo(), g.Bound.Lo(), "node %d lo", i)
		assert.Equal(t, w.Bound.Hi(), g.Bound.Hi(), "node %d hi", i)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	data := testutil.NewRNG(11).UniformPoints(40, 3)
	want, err := Build(data, func(o *Options) { o.LeafSize = 5 })
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := want.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := ReadFrom(&buf, data)
	require.NoError(t, err)
	assertSameTree(t, want, got)
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	data := testutil.NewRNG(12).GaussianPoints(100, 4)
	want, err := Build(data, func(o *Options) { o.LeafSize = 3 })
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tree.bin")
	require.NoError(t, want.SaveToFile(path))

	got, err := LoadFromFile(path, data)
	require.NoError(t, err)
	assertSameTree(t, want, got)
}

func TestSnapshotSinglePointTree(t *testing.T) {
	data := testutil.NewRNG(13).UniformPoints(1, 2)
	want, err := Build(data)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = want.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadFrom(&buf, data)
	require.NoError(t, err)
	assertSameTree(t, want, got)
}

func TestSnapshotShapeMismatch(t *testing.T) {
	rng := testutil.NewRNG(14)
	data := rng.UniformPoints(30, 3)
	tree, err := Build(data)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = tree.WriteTo(&buf)
	require.NoError(t, err)

	t.Run("row count", func(t *testing.T) {
		other := rng.UniformPoints(29, 3)
		_, err := ReadFrom(bytes.NewReader(buf.Bytes()), other)
		require.ErrorIs(t, err, ErrSnapshotMismatch)
	})

	t.Run("dimensions", func(t *testing.T) {
		other := rng.UniformPoints(30, 4)
		_, err := ReadFrom(bytes.NewReader(buf.Bytes()), other)
		require.ErrorIs(t, err, ErrSnapshotMismatch)
	})
}

func TestSnapshotWrongKind(t *testing.T) {
	var buf bytes.Buffer
	bw := persistence.NewBinaryWriter(&buf)
	require.NoError(t, bw.WriteHeader(&persistence.FileHeader{
		Kind:  persistence.KindMatrix,
		Rows:  30,
		Cols:  3,
		Extra: 20,
	}))

	data := testutil.NewRNG(15).UniformPoints(30, 3)
	_, err := ReadFrom(&buf, data)
	require.ErrorIs(t, err, persistence.ErrInvalidKind)
}

func TestSnapshotLeafSizeLargerThanSet(t *testing.T) {
	data := testutil.NewRNG(17).UniformPoints(20, 2)
	want, err := Build(data, func(o *Options) { o.LeafSize = 64 })
	require.NoError(t, err)
	require.Equal(t, 1, want.NumNodes())

	var buf bytes.Buffer
	_, err = want.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadFrom(&buf, data)
	require.NoError(t, err)
	assertSameTree(t, want, got)
	assert.Equal(t, 64, got.LeafSize())
}

func TestSnapshotRejectsCorruptArena(t *testing.T) {
	data := testutil.NewRNG(18).UniformPoints(20, 2)

	// Builds a fresh tree, applies the damage and returns its encoding.
	encode := func(t *testing.T, damage func(tr *Tree)) []byte {
		t.Helper()

		tree, err := Build(data, func(o *Options) { o.LeafSize = 2 })
		require.NoError(t, err)
		require.Greater(t, tree.NumNodes(), 3)

		damage(tree)

		var buf bytes.Buffer
		_, err = tree.WriteTo(&buf)
		require.NoError(t, err)
		return buf.Bytes()
	}

	tests := []struct {
		name   string
		damage func(tr *Tree)
	}{
		{
			name:   "self referencing child",
			damage: func(tr *Tree) { tr.nodes[0].Left = 0 },
		},
		{
			name:   "backward child link",
			damage: func(tr *Tree) { tr.nodes[2].Left, tr.nodes[2].Right = 0, 1 },
		},
		{
			name:   "child link out of range",
			damage: func(tr *Tree) { tr.nodes[0].Right = int32(tr.NumNodes()) },
		},
		{
			name:   "single child",
			damage: func(tr *Tree) { tr.nodes[0].Right = NoChild },
		},
		{
			name:   "root does not cover the point set",
			damage: func(tr *Tree) { tr.nodes[0].Count-- },
		},
		{
			name: "children do not partition the parent",
			damage: func(tr *Tree) {
				left := tr.nodes[0].Left
				tr.nodes[left].Begin++
			},
		},
		{
			name:   "leaf size inconsistent with splits",
			damage: func(tr *Tree) { tr.leafSize = 100 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := encode(t, tt.damage)
			tree, err := ReadFrom(bytes.NewReader(raw), data)
			require.ErrorContains(t, err, "snapshot corrupt")
			assert.Nil(t, tree)
		})
	}
}

func TestSnapshotTruncated(t *testing.T) {
	data := testutil.NewRNG(16).UniformPoints(50, 2)
	tree, err := Build(data, func(o *Options) { o.LeafSize = 4 })
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = tree.WriteTo(&buf)
	require.NoError(t, err)

	short := buf.Bytes()[:buf.Len()/2]
	_, err = ReadFrom(bytes.NewReader(short), data)
	require.Error(t, err)
}
