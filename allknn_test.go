package allknn_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/allknn"
	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/matrix"
	"github.com/hupe1980/allknn/search"
	"github.com/hupe1980/allknn/testutil"
)

// asNeighbors flattens a result into per-query neighbor slices for
// comparison against the brute-force oracle.
func asNeighbors(res *allknn.Result) [][]testutil.Neighbor {
	out := make([][]testutil.Neighbor, res.NumQueries)
	for q := 0; q < res.NumQueries; q++ {
		out[q] = make([]testutil.Neighbor, res.K)
		for i := 0; i < res.K; i++ {
			idx, dist := res.Neighbor(i, q)
			out[q][i] = testutil.Neighbor{Index: idx, Distance: dist}
		}
	}
	return out
}

func assertMatchesOracle(t *testing.T, res *allknn.Result, want [][]testutil.Neighbor) {
	t.Helper()

	got := asNeighbors(res)
	require.Equal(t, len(want), len(got))
	for q := range want {
		require.Equal(t, len(want[q]), len(got[q]), "query %d", q)
		for i := range want[q] {
			assert.Equal(t, want[q][i].Index, got[q][i].Index, "query %d rank %d", q, i)
			assert.InDelta(t, want[q][i].Distance, got[q][i].Distance, 1e-12, "query %d rank %d", q, i)
		}
	}
}

func TestNewValidation(t *testing.T) {
	_, err := allknn.New(nil)
	assert.ErrorIs(t, err, allknn.ErrEmptySet)

	_, err = allknn.NewFromTree(nil)
	assert.ErrorIs(t, err, allknn.ErrEmptySet)

	ref := testutil.NewRNG(1).UniformPoints(10, 2)
	_, err = allknn.New(ref, allknn.WithLeafSize(0))
	assert.ErrorIs(t, err, allknn.ErrLeafSize)
}

func TestSearchInvalidK(t *testing.T) {
	ref := testutil.NewRNG(2).UniformPoints(10, 2)
	s, err := allknn.New(ref)
	require.NoError(t, err)

	for _, k := range []int{-1, 0, 10, 11} {
		_, err := s.Search(context.Background(), k)
		require.Error(t, err, "k=%d", k)
		assert.ErrorIs(t, err, allknn.ErrInvalidK, "k=%d", k)

		var kerr *allknn.KError
		require.ErrorAs(t, err, &kerr, "k=%d", k)
		assert.Equal(t, k, kerr.K)
		assert.Equal(t, 10, kerr.Max)
	}

	// k < N holds for a separate query set too.
	queries := testutil.NewRNG(3).UniformPoints(4, 2)
	_, err = s.SearchWith(context.Background(), queries, 10)
	assert.ErrorIs(t, err, allknn.ErrInvalidK)
}

func TestSearchWithDimensionMismatch(t *testing.T) {
	rng := testutil.NewRNG(4)
	s, err := allknn.New(rng.UniformPoints(10, 3))
	require.NoError(t, err)

	_, err = s.SearchWith(context.Background(), rng.UniformPoints(5, 2), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, allknn.ErrDimensionMismatch)

	var derr *allknn.DimensionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Expected)
	assert.Equal(t, 2, derr.Actual)

	_, err = s.SearchWith(context.Background(), nil, 2)
	assert.ErrorIs(t, err, allknn.ErrEmptySet)
}

var allModes = []allknn.Mode{allknn.ModeNaive, allknn.ModeSingleTree, allknn.ModeDualTree}

func TestModeEquivalenceSelfQuery(t *testing.T) {
	rng := testutil.NewRNG(5)

	for _, dims := range []int{1, 2, 3, 8, 10} {
		ref := rng.UniformPoints(60, dims)

		for _, k := range []int{1, 3, 7, 59} {
			want := testutil.BruteForce(ref, ref, k, true)

			for _, mode := range allModes {
				for _, leafSize := range []int{1, 3, 20, 60} {
					s, err := allknn.New(ref,
						allknn.WithMode(mode),
						allknn.WithLeafSize(leafSize),
					)
					require.NoError(t, err)

					res, err := s.Search(context.Background(), k)
					require.NoError(t, err, "mode=%s dims=%d k=%d leaf=%d", mode, dims, k, leafSize)
					assertMatchesOracle(t, res, want)

					if mode == allknn.ModeNaive {
						break // leaf size does not matter without a tree
					}
				}
			}
		}
	}
}

func TestModeEquivalenceSeparateQueries(t *testing.T) {
	rng := testutil.NewRNG(6)
	ref := rng.ClusteredPoints(120, 3, 4, 0.1)
	queries := rng.UniformPoints(35, 3)

	for _, k := range []int{1, 5} {
		want := testutil.BruteForce(ref, queries, k, false)

		for _, mode := range allModes {
			s, err := allknn.New(ref, allknn.WithMode(mode), allknn.WithLeafSize(5))
			require.NoError(t, err)

			res, err := s.SearchWith(context.Background(), queries, k)
			require.NoError(t, err, "mode=%s k=%d", mode, k)
			assertMatchesOracle(t, res, want)
		}
	}
}

func TestScenarioFourPoints(t *testing.T) {
	ref, err := matrix.FromRows([][]float64{
		{0, 0},
		{1, 0},
		{0, 1},
		{5, 5},
	})
	require.NoError(t, err)

	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			s, err := allknn.New(ref, allknn.WithMode(mode))
			require.NoError(t, err)

			res, err := s.Search(context.Background(), 1)
			require.NoError(t, err)

			idx0, d0 := res.Neighbor(0, 0)
			assert.Contains(t, []int{1, 2}, idx0)
			assert.InDelta(t, 1.0, d0, 1e-12)

			idx1, d1 := res.Neighbor(0, 1)
			assert.Equal(t, 0, idx1)
			assert.InDelta(t, 1.0, d1, 1e-12)

			idx2, d2 := res.Neighbor(0, 2)
			assert.Equal(t, 0, idx2)
			assert.InDelta(t, 1.0, d2, 1e-12)

			idx3, d3 := res.Neighbor(0, 3)
			assert.Contains(t, []int{1, 2}, idx3)
			assert.InDelta(t, math.Sqrt(32), d3, 1e-12)
		})
	}
}

func TestDistancesSortedByRank(t *testing.T) {
	rng := testutil.NewRNG(7)
	ref := rng.GaussianPoints(80, 4)

	s, err := allknn.New(ref, allknn.WithLeafSize(6))
	require.NoError(t, err)

	res, err := s.Search(context.Background(), 10)
	require.NoError(t, err)

	for q := 0; q < res.NumQueries; q++ {
		for i := 1; i < res.K; i++ {
			assert.LessOrEqual(t, res.Distances.At(i-1, q), res.Distances.At(i, q),
				"query %d rank %d", q, i)
		}
	}
}

func TestSelfNeverListed(t *testing.T) {
	rng := testutil.NewRNG(8)
	ref := rng.UniformPoints(40, 2)

	for _, mode := range allModes {
		s, err := allknn.New(ref, allknn.WithMode(mode), allknn.WithLeafSize(3))
		require.NoError(t, err)

		res, err := s.Search(context.Background(), 5)
		require.NoError(t, err)

		for q := 0; q < res.NumQueries; q++ {
			for i := 0; i < res.K; i++ {
				idx, _ := res.Neighbor(i, q)
				assert.NotEqual(t, q, idx, "mode=%s query %d rank %d", mode, q, i)
			}
		}
	}
}

func TestDuplicatePointIsListed(t *testing.T) {
	ref, err := matrix.FromRows([][]float64{
		{1, 1},
		{1, 1},
		{9, 9},
	})
	require.NoError(t, err)

	s, err := allknn.New(ref)
	require.NoError(t, err)

	res, err := s.Search(context.Background(), 1)
	require.NoError(t, err)

	idx, dist := res.Neighbor(0, 0)
	assert.Equal(t, 1, idx)
	assert.Zero(t, dist)

	idx, dist = res.Neighbor(0, 1)
	assert.Equal(t, 0, idx)
	assert.Zero(t, dist)
}

func TestAllowListMatchesRestrictedNaive(t *testing.T) {
	rng := testutil.NewRNG(9)
	ref := rng.UniformPoints(50, 3)

	allowed := roaring.New()
	for i := uint32(0); i < 50; i += 2 {
		allowed.Add(i)
	}

	// Oracle: brute force over the even-indexed subset only.
	rows := make([][]float64, 0, 25)
	subsetToFull := make([]int, 0, 25)
	for i := 0; i < 50; i += 2 {
		rows = append(rows, ref.Row(i))
		subsetToFull = append(subsetToFull, i)
	}
	subset, err := matrix.FromRows(rows)
	require.NoError(t, err)
	// One extra rank so dropping the query itself still leaves k entries.
	want := testutil.BruteForce(subset, ref, 5, false)

	for _, mode := range allModes {
		s, err := allknn.New(ref,
			allknn.WithMode(mode),
			allknn.WithLeafSize(4),
			allknn.WithAllowList(allowed),
		)
		require.NoError(t, err)

		res, err := s.Search(context.Background(), 4)
		require.NoError(t, err, "mode=%s", mode)

		for q := 0; q < res.NumQueries; q++ {
			wantQ := want[q]
			// The self-query path drops the query itself from its own
			// oracle column when the query is in the subset.
			filtered := make([]testutil.Neighbor, 0, 4)
			for _, n := range wantQ {
				if subsetToFull[n.Index] == q {
					continue
				}
				filtered = append(filtered, testutil.Neighbor{
					Index:    subsetToFull[n.Index],
					Distance: n.Distance,
				})
			}
			for i := 0; i < res.K && i < len(filtered); i++ {
				idx, dist := res.Neighbor(i, q)
				assert.Equal(t, filtered[i].Index, idx, "mode=%s query %d rank %d", mode, q, i)
				assert.InDelta(t, filtered[i].Distance, dist, 1e-12, "mode=%s query %d rank %d", mode, q, i)
			}
		}
	}
}

func TestAllowListTooSmall(t *testing.T) {
	rng := testutil.NewRNG(10)
	ref := rng.UniformPoints(20, 2)

	allowed := roaring.New()
	allowed.AddRange(0, 3)

	s, err := allknn.New(ref, allknn.WithAllowList(allowed))
	require.NoError(t, err)

	// Self-query needs k+1 allowed points: 3 allowed, k=3 fails.
	_, err = s.Search(context.Background(), 3)
	assert.ErrorIs(t, err, allknn.ErrInsufficientPoints)

	// A separate query set needs only k.
	queries := rng.UniformPoints(5, 2)
	_, err = s.SearchWith(context.Background(), queries, 3)
	assert.NoError(t, err)
}

func TestNewFromTreeSnapshot(t *testing.T) {
	rng := testutil.NewRNG(11)
	ref := rng.UniformPoints(64, 3)

	s1, err := allknn.New(ref, allknn.WithLeafSize(4))
	require.NoError(t, err)
	require.NotNil(t, s1.Tree())

	path := filepath.Join(t.TempDir(), "ref.tree")
	require.NoError(t, s1.Tree().SaveToFile(path))

	tree, err := kdtree.LoadFromFile(path, ref)
	require.NoError(t, err)

	s2, err := allknn.NewFromTree(tree)
	require.NoError(t, err)

	res1, err := s1.Search(context.Background(), 5)
	require.NoError(t, err)
	res2, err := s2.Search(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, asNeighbors(res1), asNeighbors(res2))
}

func TestFurthestPolicy(t *testing.T) {
	rng := testutil.NewRNG(12)
	ref := rng.UniformPoints(45, 3)
	want := testutil.BruteForceFurthest(ref, ref, 4, true)

	for _, mode := range allModes {
		s, err := allknn.New(ref,
			allknn.WithMode(mode),
			allknn.WithLeafSize(5),
			allknn.WithPolicy(search.Furthest{}),
		)
		require.NoError(t, err)

		res, err := s.Search(context.Background(), 4)
		require.NoError(t, err, "mode=%s", mode)
		assertMatchesOracle(t, res, want)

		// Furthest results run largest to smallest.
		for q := 0; q < res.NumQueries; q++ {
			for i := 1; i < res.K; i++ {
				assert.GreaterOrEqual(t, res.Distances.At(i-1, q), res.Distances.At(i, q))
			}
		}
	}
}

func TestNaiveModeBuildsNoTree(t *testing.T) {
	ref := testutil.NewRNG(13).UniformPoints(10, 2)

	s, err := allknn.New(ref, allknn.WithMode(allknn.ModeNaive))
	require.NoError(t, err)
	assert.Nil(t, s.Tree())

	res, err := s.Search(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 10, res.NumQueries)
}

func TestConcurrentSearches(t *testing.T) {
	rng := testutil.NewRNG(14)
	ref := rng.UniformPoints(50, 3)

	s, err := allknn.New(ref, allknn.WithLeafSize(4))
	require.NoError(t, err)

	want := testutil.BruteForce(ref, ref, 3, true)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := s.Search(context.Background(), 3)
			if err == nil {
				for q := range want {
					idx, _ := res.Neighbor(0, q)
					if idx != want[q][0].Index {
						err = errors.New("result mismatch under concurrency")
						break
					}
				}
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}

func TestContextCanceled(t *testing.T) {
	rng := testutil.NewRNG(15)
	ref := rng.UniformPoints(200, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, mode := range allModes {
		s, err := allknn.New(ref, allknn.WithMode(mode))
		require.NoError(t, err)

		_, err = s.Search(ctx, 3)
		assert.ErrorIs(t, err, context.Canceled, "mode=%s", mode)
	}
}

func TestMetricsCollected(t *testing.T) {
	rng := testutil.NewRNG(16)
	ref := rng.UniformPoints(40, 2)

	metrics := &allknn.BasicMetricsCollector{}
	s, err := allknn.New(ref, allknn.WithMetricsCollector(metrics))
	require.NoError(t, err)

	_, err = s.Search(context.Background(), 3)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(40), stats.Queries)
	assert.Positive(t, stats.BaseCases)
}

// recordingCollector captures the labels of the last search.
type recordingCollector struct {
	allknn.NoopMetricsCollector

	mode    string
	k       int
	queries int
}

func (r *recordingCollector) RecordSearch(mode string, k, queries int, stats search.Stats, duration time.Duration, err error) {
	r.mode, r.k, r.queries = mode, k, queries
}

func TestMetricsCarrySearchLabels(t *testing.T) {
	rng := testutil.NewRNG(17)
	ref := rng.UniformPoints(30, 2)
	queries := rng.UniformPoints(12, 2)

	rec := &recordingCollector{}
	s, err := allknn.New(ref,
		allknn.WithMode(allknn.ModeSingleTree),
		allknn.WithMetricsCollector(rec),
	)
	require.NoError(t, err)

	_, err = s.SearchWith(context.Background(), queries, 5)
	require.NoError(t, err)

	assert.Equal(t, "single-tree", rec.mode)
	assert.Equal(t, 5, rec.k)
	assert.Equal(t, 12, rec.queries)
}
