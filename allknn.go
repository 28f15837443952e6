package allknn

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/matrix"
	"github.com/hupe1980/allknn/queue"
	"github.com/hupe1980/allknn/search"
)

// Searcher answers exact k-nearest-neighbor queries against a fixed
// reference point set. The reference tree is built once in New (except in
// naive mode, which needs none) and shared read-only afterwards, so a
// Searcher is safe for concurrent Search and SearchWith calls.
type Searcher struct {
	opts options
	ref  *matrix.Dense
	tree *kdtree.Tree // nil in naive mode
}

// New creates a Searcher over the reference point set (one point per row).
// The matrix must stay alive and unmodified for the Searcher's lifetime.
func New(ref *matrix.Dense, optFns ...Option) (*Searcher, error) {
	o := applyOptions(optFns)

	if ref == nil || ref.Rows() == 0 {
		return nil, ErrEmptySet
	}
	if o.leafSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLeafSize, o.leafSize)
	}

	s := &Searcher{opts: o, ref: ref}
	if o.mode == ModeNaive {
		return s, nil
	}

	tree, err := s.buildTree(ref)
	if err != nil {
		return nil, err
	}
	s.tree = tree
	return s, nil
}

// NewFromTree creates a Searcher around a pre-built reference tree, e.g.
// one loaded from a snapshot. WithLeafSize is ignored; the tree's layout
// is authoritative. ModeNaive is still honored (the tree is kept only for
// Tree).
func NewFromTree(tree *kdtree.Tree, optFns ...Option) (*Searcher, error) {
	if tree == nil || tree.Len() == 0 {
		return nil, ErrEmptySet
	}
	o := applyOptions(optFns)
	return &Searcher{opts: o, ref: tree.Data(), tree: tree}, nil
}

// Tree returns the reference tree, or nil in naive mode. The tree is
// read-only; it may be persisted with its WriteTo/SaveToFile methods.
func (s *Searcher) Tree() *kdtree.Tree { return s.tree }

// Ref returns the reference point set the Searcher was built over.
func (s *Searcher) Ref() *matrix.Dense { return s.ref }

// Search finds the k best neighbors of every reference point within the
// reference set itself. A point is never reported as its own neighbor.
func (s *Searcher) Search(ctx context.Context, k int) (*Result, error) {
	return s.search(ctx, nil, k)
}

// SearchWith finds the k best reference neighbors of every query point.
// Queries use the same one-point-per-row layout and must match the
// reference dimensionality.
func (s *Searcher) SearchWith(ctx context.Context, queries *matrix.Dense, k int) (*Result, error) {
	if queries == nil || queries.Rows() == 0 {
		return nil, ErrEmptySet
	}
	if queries.Cols() != s.ref.Cols() {
		return nil, newDimensionError(s.ref.Cols(), queries.Cols())
	}
	return s.search(ctx, queries, k)
}

// search runs one traversal. queries == nil marks the self-query path.
func (s *Searcher) search(ctx context.Context, queries *matrix.Dense, k int) (*Result, error) {
	sameSet := queries == nil

	if k <= 0 || k >= s.ref.Rows() {
		return nil, newKError(k, s.ref.Rows())
	}
	if err := s.checkAllowList(k, sameSet); err != nil {
		return nil, err
	}

	numQueries := s.ref.Rows()
	if !sameSet {
		numQueries = queries.Rows()
	}

	engine := search.NewEngine(search.Config{
		Metric:  s.opts.metric,
		Policy:  s.opts.policy,
		K:       k,
		SameSet: sameSet,
		Filter:  s.opts.allowList,
		Workers: s.opts.workers,
		Logger:  s.opts.logger.Logger,
	})

	start := time.Now()
	lists, qPerm, rPerm, err := s.run(ctx, engine, queries, sameSet)
	took := time.Since(start)

	stats := engine.Stats()
	s.opts.metricsCollector.RecordSearch(s.opts.mode.String(), k, numQueries, stats, took, err)
	s.opts.logger.LogSearch(ctx, s.opts.mode.String(), k, numQueries, stats, took, err)
	if err != nil {
		return nil, err
	}
	return assemble(lists, qPerm, rPerm, k), nil
}

// run dispatches to the configured engine and reports the permutations
// that translate its position space back to caller indices.
func (s *Searcher) run(ctx context.Context, engine *search.Engine, queries *matrix.Dense, sameSet bool) (lists []*queue.Candidates, qPerm, rPerm *kdtree.Permutation, err error) {
	switch s.opts.mode {
	case ModeNaive:
		// Raw sets keep original row order, no remap needed.
		rSet := search.RawSet{Data: s.ref}
		qSet := rSet
		if !sameSet {
			qSet = search.RawSet{Data: queries}
		}
		rPerm = kdtree.Identity(s.ref.Rows())
		qPerm = rPerm
		if !sameSet {
			qPerm = kdtree.Identity(queries.Rows())
		}
		lists, err = engine.Naive(ctx, qSet, rSet)

	case ModeSingleTree:
		rPerm = s.tree.Permutation()
		if sameSet {
			// Queries iterate the tree in permuted order so that the
			// position-equality self check lines up with the reference side.
			qPerm = rPerm
			lists, err = engine.SingleTree(ctx, s.tree, s.tree)
			break
		}
		// A query tree would only permute output columns and be undone by
		// the remap; the raw matrix serves directly.
		qPerm = kdtree.Identity(queries.Rows())
		lists, err = engine.SingleTree(ctx, search.RawSet{Data: queries}, s.tree)

	case ModeDualTree:
		rPerm = s.tree.Permutation()
		qTree := s.tree
		if !sameSet {
			qTree, err = s.buildTree(queries)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		qPerm = qTree.Permutation()
		lists, err = engine.DualTree(ctx, qTree, s.tree)

	default:
		err = fmt.Errorf("allknn: unknown mode %d", s.opts.mode)
	}
	return lists, qPerm, rPerm, err
}

// buildTree builds a tree with the configured leaf size, recording timing
// through the logger and metrics collector.
func (s *Searcher) buildTree(data *matrix.Dense) (*kdtree.Tree, error) {
	start := time.Now()
	tree, err := kdtree.Build(data, func(o *kdtree.Options) {
		o.LeafSize = s.opts.leafSize
	})
	took := time.Since(start)

	s.opts.metricsCollector.RecordTreeBuild(data.Rows(), took, err)

	nodes := 0
	if tree != nil {
		nodes = tree.NumNodes()
	}
	s.opts.logger.LogTreeBuild(context.Background(), data.Rows(), nodes, s.opts.leafSize, took, err)

	return tree, err
}

// checkAllowList rejects filters that cannot fill a candidate list. The
// self-query path needs one spare point since a query never counts itself.
func (s *Searcher) checkAllowList(k int, sameSet bool) error {
	if s.opts.allowList == nil {
		return nil
	}
	need := uint64(k)
	if sameSet {
		need++
	}
	if card := s.opts.allowList.GetCardinality(); card < need {
		return fmt.Errorf("%w: allow-list holds %d points, need %d", ErrInsufficientPoints, card, need)
	}
	return nil
}

// assemble translates candidate lists from tree position space into the
// caller's original indexing and lays them out as k x M result grids.
func assemble(lists []*queue.Candidates, qPerm, rPerm *kdtree.Permutation, k int) *Result {
	m := len(lists)
	neighbors := matrix.NewInts(k, m)
	distances := matrix.NewDense(k, m)

	for pos, list := range lists {
		if list.Len() != k {
			panic(fmt.Sprintf("allknn: candidate list for query %d holds %d of %d entries", qPerm.ToOld(pos), list.Len(), k))
		}
		col := qPerm.ToOld(pos)
		for i := 0; i < k; i++ {
			p, d := list.At(i)
			neighbors.Set(i, col, rPerm.ToOld(p))
			distances.Set(i, col, d)
		}
	}

	return &Result{
		K:          k,
		NumQueries: m,
		Neighbors:  neighbors,
		Distances:  distances,
	}
}
