package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/queue"
)

// visitCheckInterval is how many node-pair visits pass between context
// checks and progress reports during a dual traversal.
const visitCheckInterval = 1024

// DualTree recurses over (query node, reference node) pairs from the two
// roots in one goroutine. Every query node carries a bound B: the worst
// k-th best distance over the query points it owns, at the policy's worst
// sentinel while any owned list is underfull. A pair whose optimistic
// score cannot beat B is pruned with all its descendants. A self-search
// passes the same tree on both sides.
func (e *Engine) DualTree(ctx context.Context, queries, ref *kdtree.Tree) ([]*queue.Candidates, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: dual-tree: %w", err)
	}

	lists := e.newLists(queries.Len())

	d := &dualTraversal{
		engine:  e,
		ctx:     ctx,
		queries: queries,
		ref:     ref,
		lists:   lists,
		bounds:  make([]float64, queries.NumNodes()),
	}
	for i := range d.bounds {
		d.bounds[i] = e.policy.Worst()
	}

	if err := d.visit(queries.Root(), ref.Root()); err != nil {
		return nil, fmt.Errorf("search: dual-tree: %w", err)
	}
	e.flush(&d.stats)
	return lists, nil
}

type dualTraversal struct {
	engine  *Engine
	ctx     context.Context
	queries *kdtree.Tree
	ref     *kdtree.Tree
	lists   []*queue.Candidates
	bounds  []float64 // per query node, only ever tightens
	visits  int
	stats   Stats
}

// visit handles one admitted pair.
func (d *dualTraversal) visit(qID, rID int32) error {
	d.visits++
	if d.visits%visitCheckInterval == 0 {
		if err := d.ctx.Err(); err != nil {
			return err
		}
		d.engine.progress.Do(func() {
			d.engine.log.Debug("search progress", slog.Int("node_pairs", d.visits))
		})
	}

	q := d.queries.Node(qID)
	r := d.ref.Node(rID)

	switch {
	case q.IsLeaf() && r.IsLeaf():
		d.leafPair(qID, q, r)

	case q.IsLeaf():
		return d.intoRef(qID, r)

	case r.IsLeaf():
		if err := d.admit(q.Left, rID); err != nil {
			return err
		}
		if err := d.admit(q.Right, rID); err != nil {
			return err
		}
		d.tighten(qID, q)

	default:
		if err := d.intoRef(q.Left, r); err != nil {
			return err
		}
		if err := d.intoRef(q.Right, r); err != nil {
			return err
		}
		d.tighten(qID, q)
	}
	return nil
}

// leafPair base-cases all owned query x reference pairs, then tightens
// the leaf's bound to the worst list bound among its queries.
func (d *dualTraversal) leafPair(qID int32, q, r *kdtree.Node) {
	e := d.engine

	var acc float64
	for i, pos := 0, int(q.Begin); pos < int(q.Begin+q.Count); i, pos = i+1, pos+1 {
		list := d.lists[pos]
		qPoint := d.queries.Point(pos)
		for rPos := r.Begin; rPos < r.Begin+r.Count; rPos++ {
			e.baseCase(&d.stats, list, pos, qPoint, d.ref, int(rPos))
		}

		w := list.WorstDistance()
		if i == 0 || e.policy.Better(acc, w) {
			acc = w
		}
	}

	if e.policy.Better(acc, d.bounds[qID]) {
		d.bounds[qID] = acc
	}
}

// admit scores a pair and visits it unless it is prunable.
func (d *dualTraversal) admit(qID, rID int32) error {
	p := d.engine.policy
	score := p.NodeToNode(d.queries.Node(qID).Bound, d.ref.Node(rID).Bound)
	d.stats.Scores++

	if !p.Better(score, d.bounds[qID]) {
		d.stats.Prunes++
		return nil
	}
	return d.visit(qID, rID)
}

// intoRef recurses a query node into both reference children, the more
// promising first. The second child is re-checked after the first
// returns since the descent tightens bounds.
func (d *dualTraversal) intoRef(qID int32, r *kdtree.Node) error {
	p := d.engine.policy
	qBound := d.queries.Node(qID).Bound

	leftScore := p.NodeToNode(qBound, d.ref.Node(r.Left).Bound)
	rightScore := p.NodeToNode(qBound, d.ref.Node(r.Right).Bound)
	d.stats.Scores += 2

	first, second := r.Left, r.Right
	firstScore, secondScore := leftScore, rightScore
	if p.Better(rightScore, leftScore) {
		first, second = r.Right, r.Left
		firstScore, secondScore = rightScore, leftScore
	}

	if !p.Better(firstScore, d.bounds[qID]) {
		d.stats.Prunes += 2
		return nil
	}
	if err := d.visit(qID, first); err != nil {
		return err
	}

	if !p.Better(secondScore, d.bounds[qID]) {
		d.stats.Prunes++
		return nil
	}
	return d.visit(qID, second)
}

// tighten raises a query node's bound to the worse of its children's.
func (d *dualTraversal) tighten(qID int32, q *kdtree.Node) {
	p := d.engine.policy

	b := d.bounds[q.Left]
	if p.Better(b, d.bounds[q.Right]) {
		b = d.bounds[q.Right]
	}
	if p.Better(b, d.bounds[qID]) {
		d.bounds[qID] = b
	}
}
