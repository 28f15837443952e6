package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/queue"
)

// SingleTree runs an independent best-first descent of the reference tree
// for every query point. Queries fan out over a bounded worker group.
func (e *Engine) SingleTree(ctx context.Context, queries PointSet, ref *kdtree.Tree) ([]*queue.Candidates, error) {
	lists := e.newLists(queries.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	total := queries.Len()
	for q := 0; q < total; q++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var local Stats
			e.descend(&local, lists[q], q, queries.Point(q), ref, ref.Root())

			e.flush(&local)
			e.queryDone(total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: single-tree: %w", err)
	}
	return lists, nil
}

// descend walks the subtree rooted at nodeID for one query point,
// visiting the more promising child first. A child whose score cannot
// beat the query's current worst candidate is pruned; the second child is
// re-checked after the first returns since the descent may have
// tightened the list.
func (e *Engine) descend(s *Stats, list *queue.Candidates, qPos int, qPoint []float64, ref *kdtree.Tree, nodeID int32) {
	node := ref.Node(nodeID)
	if node.IsLeaf() {
		for pos := node.Begin; pos < node.Begin+node.Count; pos++ {
			e.baseCase(s, list, qPos, qPoint, ref, int(pos))
		}
		return
	}

	leftScore := e.policy.NodeToPoint(ref.Node(node.Left).Bound, qPoint)
	rightScore := e.policy.NodeToPoint(ref.Node(node.Right).Bound, qPoint)
	s.Scores += 2

	first, second := node.Left, node.Right
	firstScore, secondScore := leftScore, rightScore
	if e.policy.Better(rightScore, leftScore) {
		first, second = node.Right, node.Left
		firstScore, secondScore = rightScore, leftScore
	}

	if e.policy.Better(firstScore, list.WorstDistance()) {
		e.descend(s, list, qPos, qPoint, ref, first)
	} else {
		s.Prunes++
	}
	if e.policy.Better(secondScore, list.WorstDistance()) {
		e.descend(s, list, qPos, qPoint, ref, second)
	} else {
		s.Prunes++
	}
}
