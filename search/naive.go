package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/allknn/queue"
)

// Naive scans every query x reference pair. It needs no tree: positions
// are the caller's own indices. Queries fan out over a bounded worker
// group; each list is owned by exactly one goroutine.
func (e *Engine) Naive(ctx context.Context, queries, ref PointSet) ([]*queue.Candidates, error) {
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
			list := lists[q]
			qPoint := queries.Point(q)
			for r := 0; r < ref.Len(); r++ {
				e.baseCase(&local, list, q, qPoint, ref, r)
			}

			e.flush(&local)
			e.queryDone(total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: naive: %w", err)
	}
	return lists, nil
}
