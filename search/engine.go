package search

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/allknn/matrix"
	"github.com/hupe1980/allknn/metric"
	"github.com/hupe1980/allknn/queue"
)

// PointSet is the traversal view of a point collection: contiguous
// positions [0, Len) with translation back to original matrix rows.
// kdtree.Tree satisfies it in permuted order.
type PointSet interface {
	Len() int
	Point(pos int) []float64
	PointIndex(pos int) int
}

// RawSet adapts a matrix to position space with identity indexing.
type RawSet struct {
	Data *matrix.Dense
}

// Len returns the number of points.
func (s RawSet) Len() int { return s.Data.Rows() }

// Point returns the point at a position.
func (s RawSet) Point(pos int) []float64 { return s.Data.Row(pos) }

// PointIndex returns pos unchanged.
func (s RawSet) PointIndex(pos int) int { return pos }

// Stats tallies traversal work.
type Stats struct {
	BaseCases int64 // point-to-point distance evaluations
	Scores    int64 // node score evaluations
	Prunes    int64 // subtrees or node pairs skipped
}

// Config parameterizes an Engine.
type Config struct {
	// Metric measures point-to-point distances. Defaults to Euclidean.
	Metric metric.Metric

	// Policy selects nearest or furthest neighbors. Defaults to Nearest.
	Policy Policy

	// K is the number of neighbors per query point.
	K int

	// SameSet marks that the query set is the reference set, in which
	// case a pair with identical position on both sides is skipped.
	// Both sides must then share one PointSet (or one tree).
	SameSet bool

	// Filter restricts candidates to the original indices it contains.
	// Nil admits everything.
	Filter *roaring.Bitmap

	// Workers caps traversal goroutines for the per-query engines.
	// Defaults to runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives throttled progress lines at debug level.
	Logger *slog.Logger
}

// Engine runs traversals under a fixed parameterization. It carries
// per-run counters: create one engine per search.
type Engine struct {
	metric  metric.Metric
	policy  Policy
	k       int
	sameSet bool
	filter  *roaring.Bitmap
	workers int
	log     *slog.Logger

	progress *rate.Sometimes
	done     atomic.Int64

	baseCases atomic.Int64
	scores    atomic.Int64
	prunes    atomic.Int64
}

// NewEngine creates an engine from cfg, applying defaults for unset
// fields.
func NewEngine(cfg Config) *Engine {
	if cfg.Metric == nil {
		cfg.Metric = metric.Euclidean{}
	}
	if cfg.Policy == nil {
		cfg.Policy = Nearest{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		metric:   cfg.Metric,
		policy:   cfg.Policy,
		k:        cfg.K,
		sameSet:  cfg.SameSet,
		filter:   cfg.Filter,
		workers:  cfg.Workers,
		log:      cfg.Logger,
		progress: &rate.Sometimes{Interval: time.Second},
	}
}

// Stats returns the work counters accumulated so far.
func (e *Engine) Stats() Stats {
	return Stats{
		BaseCases: e.baseCases.Load(),
		Scores:    e.scores.Load(),
		Prunes:    e.prunes.Load(),
	}
}

// baseCase evaluates one query-reference pair into the query's list.
func (e *Engine) baseCase(s *Stats, list *queue.Candidates, qPos int, qPoint []float64, ref PointSet, rPos int) {
	if e.sameSet && qPos == rPos {
		return
	}
	if e.filter != nil && !e.filter.Contains(uint32(ref.PointIndex(rPos))) {
		return
	}
	s.BaseCases++
	list.Offer(rPos, e.metric.Distance(qPoint, ref.Point(rPos)))
}

func (e *Engine) newLists(n int) []*queue.Candidates {
	lists := make([]*queue.Candidates, n)
	for i := range lists {
		lists[i] = queue.New(e.k, e.policy)
	}
	return lists
}

func (e *Engine) flush(s *Stats) {
	e.baseCases.Add(s.BaseCases)
	e.scores.Add(s.Scores)
	e.prunes.Add(s.Prunes)
}

// queryDone bumps the progress counter and emits a throttled debug line.
func (e *Engine) queryDone(total int) {
	done := e.done.Add(1)
	e.progress.Do(func() {
		e.log.Debug("search progress",
			slog.Int64("queries_done", done),
			slog.Int("queries_total", total),
		)
	})
}
