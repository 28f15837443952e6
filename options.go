package allknn

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/metric"
	"github.com/hupe1980/allknn/search"
)

// Mode selects the traversal strategy.
type Mode int

const (
	// ModeDualTree recurses over the query and reference trees together,
	// pruning whole node pairs. Default, and the fastest choice for
	// batch workloads.
	ModeDualTree Mode = iota

	// ModeSingleTree descends the reference tree once per query point.
	ModeSingleTree

	// ModeNaive compares every query against every reference point.
	// No tree is built.
	ModeNaive
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeDualTree:
		return "dual-tree"
	case ModeSingleTree:
		return "single-tree"
	case ModeNaive:
		return "naive"
	default:
		return "unknown"
	}
}

type options struct {
	mode             Mode
	leafSize         int
	metric           metric.Metric
	policy           search.Policy
	allowList        *roaring.Bitmap
	workers          int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Searcher construction and search behavior.
type Option func(*options)

// WithMode selects the traversal strategy. Defaults to ModeDualTree.
func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithLeafSize configures the maximum number of points per tree leaf.
// Larger leaves mean fewer nodes and more exhaustive comparisons; smaller
// leaves prune harder at the cost of deeper trees. Defaults to 20.
//
// Values below 1 are rejected by New.
func WithLeafSize(leafSize int) Option {
	return func(o *options) {
		o.leafSize = leafSize
	}
}

// WithMetric configures the distance metric. Defaults to metric.Euclidean.
func WithMetric(m metric.Metric) Option {
	return func(o *options) {
		if m == nil {
			m = metric.Euclidean{}
		}
		o.metric = m
	}
}

// WithPolicy selects nearest or furthest neighbors. Defaults to
// search.Nearest.
func WithPolicy(p search.Policy) Option {
	return func(o *options) {
		if p == nil {
			p = search.Nearest{}
		}
		o.policy = p
	}
}

// WithAllowList restricts candidate neighbors to the reference indices in
// the bitmap. Search fails with ErrInsufficientPoints when the list
// leaves fewer than k eligible points. Pass nil to admit everything.
func WithAllowList(allowed *roaring.Bitmap) Option {
	return func(o *options) {
		o.allowList = allowed
	}
}

// WithWorkers caps the goroutines used by the per-query traversals.
// Defaults to runtime.GOMAXPROCS(0).
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &allknn.BasicMetricsCollector{}
//	s, _ := allknn.New(ref, allknn.WithMetricsCollector(metrics))
//	// ... search ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := allknn.NewJSONLogger(slog.LevelInfo)
//	s, _ := allknn.New(ref, allknn.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		mode:             ModeDualTree,
		leafSize:         kdtree.DefaultOptions.LeafSize,
		metric:           metric.Euclidean{},
		policy:           search.Nearest{},
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
