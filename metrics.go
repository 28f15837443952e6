package allknn

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/allknn/search"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    buildHistogram  prometheus.Histogram
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordSearch(mode string, k, queries int, stats search.Stats, duration time.Duration, err error) {
//	    p.searchHistogram.WithLabelValues(mode).Observe(duration.Seconds())
//	    // ... record error state, traversal counters, etc.
//	}
type MetricsCollector interface {
	// RecordTreeBuild is called after each tree construction.
	// points is the size of the indexed set, duration the time taken,
	// err is nil if successful.
	RecordTreeBuild(points int, duration time.Duration, err error)

	// RecordSearch is called after each search run. mode names the
	// traversal that ran, k is the number of neighbors requested,
	// queries the number of query points, stats are the traversal
	// counters, duration is the time taken, err is nil if successful.
	RecordSearch(mode string, k, queries int, stats search.Stats, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTreeBuild(int, time.Duration, error) {}

func (NoopMetricsCollector) RecordSearch(string, int, int, search.Stats, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	Queries          atomic.Int64
	BaseCases        atomic.Int64
	Scores           atomic.Int64
	Prunes           atomic.Int64
}

// RecordTreeBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTreeBuild(points int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector. Counters aggregate across
// traversal modes.
func (b *BasicMetricsCollector) RecordSearch(mode string, k, queries int, stats search.Stats, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.Queries.Add(int64(queries))
	b.BaseCases.Add(stats.BaseCases)
	b.Scores.Add(stats.Scores)
	b.Prunes.Add(stats.Prunes)
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildAvgNanos:  b.getAvgBuildNanos(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.getAvgSearchNanos(),
		Queries:        b.Queries.Load(),
		BaseCases:      b.BaseCases.Load(),
		Scores:         b.Scores.Load(),
		Prunes:         b.Prunes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBuildNanos() int64 {
	count := b.BuildCount.Load()
	if count == 0 {
		return 0
	}
	return b.BuildTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	BuildAvgNanos  int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	Queries        int64
	BaseCases      int64
	Scores         int64
	Prunes         int64
}
