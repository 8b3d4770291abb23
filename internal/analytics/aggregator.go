package analytics

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// latencyWindow bounds how many recent search latencies feed the percentiles.
const latencyWindow = 10000

const defaultTopQueries = 10

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	IndexBuilds       int64        `json:"index_builds"`
	FailedBuilds      int64        `json:"failed_builds"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	LastBuild         *IndexEvent  `json:"last_build,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over the events it is given.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	indexBuilds       int64
	failedBuilds      int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	lastBuild         *IndexEvent
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[event.Query]++
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Error != "" {
		a.failedBuilds++
		return
	}
	a.indexBuilds++
	e := event
	a.lastBuild = &e
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(defaultTopQueries)
}

// StatsTop is Stats with up to top entries in each query list.
func (a *Aggregator) StatsTop(top int) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		IndexBuilds:       a.indexBuilds,
		FailedBuilds:      a.failedBuilds,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queryCounts, top),
		ZeroResultQueries: topN(a.zeroResultQueries, top),
		LastBuild:         a.lastBuild,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
