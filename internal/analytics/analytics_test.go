package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestNewSearchEventType(t *testing.T) {
	ev := NewSearchEvent("cat", 10, 0, 1500*time.Microsecond, false, 2, "req-1")
	assert.Equal(t, EventZeroResult, ev.Type)
	assert.InDelta(t, 1.5, ev.LatencyMs, 1e-9)

	ev = NewSearchEvent("cat", 10, 3, time.Millisecond, true, 2, "")
	assert.Equal(t, EventSearch, ev.Type)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 3; i++ {
		agg.RecordSearch(NewSearchEvent("cat", 10, 2, time.Duration(i+1)*time.Millisecond, i == 0, 1, ""))
	}
	agg.RecordSearch(NewSearchEvent("zebra", 10, 0, 4*time.Millisecond, false, 1, ""))
	agg.RecordIndex(IndexEvent{Type: EventIndexBuild, Generation: 1, Documents: 3, Terms: 3})
	agg.RecordIndex(IndexEvent{Type: EventIndexBuild, Generation: 2, Error: "boom"})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.IndexBuilds)
	assert.Equal(t, int64(1), stats.FailedBuilds)
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, uint64(1), stats.LastBuild.Generation)

	assert.InDelta(t, 2.5, stats.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 3.0, stats.P50LatencyMs, 1e-9)
	assert.InDelta(t, 4.0, stats.P99LatencyMs, 1e-9)

	assert.Equal(t, []QueryCount{{"cat", 3}, {"zebra", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"zebra", 1}}, stats.ZeroResultQueries)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+10; i++ {
		agg.RecordSearch(SearchEvent{Query: "q", Returned: 1, LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, 10, agg.next)
}

func TestTopNTieBreak(t *testing.T) {
	got := topN(map[string]int64{"b": 2, "a": 2, "c": 5}, 2)
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 2}}, got)
}

func TestCollectorPublishesOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, agg, CollectorConfig{BatchSize: 100, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.TrackSearch(NewSearchEvent("cat", 10, 1, time.Millisecond, false, 1, ""))
	c.TrackIndex(IndexEvent{Type: EventIndexBuild, Generation: 1})
	cancel()
	c.Close()

	assert.Equal(t, 2, pub.count())
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, NewAggregator(), CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
	}()
	c.Start(ctx)

	c.TrackSearch(SearchEvent{Query: "a"})
	c.TrackSearch(SearchEvent{Query: "b"})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, NewAggregator(), CollectorConfig{BufferSize: 1})
	c.TrackSearch(SearchEvent{Query: "a"})
	c.TrackSearch(SearchEvent{Query: "b"})
	assert.Equal(t, int64(1), c.Dropped())
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.TrackSearch(SearchEvent{})
		c.TrackIndex(IndexEvent{})
	})
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "cat", Returned: 1, LatencyMs: 2})
	agg.RecordSearch(SearchEvent{Query: "dog", Returned: 1, LatencyMs: 3})
	agg.RecordSearch(SearchEvent{Query: "dog", Returned: 1, LatencyMs: 4})
	h := StatsHandler(agg)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.TotalSearches)
	assert.Len(t, got.TopQueries, 2)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []QueryCount{{Query: "dog", Count: 2}}, got.TopQueries)

	for _, top := range []string{"0", "abc", "101"} {
		rec = httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+top, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "top=%s", top)
	}
}
