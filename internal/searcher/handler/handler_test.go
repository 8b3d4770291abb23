package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/reindex"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, goredis.Nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

type fixture struct {
	server *httptest.Server
	engine *indexer.Engine
	agg    *analytics.Aggregator
	m      *metrics.Metrics
}

func newFixture(t *testing.T, src corpus.Source, withCache bool) *fixture {
	t.Helper()
	engine, err := indexer.NewEngine(config.Default().Ranking)
	require.NoError(t, err)

	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memStore{data: make(map[string][]byte)}, time.Minute, nil)
	}
	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(nil, agg, analytics.CollectorConfig{})
	m := metrics.New(prometheus.NewRegistry())
	opts := reindex.Options{Collector: collector, Metrics: m}
	if src != nil {
		opts.Source = src
	}
	if qc != nil {
		opts.Cache = qc
	}
	rx := reindex.New(engine, reindex.Config{}, opts)

	h := New(Deps{Engine: engine, Reindexer: rx, Cache: qc, Collector: collector, Metrics: m}, config.Default().Search)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, engine: engine, agg: agg, m: m}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const animalsBody = `{"ids":[1,2,3],"texts":["cat dog","cat bird","dog bird"]}`

func TestIndexThenSearch(t *testing.T) {
	f := newFixture(t, nil, false)

	resp, body := f.do(t, http.MethodPost, "/api/v1/index", animalsBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["documents"])
	assert.Equal(t, 3.0, body["terms"])

	resp, body = f.do(t, http.MethodGet, "/api/v1/search?q=cat&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, 1.0, results[0].(map[string]any)["doc_id"])
	assert.Equal(t, 2.0, results[1].(map[string]any)["doc_id"])
	assert.Equal(t, results[0].(map[string]any)["score"], results[1].(map[string]any)["score"])
	assert.Equal(t, 1.0, body["generation"])

	assert.Equal(t, int64(1), f.agg.Stats().TotalSearches)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t, nil, false)
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/search", http.StatusBadRequest},
		{"/api/v1/search?q=cat&limit=0", http.StatusBadRequest},
		{"/api/v1/search?q=cat&limit=abc", http.StatusBadRequest},
		{"/api/v1/search?q=cat&limit=100000", http.StatusOK},
		{"/api/v1/search?q=ca", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := f.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want == http.StatusBadRequest {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestSearchDefaultAndCappedLimit(t *testing.T) {
	f := newFixture(t, nil, false)
	_, body := f.do(t, http.MethodGet, "/api/v1/search?q=cat", "")
	assert.Equal(t, 20.0, body["limit"])
	assert.Empty(t, body["results"])

	_, body = f.do(t, http.MethodGet, "/api/v1/search?q=cat&limit=5000", "")
	assert.Equal(t, 100.0, body["limit"])
}

func TestIndexRejectsBadBodies(t *testing.T) {
	f := newFixture(t, nil, false)
	for _, body := range []string{
		`{"ids":[1,2],"texts":["one"]}`,
		`not json`,
		`{"ids":[1],"texts":["a"],"extra":true}`,
	} {
		resp, out := f.do(t, http.MethodPost, "/api/v1/index", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.NotEmpty(t, out["error"])
	}
	assert.Zero(t, f.engine.Stats().Generation)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil, false)
	f.do(t, http.MethodPost, "/api/v1/index", `{"ids":[7,8],"texts":["The quick brown fox","the LAZY dog"]}`)

	resp, body := f.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["documents"])
	assert.Equal(t, 6.0, body["terms"])
}

func TestSearchUsesCacheWithinGeneration(t *testing.T) {
	f := newFixture(t, nil, true)
	f.do(t, http.MethodPost, "/api/v1/index", animalsBody)

	_, body := f.do(t, http.MethodGet, "/api/v1/search?q=bird", "")
	assert.Equal(t, false, body["cache_hit"])
	_, body = f.do(t, http.MethodGet, "/api/v1/search?q=BIRD", "")
	assert.Equal(t, true, body["cache_hit"])
	assert.Len(t, body["results"], 2)

	f.do(t, http.MethodPost, "/api/v1/index", `{"ids":[9],"texts":["bird"]}`)
	_, body = f.do(t, http.MethodGet, "/api/v1/search?q=bird", "")
	assert.Equal(t, false, body["cache_hit"])
	assert.Len(t, body["results"], 1)

	_, body = f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, 1.0, body["hits"])
}

func TestReindexWithoutSource(t *testing.T) {
	f := newFixture(t, nil, false)
	resp, body := f.do(t, http.MethodPost, "/api/v1/reindex", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "corpus source not configured", body["error"])
}

func TestReindexFromSource(t *testing.T) {
	src := corpus.StaticSource{{ID: 5, Text: "rental contract"}, {ID: 6, Text: "energy invoice"}}
	f := newFixture(t, src, false)

	resp, body := f.do(t, http.MethodPost, "/api/v1/reindex", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["documents"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/reindex?wait=false", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["queued"])
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := newFixture(t, nil, false)
	_, body := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, "disabled", body["status"])

	resp, _ := f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
