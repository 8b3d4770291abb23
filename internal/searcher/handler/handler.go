// Package handler exposes the ranking engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/reindex"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

// maxIndexBody caps POST /api/v1/index request bodies.
const maxIndexBody = 256 << 20

type Engine interface {
	Snapshot() *index.Snapshot
	SearchSnapshot(snap *index.Snapshot, query string, topK int) []ranker.ScoredDoc
	Stats() indexer.Stats
}

type Reindexer interface {
	IndexParallel(ctx context.Context, ids []int64, texts []string, trigger string) (indexer.Stats, error)
	Reload(ctx context.Context, trigger string) (indexer.Stats, error)
	Trigger(trigger string) bool
	HasSource() bool
}

// Deps groups the optional collaborators. Cache, Collector and Metrics may be
// nil.
type Deps struct {
	Engine    Engine
	Reindexer Reindexer
	Cache     *cache.QueryCache
	Collector *analytics.Collector
	Metrics   *metrics.Metrics
}

type Handler struct {
	engine       Engine
	reindexer    Reindexer
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(deps Deps, cfg config.SearchConfig) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	return &Handler{
		engine:       deps.Engine,
		reindexer:    deps.Reindexer,
		cache:        deps.Cache,
		collector:    deps.Collector,
		metrics:      deps.Metrics,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/index", h.Index)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type SearchResponse struct {
	Query      string             `json:"query"`
	Limit      int                `json:"limit"`
	Generation uint64             `json:"generation"`
	Returned   int                `json:"returned"`
	CacheHit   bool               `json:"cache_hit"`
	TookMs     float64            `json:"took_ms"`
	Results    []ranker.ScoredDoc `json:"results"`
}

// Search serves GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.Invalidf("query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	snap := h.engine.Snapshot()
	compute := func() ([]ranker.ScoredDoc, error) {
		return h.engine.SearchSnapshot(snap, query, limit), nil
	}
	var (
		results  []ranker.ScoredDoc
		cacheHit bool
	)
	if h.cache != nil {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Generation, query, limit, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, fmt.Errorf("%w: search failed", apperrors.ErrInternal))
		return
	}
	if results == nil {
		results = []ranker.ScoredDoc{}
	}

	took := time.Since(start)
	h.metrics.ObserveSearch(took.Seconds(), len(results), cacheHit)
	h.collector.TrackSearch(analytics.NewSearchEvent(query, limit, len(results), took, cacheHit, snap.Generation, logger.RequestID(ctx)))
	log.Info("search completed",
		"query", query,
		"limit", limit,
		"returned", len(results),
		"generation", snap.Generation,
		"cache_hit", cacheHit,
		"took", took,
	)

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      query,
		Limit:      limit,
		Generation: snap.Generation,
		Returned:   len(results),
		CacheHit:   cacheHit,
		TookMs:     float64(took.Microseconds()) / 1000,
		Results:    results,
	})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Invalidf("limit must be a positive integer, got %q", raw)
	}
	return min(n, h.maxResults), nil
}

// Stats serves GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// IndexRequest is the body of POST /api/v1/index: the complete corpus as
// parallel id and text arrays.
type IndexRequest struct {
	IDs   []int64  `json:"ids"`
	Texts []string `json:"texts"`
}

// Index serves POST /api/v1/index, replacing the whole index.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIndexBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, apperrors.Invalidf("invalid request body: %v", err))
		return
	}
	if len(req.IDs) != len(req.Texts) {
		h.writeError(w, apperrors.Invalidf("ids and texts differ in length (%d vs %d)", len(req.IDs), len(req.Texts)))
		return
	}

	stats, err := h.reindexer.IndexParallel(r.Context(), req.IDs, req.Texts, reindex.TriggerAPI)
	if err != nil {
		logger.FromContext(r.Context()).Error("index request failed", "documents", len(req.IDs), "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Reindex serves POST /api/v1/reindex. With ?wait=false the reload is queued
// and 202 returned immediately.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if !h.reindexer.HasSource() {
		h.writeError(w, apperrors.ErrSourceDisabled)
		return
	}
	if r.URL.Query().Get("wait") == "false" {
		queued := h.reindexer.Trigger(reindex.TriggerManual)
		h.writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
		return
	}

	stats, err := h.reindexer.Reload(r.Context(), reindex.TriggerManual)
	if err != nil {
		logger.FromContext(r.Context()).Error("reindex request failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrSourceDisabled) {
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
