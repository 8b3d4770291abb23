// Package indexer owns the ranking engine: it builds index snapshots from a
// full document list and answers top-k queries against the committed one.
package indexer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// Stats describes the committed snapshot.
type Stats struct {
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Generation   uint64    `json:"generation"`
	AvgDocLength float64   `json:"avg_doc_length"`
	BuiltAt      time.Time `json:"built_at"`
}

// Engine serves searches from an immutable snapshot that AddDocuments
// replaces wholesale. Searches never block on a running build.
type Engine struct {
	builder    *index.Builder
	executor   *executor.Executor
	current    atomic.Pointer[index.Snapshot]
	buildMu    sync.Mutex
	generation uint64
	logger     *slog.Logger
}

// NewEngine validates the BM25 constants and returns an engine holding an
// empty index.
func NewEngine(cfg config.RankingConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	params := ranker.Params{K1: cfg.K1, B: cfg.B}
	e := &Engine{
		builder:  index.NewBuilder(params, cfg.Workers),
		executor: executor.New(cfg.Workers),
		logger:   slog.Default().With("component", "indexer"),
	}
	e.current.Store(index.Empty(0))
	return e, nil
}

// AddDocuments replaces the entire index with one built from ids and texts.
// On error the previously committed index stays in place.
func (e *Engine) AddDocuments(ids []int64, texts []string) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	snap, err := e.builder.Build(ids, texts, e.generation+1)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	e.generation++
	e.current.Store(snap)

	e.logger.Info("index committed",
		"generation", snap.Generation,
		"documents", snap.DocCount(),
		"terms", snap.TermCount(),
		"avg_doc_length", snap.AvgDocLength,
		"duration", time.Since(start),
	)
	return nil
}

// Search returns up to topK documents ranked by descending score. Ties keep
// the order in which documents were passed to AddDocuments.
func (e *Engine) Search(query string, topK int) []ranker.ScoredDoc {
	return e.executor.Execute(e.current.Load(), query, topK)
}

// SearchSnapshot runs Search against snap instead of the committed snapshot,
// so a caller that keyed work on snap.Generation gets results from that
// generation.
func (e *Engine) SearchSnapshot(snap *index.Snapshot, query string, topK int) []ranker.ScoredDoc {
	return e.executor.Execute(snap, query, topK)
}

// Stats reports the size of the committed index.
func (e *Engine) Stats() Stats {
	snap := e.current.Load()
	return Stats{
		Documents:    snap.DocCount(),
		Terms:        snap.TermCount(),
		Generation:   snap.Generation,
		AvgDocLength: snap.AvgDocLength,
		BuiltAt:      snap.BuiltAt,
	}
}

// Snapshot returns the committed snapshot. Callers must not modify it.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.current.Load()
}
