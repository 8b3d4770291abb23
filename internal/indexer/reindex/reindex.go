// Package reindex drives full index rebuilds: from the configured corpus
// source at startup, on a reload interval and on demand, or from an explicit
// document list.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// Trigger values recorded on events and logs.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerKafka    = "kafka"
	TriggerAPI      = "api"
)

// Invalidator drops cached search results after a rebuild.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces a committed rebuild.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// IndexCompleteEvent is published after every successful rebuild.
type IndexCompleteEvent struct {
	Generation  uint64    `json:"generation"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Trigger     string    `json:"trigger"`
	DurationMs  float64   `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

type Config struct {
	ReloadInterval time.Duration
	LoadTimeout    time.Duration
	Retry          resilience.RetryConfig
}

// Options carries the optional collaborators. Any nil field is skipped.
type Options struct {
	Source    corpus.Source
	Cache     Invalidator
	Notifier  Notifier
	Collector *analytics.Collector
	Metrics   *metrics.Metrics
}

type Reindexer struct {
	engine  *indexer.Engine
	opts    Options
	cfg     Config
	loading atomic.Bool
	pending chan string
	logger  *slog.Logger
}

func New(engine *indexer.Engine, cfg Config, opts Options) *Reindexer {
	return &Reindexer{
		engine:  engine,
		opts:    opts,
		cfg:     cfg,
		pending: make(chan string, 1),
		logger:  slog.Default().With("component", "reindexer"),
	}
}

// HasSource reports whether corpus reloads are possible.
func (r *Reindexer) HasSource() bool {
	return r.opts.Source != nil
}

// Index rebuilds the engine from docs. It waits for any running build.
func (r *Reindexer) Index(ctx context.Context, docs []corpus.Document, trigger string) (indexer.Stats, error) {
	ids, texts := corpus.Split(docs)
	return r.build(ctx, ids, texts, trigger)
}

// IndexParallel rebuilds the engine from parallel id and text slices.
func (r *Reindexer) IndexParallel(ctx context.Context, ids []int64, texts []string, trigger string) (indexer.Stats, error) {
	return r.build(ctx, ids, texts, trigger)
}

// Reload loads the corpus source and rebuilds from it. Only one reload runs
// at a time; a concurrent call fails with ErrIndexBusy.
func (r *Reindexer) Reload(ctx context.Context, trigger string) (indexer.Stats, error) {
	if r.opts.Source == nil {
		return indexer.Stats{}, apperrors.ErrSourceDisabled
	}
	if !r.loading.CompareAndSwap(false, true) {
		return indexer.Stats{}, apperrors.ErrIndexBusy
	}
	defer r.loading.Store(false)

	var docs []corpus.Document
	err := resilience.Retry(ctx, "corpus load", r.cfg.Retry, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.cfg.LoadTimeout, "corpus load", func(ctx context.Context) error {
			var err error
			docs, err = r.opts.Source.Load(ctx)
			return err
		})
	})
	if err != nil {
		r.observe(trigger, 0, err)
		return indexer.Stats{}, fmt.Errorf("loading corpus: %w", err)
	}
	return r.Index(ctx, docs, trigger)
}

// Trigger queues a reload for Run. It reports false when one is already
// queued.
func (r *Reindexer) Trigger(trigger string) bool {
	select {
	case r.pending <- trigger:
		return true
	default:
		return false
	}
}

// Run reloads once at startup when a source is configured, then on every
// ReloadInterval tick and every Trigger, until ctx is cancelled.
func (r *Reindexer) Run(ctx context.Context) {
	if r.opts.Source == nil {
		r.logger.Info("no corpus source configured, waiting for explicit index requests")
	} else {
		r.reloadAndLog(ctx, TriggerStartup)
	}

	var tick <-chan time.Time
	if r.cfg.ReloadInterval > 0 && r.opts.Source != nil {
		ticker := time.NewTicker(r.cfg.ReloadInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.reloadAndLog(ctx, TriggerInterval)
		case trigger := <-r.pending:
			r.reloadAndLog(ctx, trigger)
		}
	}
}

func (r *Reindexer) reloadAndLog(ctx context.Context, trigger string) {
	if _, err := r.Reload(ctx, trigger); err != nil && ctx.Err() == nil {
		level := slog.LevelError
		if errors.Is(err, apperrors.ErrIndexBusy) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "reindex failed", "trigger", trigger, "error", err)
	}
}

func (r *Reindexer) build(ctx context.Context, ids []int64, texts []string, trigger string) (indexer.Stats, error) {
	start := time.Now()
	err := r.engine.AddDocuments(ids, texts)
	elapsed := time.Since(start)
	r.observe(trigger, elapsed, err)
	if err != nil {
		return indexer.Stats{}, err
	}

	stats := r.engine.Stats()
	if r.opts.Cache != nil {
		if err := r.opts.Cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation failed", "generation", stats.Generation, "error", err)
		}
	}
	if r.opts.Notifier != nil {
		event := IndexCompleteEvent{
			Generation:  stats.Generation,
			Documents:   stats.Documents,
			Terms:       stats.Terms,
			Trigger:     trigger,
			DurationMs:  float64(elapsed.Microseconds()) / 1000,
			CompletedAt: time.Now().UTC(),
		}
		key := fmt.Sprintf("generation-%d", stats.Generation)
		if err := r.opts.Notifier.Publish(ctx, kafka.Event{Key: key, Value: event}); err != nil {
			r.logger.Warn("index-complete notification failed", "generation", stats.Generation, "error", err)
		}
	}
	r.logger.Info("reindex complete",
		"trigger", trigger,
		"generation", stats.Generation,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"duration", elapsed,
	)
	return stats, nil
}

func (r *Reindexer) observe(trigger string, elapsed time.Duration, err error) {
	stats := r.engine.Stats()
	r.opts.Metrics.ObserveBuild(elapsed.Seconds(), stats.Documents, stats.Terms, err)

	event := analytics.IndexEvent{
		Type:       analytics.EventIndexBuild,
		Generation: stats.Generation,
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		Trigger:    trigger,
		LatencyMs:  float64(elapsed.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	r.opts.Collector.TrackIndex(event)
}
