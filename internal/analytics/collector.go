// Package analytics records search and index-build events. Every event feeds
// an in-process Aggregator; when a Publisher is configured the events are also
// batched onto Kafka.
package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

// Publisher writes a batch of events to the analytics topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Collector struct {
	publisher     Publisher
	aggregator    *Aggregator
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector builds a collector. publisher may be nil, in which case events
// only reach the aggregator.
func NewCollector(publisher Publisher, aggregator *Aggregator, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		aggregator:    aggregator,
		eventCh:       make(chan kafka.Event, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the publish loop in a goroutine until ctx is cancelled. Buffered
// events are flushed once more on the way out.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"publishing", c.publisher != nil,
	)
}

// TrackSearch records a search event. A nil Collector discards it.
func (c *Collector) TrackSearch(event SearchEvent) {
	if c == nil {
		return
	}
	c.aggregator.RecordSearch(event)
	c.enqueue(string(event.Type), event)
}

// TrackIndex records an index-build event.
func (c *Collector) TrackIndex(event IndexEvent) {
	if c == nil {
		return
	}
	c.aggregator.RecordIndex(event)
	c.enqueue(string(event.Type), event)
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close waits for the publish loop to exit. The context passed to Start must
// be cancelled first.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) enqueue(key string, value any) {
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: value}:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 || c.publisher == nil {
			batch = batch[:0]
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("analytics flush failed", "events", len(batch), "error", err)
		}
		batch = make([]kafka.Event, 0, c.batchSize)
	}

	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case event := <-c.eventCh:
					batch = append(batch, event)
				default:
					drained = true
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
			return
		}
	}
}
