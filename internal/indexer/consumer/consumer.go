// Package consumer turns reindex requests read from Kafka into full index
// rebuilds.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/reindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

// SourceCorpus in a request asks for a reload from the configured corpus
// source instead of an inline document list.
const SourceCorpus = "corpus"

// ReindexRequest is the message payload on the reindex-requests topic. It
// carries either the complete document list or Source == "corpus".
type ReindexRequest struct {
	Source    string            `json:"source,omitempty"`
	Documents []corpus.Document `json:"documents,omitempty"`
}

// Indexer is the part of the reindexer the consumer drives.
type Indexer interface {
	Index(ctx context.Context, docs []corpus.Document, trigger string) (indexer.Stats, error)
	Reload(ctx context.Context, trigger string) (indexer.Stats, error)
}

// HandleMessage returns a MessageHandler applying each request. Undecodable
// or invalid requests are logged and acknowledged so they are not redelivered;
// source failures are returned so the offset is left uncommitted.
func HandleMessage(ix Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "reindex-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[ReindexRequest](value)
		if err != nil {
			logger.Error("dropping undecodable reindex request", "key", string(key), "error", err)
			return nil
		}

		var stats indexer.Stats
		switch {
		case req.Source == SourceCorpus:
			stats, err = ix.Reload(ctx, reindex.TriggerKafka)
		case req.Source != "":
			logger.Error("dropping reindex request with unknown source", "source", req.Source)
			return nil
		default:
			stats, err = ix.Index(ctx, req.Documents, reindex.TriggerKafka)
		}

		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrSourceDisabled):
			logger.Error("dropping unprocessable reindex request", "key", string(key), "error", err)
			return nil
		default:
			return fmt.Errorf("applying reindex request: %w", err)
		}

		logger.Info("reindex request applied",
			"key", string(key),
			"generation", stats.Generation,
			"documents", stats.Documents,
		)
		return nil
	}
}
