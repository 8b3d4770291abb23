package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
)

// PostgresSource reads documents from the `documents` table:
//
//	CREATE TABLE documents (
//	    id        BIGSERIAL PRIMARY KEY,
//	    filename  TEXT,
//	    summary   TEXT,
//	    keywords  TEXT,
//	    full_text TEXT
//	);
type PostgresSource struct {
	db     *postgres.Client
	cfg    config.CorpusConfig
	logger *slog.Logger
}

func NewPostgresSource(db *postgres.Client, cfg config.CorpusConfig) *PostgresSource {
	return &PostgresSource{
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

const selectDocuments = `
SELECT id,
       COALESCE(filename, ''),
       COALESCE(summary, ''),
       COALESCE(keywords, ''),
       COALESCE(full_text, '')
FROM documents
ORDER BY id
LIMIT $1`

// Load reads up to cfg.Limit documents in id order inside one read-only
// transaction.
func (s *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	limit := s.cfg.Limit
	if limit <= 0 {
		limit = 10000
	}
	var docs []Document
	err := s.db.InTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectDocuments, limit)
		if err != nil {
			return fmt.Errorf("querying documents: %w", err)
		}
		defer rows.Close()

		docs = make([]Document, 0, 256)
		for rows.Next() {
			var (
				id                                   int64
				filename, summary, keywords, fullTxt string
			)
			if err := rows.Scan(&id, &filename, &summary, &keywords, &fullTxt); err != nil {
				return fmt.Errorf("scanning document row: %w", err)
			}
			docs = append(docs, Document{
				ID:   id,
				Text: SearchableText(filename, summary, keywords, fullTxt, s.cfg.FullTextPrefix),
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("corpus loaded", "documents", len(docs), "limit", limit)
	return docs, nil
}
