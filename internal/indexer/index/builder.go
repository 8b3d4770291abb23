package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/parallel"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// minDocsPerTask keeps tiny corpora from paying goroutine overhead.
const minDocsPerTask = 64

// Builder turns a document list into a Snapshot.
type Builder struct {
	params  ranker.Params
	workers int
	logger  *slog.Logger
}

func NewBuilder(params ranker.Params, workers int) *Builder {
	return &Builder{
		params:  params,
		workers: max(workers, 1),
		logger:  slog.Default().With("component", "index-builder"),
	}
}

// Build indexes texts[i] under ids[i] and returns a new snapshot tagged with
// generation. The result depends only on the inputs.
func (b *Builder) Build(ids []int64, texts []string, generation uint64) (*Snapshot, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("%w: %d ids but %d texts", apperrors.ErrInvalidArgument, len(ids), len(texts))
	}
	if len(ids) == 0 {
		b.logger.Debug("empty corpus, committing empty index", "generation", generation)
		return Empty(generation), nil
	}
	start := time.Now()
	n := len(ids)

	tokens := make([][]string, n)
	parallel.ForEachChunk(n, b.workers, minDocsPerTask, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			tokens[i] = tokenizer.Tokenize(texts[i])
		}
	})

	lengths := make([]int, n)
	for i, toks := range tokens {
		lengths[i] = len(toks)
	}
	stats := computeCorpusStats(lengths)

	vocab := NewVocabulary()
	counts := make([]TermCounts, n)
	for i, toks := range tokens {
		counts[i] = vocab.countTerms(toks)
		tokens[i] = nil
	}

	postings := buildPostings(counts, vocab.Len())
	idf := computeIDF(postings, n)

	vectors := make([]Vector, n)
	parallel.ForEachChunk(n, b.workers, minDocsPerTask, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			norm := b.params.LengthNorm(lengths[i], stats.AvgDocLength)
			vectors[i] = buildVector(counts[i], norm, idf, b.params)
		}
	})

	docIDs := make([]int64, n)
	copy(docIDs, ids)

	snap := &Snapshot{
		Generation:   generation,
		BuiltAt:      time.Now().UTC(),
		Vocabulary:   vocab.ids,
		Terms:        vocab.terms,
		IDF:          idf,
		Postings:     postings,
		Vectors:      vectors,
		DocIDs:       docIDs,
		AvgDocLength: stats.AvgDocLength,
	}
	b.logger.Debug("index snapshot built",
		"generation", generation,
		"documents", n,
		"terms", vocab.Len(),
		"avg_doc_length", stats.AvgDocLength,
		"duration", time.Since(start),
	)
	return snap, nil
}
