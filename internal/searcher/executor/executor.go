// Package executor scores a query against an index snapshot: it tokenizes the
// query, gathers candidate documents from the term postings, computes sparse
// dot products in parallel and ranks the result.
package executor

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/parallel"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
)

const minCandidatesPerTask = 256

// QueryTerm is a vocabulary term of the query and its raw frequency in it.
type QueryTerm struct {
	TermID uint32
	Freq   int
}

type Executor struct {
	workers int
	logger  *slog.Logger
}

func New(workers int) *Executor {
	return &Executor{
		workers: max(workers, 1),
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Execute returns at most topK documents of snap with a positive score for
// query. A document's score is the sum over shared terms of its BM25 weight
// times the term's raw frequency in the query.
func (e *Executor) Execute(snap *index.Snapshot, query string, topK int) []ranker.ScoredDoc {
	if topK <= 0 || snap == nil || snap.DocCount() == 0 {
		return []ranker.ScoredDoc{}
	}
	terms := QueryTerms(snap, tokenizer.Tokenize(query))
	if len(terms) == 0 {
		return []ranker.ScoredDoc{}
	}

	positions := candidates(snap, terms).ToArray()
	scored := make([]ranker.Candidate, len(positions))
	parallel.ForEachChunk(len(positions), e.workers, minCandidatesPerTask, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			pos := int(positions[j])
			scored[j] = ranker.Candidate{
				Position: pos,
				DocID:    snap.DocIDs[pos],
				Score:    Dot(snap.Vectors[pos], terms),
			}
		}
	})

	results := ranker.TopK(scored, topK)
	e.logger.Debug("query executed",
		"query", query,
		"generation", snap.Generation,
		"terms", len(terms),
		"candidates", len(positions),
		"results", len(results),
	)
	return results
}

// QueryTerms counts the query tokens that exist in the vocabulary and returns
// them sorted by term id. Unknown tokens are dropped.
func QueryTerms(snap *index.Snapshot, tokens []string) []QueryTerm {
	freqs := make(map[uint32]int, len(tokens))
	for _, tok := range tokens {
		if id, ok := snap.TermID(tok); ok {
			freqs[id]++
		}
	}
	terms := make([]QueryTerm, 0, len(freqs))
	for id, f := range freqs {
		terms = append(terms, QueryTerm{TermID: id, Freq: f})
	}
	slices.SortFunc(terms, func(a, b QueryTerm) int {
		return cmp.Compare(a.TermID, b.TermID)
	})
	return terms
}

// Dot intersects a document vector with the query terms by merging the two
// id-sorted lists.
func Dot(vec index.Vector, terms []QueryTerm) float64 {
	var score float64
	i, j := 0, 0
	for i < len(vec) && j < len(terms) {
		switch {
		case vec[i].TermID < terms[j].TermID:
			i++
		case vec[i].TermID > terms[j].TermID:
			j++
		default:
			score += vec[i].Weight * float64(terms[j].Freq)
			i++
			j++
		}
	}
	return score
}

// candidates returns the positions of documents containing at least one
// query term.
func candidates(snap *index.Snapshot, terms []QueryTerm) *roaring.Bitmap {
	bitmaps := make([]*roaring.Bitmap, len(terms))
	for i, t := range terms {
		bitmaps[i] = snap.Postings[t.TermID]
	}
	return roaring.FastOr(bitmaps...)
}
