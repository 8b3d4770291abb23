// Package ranker holds the BM25 weighting formulas and the top-k selection
// used to order scored documents.
package ranker

import (
	"container/heap"
	"math"
)

// Params are the BM25 tuning constants.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// Candidate is a scored document together with its position in the index,
// which breaks score ties.
type Candidate struct {
	Position int
	DocID    int64
	Score    float64
}

// IDF returns ln((N - df + 0.5) / (df + 0.5) + 1).
func IDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// LengthNorm returns 1 - b + b*(docLength/avgDocLength), the per-document
// part of the BM25 denominator.
func (p Params) LengthNorm(docLength int, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 1 - p.B
	}
	return 1 - p.B + p.B*(float64(docLength)/avgDocLength)
}

// Weight returns the BM25 weight of a term occurring tf times in a document
// whose length normalisation is lengthNorm. tf must be at least 1.
func (p Params) Weight(idf float64, tf int, lengthNorm float64) float64 {
	termFreq := float64(tf)
	return idf * (termFreq * (p.K1 + 1)) / (termFreq + p.K1*lengthNorm)
}

// TopK drops candidates with a score <= 0 and returns at most k of the rest,
// ordered by descending score and then ascending position.
func TopK(candidates []Candidate, k int) []ScoredDoc {
	if k <= 0 {
		return []ScoredDoc{}
	}
	h := make(candidateHeap, 0, min(k, len(candidates))+1)
	for _, c := range candidates {
		if !(c.Score > 0) {
			continue
		}
		if len(h) == k {
			if !better(c, h[0]) {
				continue
			}
			h[0] = c
			heap.Fix(&h, 0)
			continue
		}
		heap.Push(&h, c)
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(Candidate)
		result[i] = ScoredDoc{DocID: c.DocID, Score: c.Score}
	}
	return result
}

// better reports whether a ranks ahead of b.
func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

// candidateHeap keeps the worst retained candidate at the root.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
