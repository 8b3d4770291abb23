package index

import (
	"cmp"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
)

// buildVector computes the BM25 weight of every term in one document and
// returns them sorted by term id.
func buildVector(counts TermCounts, lengthNorm float64, idf []float64, params ranker.Params) Vector {
	vec := make(Vector, 0, len(counts))
	for termID, tf := range counts {
		vec = append(vec, Entry{
			TermID: termID,
			Weight: params.Weight(idf[termID], tf, lengthNorm),
		})
	}
	slices.SortFunc(vec, func(a, b Entry) int {
		return cmp.Compare(a.TermID, b.TermID)
	})
	return vec
}

// Weight returns the weight stored for termID, or 0 if the document does not
// contain it.
func (v Vector) Weight(termID uint32) float64 {
	i, ok := slices.BinarySearchFunc(v, termID, func(e Entry, id uint32) int {
		return cmp.Compare(e.TermID, id)
	})
	if !ok {
		return 0
	}
	return v[i].Weight
}
