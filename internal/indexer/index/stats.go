package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
)

// CorpusStats are the collection-wide numbers BM25 needs.
type CorpusStats struct {
	Documents    int
	TotalLength  int64
	AvgDocLength float64
}

// computeCorpusStats sums document lengths. avgdl is 0 for an empty corpus.
func computeCorpusStats(lengths []int) CorpusStats {
	stats := CorpusStats{Documents: len(lengths)}
	for _, l := range lengths {
		stats.TotalLength += int64(l)
	}
	if stats.Documents > 0 {
		stats.AvgDocLength = float64(stats.TotalLength) / float64(stats.Documents)
	}
	return stats
}

// buildPostings records, per term id, the positions of the documents that
// contain it.
func buildPostings(counts []TermCounts, numTerms int) []*roaring.Bitmap {
	postings := make([]*roaring.Bitmap, numTerms)
	for i := range postings {
		postings[i] = roaring.New()
	}
	for pos, tc := range counts {
		for termID := range tc {
			postings[termID].Add(uint32(pos))
		}
	}
	for _, p := range postings {
		p.RunOptimize()
	}
	return postings
}

// computeIDF derives the IDF table from the postings cardinalities.
func computeIDF(postings []*roaring.Bitmap, totalDocs int) []float64 {
	idf := make([]float64, len(postings))
	for termID, p := range postings {
		idf[termID] = ranker.IDF(totalDocs, int(p.GetCardinality()))
	}
	return idf
}
