// Package index builds and holds the immutable BM25 index snapshot: the
// vocabulary, IDF table, per-term postings and the sparse document vectors.
package index

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Entry is one non-zero component of a sparse document vector.
type Entry struct {
	TermID uint32
	Weight float64
}

// Vector is a sparse document vector, strictly ascending by TermID.
type Vector []Entry

// Snapshot is a fully built, read-only index. A Snapshot is never mutated
// after Build returns it, so any number of readers may share it.
//
// len(Vectors) == len(DocIDs) and len(Terms) == len(IDF) == len(Postings).
type Snapshot struct {
	Generation   uint64
	BuiltAt      time.Time
	Vocabulary   map[string]uint32
	Terms        []string
	IDF          []float64
	Postings     []*roaring.Bitmap
	Vectors      []Vector
	DocIDs       []int64
	AvgDocLength float64
}

// Empty returns a snapshot with no documents and no terms.
func Empty(generation uint64) *Snapshot {
	return &Snapshot{
		Generation: generation,
		BuiltAt:    time.Now().UTC(),
		Vocabulary: map[string]uint32{},
		Terms:      []string{},
		IDF:        []float64{},
		Postings:   []*roaring.Bitmap{},
		Vectors:    []Vector{},
		DocIDs:     []int64{},
	}
}

func (s *Snapshot) DocCount() int {
	return len(s.DocIDs)
}

func (s *Snapshot) TermCount() int {
	return len(s.Terms)
}

// TermID looks up a term in the vocabulary.
func (s *Snapshot) TermID(term string) (uint32, bool) {
	id, ok := s.Vocabulary[term]
	return id, ok
}

// DocFreq returns the number of documents containing the term.
func (s *Snapshot) DocFreq(termID uint32) int {
	return int(s.Postings[termID].GetCardinality())
}
