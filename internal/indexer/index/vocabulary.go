package index

// Vocabulary assigns term ids in first-seen order.
type Vocabulary struct {
	ids   map[string]uint32
	terms []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]uint32), terms: []string{}}
}

// Add returns the id of term, assigning the next unused id if the term has
// not been seen yet.
func (v *Vocabulary) Add(term string) uint32 {
	if id, ok := v.ids[term]; ok {
		return id
	}
	id := uint32(len(v.terms))
	v.ids[term] = id
	v.terms = append(v.terms, term)
	return id
}

func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// TermCounts maps term ids to their frequency within one document.
type TermCounts map[uint32]int

// countTerms adds every token to the vocabulary and returns the document's
// term frequencies.
func (v *Vocabulary) countTerms(tokens []string) TermCounts {
	counts := make(TermCounts, len(tokens))
	for _, tok := range tokens {
		counts[v.Add(tok)]++
	}
	return counts
}
