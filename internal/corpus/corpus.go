// Package corpus loads the documents that make up a full reindex.
package corpus

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Document is one indexable text with its external id.
type Document struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Source yields the complete corpus for one index build.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// Split returns the parallel id and text slices AddDocuments takes.
func Split(docs []Document) ([]int64, []string) {
	ids := make([]int64, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		texts[i] = d.Text
	}
	return ids, texts
}

// StaticSource serves a fixed document list.
type StaticSource []Document

func (s StaticSource) Load(ctx context.Context) ([]Document, error) {
	out := make([]Document, len(s))
	copy(out, s)
	return out, nil
}

// SearchableText joins the non-empty fields of a stored document with single
// spaces. Only the first prefixChars characters of fullText are used; a
// prefixChars <= 0 keeps the whole text.
func SearchableText(filename, summary, keywords, fullText string, prefixChars int) string {
	if prefixChars > 0 {
		fullText = truncateChars(fullText, prefixChars)
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{filename, summary, keywords, fullText} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
