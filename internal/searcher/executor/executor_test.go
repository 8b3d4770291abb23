package executor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
)

func buildSnapshot(t testing.TB, ids []int64, texts []string) *index.Snapshot {
	t.Helper()
	snap, err := index.NewBuilder(ranker.DefaultParams(), 4).Build(ids, texts, 1)
	require.NoError(t, err)
	return snap
}

func TestExecuteSymmetricScenario(t *testing.T) {
	snap := buildSnapshot(t, []int64{1, 2, 3}, []string{"cat dog", "cat bird", "dog bird"})

	got := New(4).Execute(snap, "cat", 10)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].DocID)
	assert.Equal(t, int64(2), got[1].DocID)
	assert.Positive(t, got[0].Score)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestExecuteQueryFrequencyIsRaw(t *testing.T) {
	snap := buildSnapshot(t, []int64{1, 2, 3}, []string{"cat dog", "cat bird", "dog bird"})
	exec := New(1)

	once := exec.Execute(snap, "cat", 10)
	twice := exec.Execute(snap, "cat CAT", 10)
	require.Len(t, once, 2)
	require.Len(t, twice, 2)
	assert.InDelta(t, 2*once[0].Score, twice[0].Score, 1e-12)

	cat, _ := snap.TermID("cat")
	assert.InDelta(t, snap.Vectors[0].Weight(cat), once[0].Score, 1e-12)
}

func TestExecuteEmptyResults(t *testing.T) {
	snap := buildSnapshot(t, []int64{1, 2}, []string{"invoice electricity", "rental contract"})
	exec := New(2)

	tests := []struct {
		name  string
		query string
		topK  int
	}{
		{"unknown terms", "zebra giraffe", 10},
		{"short tokens only", "a an of to", 10},
		{"empty query", "", 10},
		{"zero top k", "invoice", 0},
		{"negative top k", "invoice", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec.Execute(snap, tt.query, tt.topK)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExecuteNilAndEmptySnapshot(t *testing.T) {
	exec := New(2)
	assert.Empty(t, exec.Execute(nil, "invoice", 10))
	assert.Empty(t, exec.Execute(index.Empty(1), "invoice", 10))
}

func TestExecuteOrderingAndTruncation(t *testing.T) {
	ids := make([]int64, 2000)
	texts := make([]string, 2000)
	for i := range ids {
		ids[i] = int64(5000 - i)
		switch i % 4 {
		case 0:
			texts[i] = "invoice invoice invoice paid"
		case 1:
			texts[i] = "invoice paid"
		case 2:
			texts[i] = "contract signed"
		default:
			texts[i] = "invoice contract"
		}
	}
	snap := buildSnapshot(t, ids, texts)
	exec := New(8)

	all := exec.Execute(snap, "invoice", 5000)
	assert.Len(t, all, 1500)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		require.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			// ids descend with position, so ascending position means descending id
			require.Greater(t, prev.DocID, cur.DocID)
		}
	}
	for _, r := range all {
		require.Positive(t, r.Score)
	}

	top := exec.Execute(snap, "invoice", 7)
	require.Len(t, top, 7)
	assert.Equal(t, all[:7], top)
	assert.Equal(t, int64(5000), top[0].DocID)
}

func TestExecuteParallelMatchesSequential(t *testing.T) {
	ids := make([]int64, 3000)
	texts := make([]string, 3000)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	for i := range ids {
		ids[i] = int64(i)
		texts[i] = fmt.Sprintf("%s %s %s", words[i%6], words[(i/6)%6], words[(i*5)%6])
	}
	snap := buildSnapshot(t, ids, texts)

	seq := New(1).Execute(snap, "alpha gamma gamma", 100)
	par := New(16).Execute(snap, "alpha gamma gamma", 100)
	assert.Equal(t, seq, par)
}

func TestDot(t *testing.T) {
	vec := index.Vector{{TermID: 1, Weight: 0.5}, {TermID: 4, Weight: 2}, {TermID: 9, Weight: 1}}
	terms := []QueryTerm{{TermID: 0, Freq: 1}, {TermID: 4, Freq: 3}, {TermID: 9, Freq: 1}, {TermID: 12, Freq: 2}}
	assert.InDelta(t, 7.0, Dot(vec, terms), 1e-12)
	assert.Zero(t, Dot(nil, terms))
	assert.Zero(t, Dot(vec, nil))
}

func TestQueryTermsSortedAndCounted(t *testing.T) {
	snap := buildSnapshot(t, []int64{1}, []string{"zeta alpha beta"})
	terms := QueryTerms(snap, []string{"beta", "alpha", "beta", "unknown", "zeta"})
	assert.Equal(t, []QueryTerm{
		{TermID: 0, Freq: 1},
		{TermID: 1, Freq: 1},
		{TermID: 2, Freq: 2},
	}, terms)
}

func BenchmarkExecute(b *testing.B) {
	sizes := []int{1000, 10000, 50000}
	words := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	for _, n := range sizes {
		ids := make([]int64, n)
		texts := make([]string, n)
		for i := range ids {
			ids[i] = int64(i)
			texts[i] = fmt.Sprintf("document about %s and %s covering %s", words[i%8], words[(i+1)%8], words[(i+3)%8])
		}
		snap := buildSnapshot(b, ids, texts)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			exec := New(8)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = exec.Execute(snap, "search ranking engine", 20)
			}
		})
	}
}
