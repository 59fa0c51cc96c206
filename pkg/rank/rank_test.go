package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

func article(id int64, score float64, embedding []float64) *storage.Article {
	return &storage.Article{
		ID:        id,
		Title:     "article",
		Score:     score,
		Embedding: embedding,
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Mismatched or empty vectors score zero.
	assert.Zero(t, CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestMMRFirstPickIsMostRelevant(t *testing.T) {
	candidates := []*storage.Article{
		article(1, 0.7, []float64{1, 0}),
		article(2, 0.9, []float64{0.99, 0.14}),
		article(3, 0.5, []float64{0, 1}),
	}

	ranked := NewMMRRanker().Rank(candidates, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(2), ranked[0].ID)
}

func TestMMRPrefersDiversity(t *testing.T) {
	// Articles 1 and 2 are near-duplicates; 3 is orthogonal but less
	// relevant. MMR should pick the duplicate's twin last.
	candidates := []*storage.Article{
		article(1, 0.90, []float64{1, 0}),
		article(2, 0.89, []float64{1, 0.001}),
		article(3, 0.60, []float64{0, 1}),
	}

	ranked := NewMMRRanker().Rank(candidates, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(1), ranked[0].ID)
	assert.Equal(t, int64(3), ranked[1].ID)
	assert.Equal(t, int64(2), ranked[2].ID)
}

func TestMMRPureRelevance(t *testing.T) {
	candidates := []*storage.Article{
		article(1, 0.90, []float64{1, 0}),
		article(2, 0.89, []float64{1, 0.001}),
		article(3, 0.60, []float64{0, 1}),
	}

	ranked := NewMMRRanker(WithLambda(1.0)).Rank(candidates, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestWithLambdaIgnoresOutOfRange(t *testing.T) {
	assert.Equal(t, defaultLambda, NewMMRRanker(WithLambda(-0.1)).lambda)
	assert.Equal(t, defaultLambda, NewMMRRanker(WithLambda(1.5)).lambda)
	assert.Equal(t, 0.0, NewMMRRanker(WithLambda(0)).lambda)
	assert.Equal(t, 0.7, NewMMRRanker(WithLambda(0.7)).lambda)
}

func TestMMRScoreWeighting(t *testing.T) {
	a := article(1, 0.8, []float64{1, 0})
	a.Analysis.RelevanceScore = 40
	b := article(2, 0.8, []float64{0, 1})
	b.Analysis.RelevanceScore = 95

	ranked := NewMMRRanker(WithScoreWeighting()).Rank([]*storage.Article{a, b}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].ID)
}

func TestMMRTopKBounds(t *testing.T) {
	candidates := []*storage.Article{
		article(1, 0.9, []float64{1, 0}),
		article(2, 0.8, []float64{0, 1}),
	}

	assert.Len(t, NewMMRRanker().Rank(candidates, 1), 1)
	assert.Len(t, NewMMRRanker().Rank(candidates, 10), 2)
	assert.Nil(t, NewMMRRanker().Rank(nil, 5))
}

func TestSignalRerankerRecency(t *testing.T) {
	r := NewSignalReranker(SignalWeights{Recency: 1.0})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	fresh := article(1, 0, nil)
	fresh.Published = now.AddDate(0, 0, -10)
	stale := article(2, 0, nil)
	stale.Published = now.AddDate(-3, 0, 0)
	undated := article(3, 0, nil)

	assert.InDelta(t, 1-10.0/730.0, r.recencyScore(fresh), 1e-9)
	assert.Zero(t, r.recencyScore(stale))
	assert.Zero(t, r.recencyScore(undated))
}

func TestCitationScore(t *testing.T) {
	a := article(1, 0, nil)
	assert.Zero(t, citationScore(a))

	a.Metadata = map[string]interface{}{"citation_count": float64(250)}
	assert.InDelta(t, 0.25, citationScore(a), 1e-9)

	a.Metadata["citation_count"] = float64(5000)
	assert.InDelta(t, 1.0, citationScore(a), 1e-9)
}

func TestSignalRerankerDiversityBreaksTies(t *testing.T) {
	// Identical static signals; the reranker should order the orthogonal
	// candidate above the near-duplicate of the first pick.
	a := article(1, 0.9, []float64{1, 0})
	b := article(2, 0.9, []float64{1, 0.001})
	c := article(3, 0.9, []float64{0, 1})

	r := NewSignalReranker(DefaultSignalWeights())
	ranked := r.Rerank([]*storage.Article{a, b, c}, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(3), ranked[1].ID)
}

func TestSignalRerankerOrdersByRelevance(t *testing.T) {
	low := article(1, 0.5, []float64{1, 0})
	low.Analysis.RelevanceScore = 20
	high := article(2, 0.5, []float64{0, 1})
	high.Analysis.RelevanceScore = 95

	ranked := NewSignalReranker(DefaultSignalWeights()).Rerank([]*storage.Article{low, high}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].ID)
}

func TestFuseRRF(t *testing.T) {
	a := article(1, 0, nil)
	b := article(2, 0, nil)
	c := article(3, 0, nil)

	// Article 2 appears in both lists, so it must win despite never
	// ranking first.
	lists := [][]*storage.Article{
		{a, b},
		{c, b},
	}

	fused := FuseRRF(lists, 0)
	require.Len(t, fused, 3)
	assert.Equal(t, int64(2), fused[0].ID)
	assert.InDelta(t, 2.0/62.0, fused[0].Score, 1e-9)
}

func TestFuseRRFTopK(t *testing.T) {
	lists := [][]*storage.Article{
		{article(1, 0, nil), article(2, 0, nil), article(3, 0, nil)},
	}

	fused := FuseRRF(lists, 2)
	assert.Len(t, fused, 2)
	assert.Equal(t, int64(1), fused[0].ID)
}

func TestFuseRRFEmpty(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, 5))
	assert.Empty(t, FuseRRF([][]*storage.Article{{}, {}}, 5))
}
