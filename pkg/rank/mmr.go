// Package rank provides re-ranking strategies applied after candidate
// retrieval: maximal marginal relevance for diversity, a weighted
// multi-signal reranker, and reciprocal rank fusion for merging result
// lists from multiple queries.
package rank

import (
	"math"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const (
	// defaultLambda balances relevance against diversity in MMR.
	defaultLambda = 0.5
)

// MMROption configures the MMR ranker.
type MMROption func(*MMRRanker)

// WithLambda sets the relevance/diversity tradeoff. 1.0 is pure
// relevance, 0.0 is pure diversity. Values outside [0, 1] are ignored
// and the default kept.
func WithLambda(lambda float64) MMROption {
	return func(r *MMRRanker) {
		if lambda >= 0 && lambda <= 1 {
			r.lambda = lambda
		}
	}
}

// WithScoreWeighting multiplies each candidate's retrieval relevance by
// its analysis score scaled to [0,1], so highly rated articles are
// preferred among equally similar ones.
func WithScoreWeighting() MMROption {
	return func(r *MMRRanker) {
		r.scoreWeighted = true
	}
}

// MMRRanker selects a diverse subset of candidates using maximal
// marginal relevance.
type MMRRanker struct {
	lambda        float64
	scoreWeighted bool
}

// NewMMRRanker creates an MMR ranker with lambda 0.5 unless overridden.
func NewMMRRanker(opts ...MMROption) *MMRRanker {
	r := &MMRRanker{lambda: defaultLambda}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank greedily selects up to topK candidates. At each step the candidate
// with the highest marginal score wins:
//
//	mmr = lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// The first pick sees no selected set, so its diversity term is zero and
// the most relevant candidate always opens the result.
//
// Candidates without embeddings contribute zero similarity and are
// effectively ranked on relevance alone.
func (r *MMRRanker) Rank(candidates []*storage.Article, topK int) []*storage.Article {
	if len(candidates) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		rel := c.Score
		if r.scoreWeighted {
			rel *= float64(c.Analysis.RelevanceScore) / 100.0
		}
		relevance[i] = rel
	}

	selected := make([]*storage.Article, 0, topK)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < topK && len(remaining) > 0 {
		bestPos := 0
		bestScore := math.Inf(-1)

		for pos, ci := range remaining {
			diversity := 0.0
			for _, s := range selected {
				sim := CosineSimilarity(candidates[ci].Embedding, s.Embedding)
				if sim > diversity {
					diversity = sim
				}
			}
			score := r.lambda*relevance[ci] - (1-r.lambda)*diversity
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		selected = append(selected, candidates[remaining[bestPos]])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched or empty vectors score zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
