package rank

import (
	"sort"
	"time"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// SignalWeights controls the contribution of each signal to the combined
// rerank score. Weights should sum to 1.
type SignalWeights struct {
	Relevance  float64
	Similarity float64
	Citations  float64
	Recency    float64
	Diversity  float64
}

// DefaultSignalWeights returns the standard weighting.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		Relevance:  0.25,
		Similarity: 0.25,
		Citations:  0.15,
		Recency:    0.15,
		Diversity:  0.20,
	}
}

const (
	// citationCap is the citation count treated as a full score.
	citationCap = 1000.0

	// recencyWindowDays is the age at which the recency signal decays
	// to zero.
	recencyWindowDays = 730.0
)

// SignalReranker re-scores candidates by combining retrieval similarity
// with analysis relevance, citation counts, publication recency, and
// diversity against the results ranked so far.
type SignalReranker struct {
	weights SignalWeights

	// now is overridable for tests.
	now func() time.Time
}

// NewSignalReranker creates a reranker with the given weights. Zero-value
// weights fall back to the defaults.
func NewSignalReranker(weights SignalWeights) *SignalReranker {
	if weights == (SignalWeights{}) {
		weights = DefaultSignalWeights()
	}
	return &SignalReranker{
		weights: weights,
		now:     time.Now,
	}
}

// Rerank orders candidates by combined signal score, best first, and
// updates each article's Score to the combined value.
//
// Diversity is computed greedily: candidates are consumed in descending
// static-score order, and each one's diversity is one minus its maximum
// embedding similarity to the articles already placed. The first placement
// gets full diversity credit.
func (r *SignalReranker) Rerank(candidates []*storage.Article, topK int) []*storage.Article {
	if len(candidates) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	static := make([]float64, len(candidates))
	for i, c := range candidates {
		static[i] = r.staticScore(c)
	}

	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}
	sort.Slice(remaining, func(a, b int) bool {
		return static[remaining[a]] > static[remaining[b]]
	})

	ranked := make([]*storage.Article, 0, topK)
	for len(ranked) < topK && len(remaining) > 0 {
		bestPos := 0
		bestScore := -1.0

		for pos, ci := range remaining {
			diversity := 1.0
			for _, placed := range ranked {
				sim := CosineSimilarity(candidates[ci].Embedding, placed.Embedding)
				if 1-sim < diversity {
					diversity = 1 - sim
				}
			}
			score := static[ci] + r.weights.Diversity*diversity
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		chosen := candidates[remaining[bestPos]]
		chosen.Score = bestScore
		ranked = append(ranked, chosen)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return ranked
}

// staticScore combines the signals that do not depend on the selection
// order.
func (r *SignalReranker) staticScore(a *storage.Article) float64 {
	relevance := float64(a.Analysis.RelevanceScore) / 100.0

	similarity := a.Score
	if similarity < 0 {
		similarity = 0
	} else if similarity > 1 {
		similarity = 1
	}

	citations := citationScore(a)
	recency := r.recencyScore(a)

	return r.weights.Relevance*relevance +
		r.weights.Similarity*similarity +
		r.weights.Citations*citations +
		r.weights.Recency*recency
}

// citationScore maps the citation count from article metadata to [0,1],
// saturating at citationCap.
func citationScore(a *storage.Article) float64 {
	if a.Metadata == nil {
		return 0
	}
	raw, ok := a.Metadata["citation_count"]
	if !ok {
		return 0
	}

	var count float64
	switch v := raw.(type) {
	case float64:
		count = v
	case int:
		count = float64(v)
	case int64:
		count = float64(v)
	default:
		return 0
	}

	if count <= 0 {
		return 0
	}
	score := count / citationCap
	if score > 1 {
		score = 1
	}
	return score
}

// recencyScore linearly decays from 1 at publication to 0 at two years.
// Articles without a publication date score zero.
func (r *SignalReranker) recencyScore(a *storage.Article) float64 {
	if a.Published.IsZero() {
		return 0
	}

	ageDays := r.now().Sub(a.Published).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays >= recencyWindowDays {
		return 0
	}
	return 1 - ageDays/recencyWindowDays
}
