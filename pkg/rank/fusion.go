package rank

import (
	"sort"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// rrfK dampens the influence of top ranks in reciprocal rank fusion.
const rrfK = 60.0

// FuseRRF merges multiple ranked result lists with reciprocal rank fusion.
// Each occurrence of an article contributes 1/(k+rank) to its fused score,
// so articles surfacing in several lists rise above one-list hits.
//
// The returned articles carry the fused score in Score and are ordered
// best first, truncated to topK (zero or less means no truncation).
func FuseRRF(lists [][]*storage.Article, topK int) []*storage.Article {
	scores := make(map[int64]float64)
	byID := make(map[int64]*storage.Article)

	for _, list := range lists {
		for rank, article := range list {
			if article == nil {
				continue
			}
			scores[article.ID] += 1.0 / (rrfK + float64(rank+1))
			if _, ok := byID[article.ID]; !ok {
				byID[article.ID] = article
			}
		}
	}

	fused := make([]*storage.Article, 0, len(scores))
	for id, score := range scores {
		article := byID[id]
		article.Score = score
		fused = append(fused, article)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
