package graph

import (
	"fmt"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// AddArticle projects an analyzed article into the graph: a paper entity
// plus concept entities for its platform, model family, the techniques
// named in its analysis, and the publishing source as a company entity.
// Technique and optimization edges use the "uses" relationship; the rest
// use "relates_to". Edge weight is the article's relevance score scaled
// to [0,1].
func (g *Graph) AddArticle(article *storage.Article) error {
	paperID := fmt.Sprintf("paper:%d", article.ID)
	g.AddEntity(&Entity{
		ID:        paperID,
		Type:      EntityPaper,
		Name:      article.Title,
		ArticleID: article.ID,
		Properties: map[string]interface{}{
			"source": article.Source,
			"link":   article.Link,
		},
	})

	weight := float64(article.Analysis.RelevanceScore) / 100.0
	if weight <= 0 {
		weight = 0.1
	}

	link := func(id string, entityType EntityType, name, relType string) error {
		g.AddEntity(&Entity{ID: id, Type: entityType, Name: name})
		return g.AddRelation(paperID, id, relType, weight)
	}

	if known(article.Analysis.Platform) {
		id := "platform:" + Slug(article.Analysis.Platform)
		if err := link(id, EntityPlatform, article.Analysis.Platform, RelationRelatesTo); err != nil {
			return err
		}
	}

	if known(article.Analysis.ModelType) {
		id := "model_type:" + Slug(article.Analysis.ModelType)
		if err := link(id, EntityModelType, article.Analysis.ModelType, RelationRelatesTo); err != nil {
			return err
		}
	}

	if known(article.Analysis.QuantizationMethod) {
		id := "technique:" + Slug(article.Analysis.QuantizationMethod)
		if err := link(id, EntityTechnique, article.Analysis.QuantizationMethod, RelationUses); err != nil {
			return err
		}
	}

	if known(article.Analysis.KeyOptimization) {
		id := "optimization:" + Slug(article.Analysis.KeyOptimization)
		if err := link(id, EntityOptimization, article.Analysis.KeyOptimization, RelationUses); err != nil {
			return err
		}
	}

	if known(article.Source) {
		id := "company:" + Slug(article.Source)
		if err := link(id, EntityCompany, article.Source, RelationRelatesTo); err != nil {
			return err
		}
	}

	return nil
}

// RelatedArticles walks outward from a paper entity and collects the
// article IDs of papers sharing concepts with it, nearest first.
func (g *Graph) RelatedArticles(articleID int64, depth int) []int64 {
	center := fmt.Sprintf("paper:%d", articleID)
	ids := g.Subgraph(center, depth)

	var related []int64
	for _, id := range ids {
		e := g.Entity(id)
		if e == nil || e.Type != EntityPaper || e.ArticleID == articleID || e.ArticleID == 0 {
			continue
		}
		related = append(related, e.ArticleID)
	}
	return related
}

// known reports whether an analysis field carries a usable value.
func known(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, "unknown") && !strings.EqualFold(s, "none") && !strings.EqualFold(s, "n/a")
}

// Slug normalizes a concept name into a stable entity ID fragment.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && sb.Len() > 0 {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
