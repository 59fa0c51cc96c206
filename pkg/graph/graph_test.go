package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

func testArticle(id int64, platform, technique string) *storage.Article {
	return &storage.Article{
		ID:    id,
		Title: "test article",
		Link:  "https://example.com/a",
		Analysis: storage.Analysis{
			RelevanceScore:     80,
			Platform:           platform,
			ModelType:          "LLM",
			QuantizationMethod: technique,
		},
	}
}

func TestAddEntityMerges(t *testing.T) {
	g := New()

	g.AddEntity(&Entity{ID: "technique:int4", Type: EntityTechnique, Name: "INT4"})
	g.AddEntity(&Entity{
		ID:         "technique:int4",
		Type:       EntityTechnique,
		Name:       "INT4 quantization",
		Properties: map[string]interface{}{"bits": 4},
	})

	e := g.Entity("technique:int4")
	require.NotNil(t, e)
	assert.Equal(t, "INT4 quantization", e.Name)
	assert.Equal(t, 4, e.Properties["bits"])
	assert.Equal(t, 1, g.Stats().Entities)
}

func TestAddRelationUnknownEntity(t *testing.T) {
	g := New()
	g.AddEntity(&Entity{ID: "a", Type: EntityTechnique, Name: "a"})

	err := g.AddRelation("a", "missing", RelationRelatesTo, 0.5)
	assert.Error(t, err)
}

func TestAddRelationKeepsMaxWeight(t *testing.T) {
	g := New()
	g.AddEntity(&Entity{ID: "a", Type: EntityTechnique, Name: "a"})
	g.AddEntity(&Entity{ID: "b", Type: EntityPlatform, Name: "b"})

	require.NoError(t, g.AddRelation("a", "b", RelationRelatesTo, 0.3))
	require.NoError(t, g.AddRelation("b", "a", RelationRelatesTo, 0.7))

	assert.Equal(t, 1, g.Stats().Relations)
	neighbors := g.Neighbors("a")
	require.Len(t, neighbors, 1)
	assert.InDelta(t, 0.7, neighbors[0].Relation.Weight, 1e-9)
}

func TestAddArticleBuildsEntities(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4 AWQ")))

	paper := g.Entity("paper:1")
	require.NotNil(t, paper)
	assert.Equal(t, int64(1), paper.ArticleID)

	assert.NotNil(t, g.Entity("platform:snapdragon"))
	assert.NotNil(t, g.Entity("model_type:llm"))
	assert.NotNil(t, g.Entity("technique:int4-awq"))

	neighbors := g.Neighbors("paper:1")
	assert.Len(t, neighbors, 3)
	for _, n := range neighbors {
		assert.InDelta(t, 0.8, n.Relation.Weight, 1e-9)
	}
}

func TestAddArticleSkipsUnknownFields(t *testing.T) {
	g := New()
	a := testArticle(1, "Unknown", "")
	require.NoError(t, g.AddArticle(a))

	assert.Nil(t, g.Entity("platform:unknown"))
	// Only the model type edge remains.
	assert.Len(t, g.Neighbors("paper:1"), 1)
}

func TestFindPaths(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4")))
	require.NoError(t, g.AddArticle(testArticle(2, "Snapdragon", "GPTQ")))

	// Papers 1 and 2 connect through the shared platform (and the
	// shared model type).
	paths := g.FindPaths("paper:1", "paper:2", 2)
	require.NotEmpty(t, paths)
	assert.Equal(t, []string{"paper:1", "platform:snapdragon", "paper:2"}, paths[0])

	assert.Empty(t, g.FindPaths("paper:1", "paper:2", 1))
	assert.Empty(t, g.FindPaths("paper:1", "nope", 3))
}

func TestSubgraphAndRelatedArticles(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4")))
	require.NoError(t, g.AddArticle(testArticle(2, "Snapdragon", "GPTQ")))
	require.NoError(t, g.AddArticle(testArticle(3, "Exynos", "SmoothQuant")))

	sub := g.Subgraph("paper:1", 1)
	assert.Contains(t, sub, "paper:1")
	assert.Contains(t, sub, "platform:snapdragon")
	assert.NotContains(t, sub, "paper:2")

	related := g.RelatedArticles(1, 2)
	// Paper 3 shares the model type, paper 2 shares platform and model.
	assert.ElementsMatch(t, []int64{2, 3}, related)
}

func TestAddArticleProjectsCompany(t *testing.T) {
	g := New()
	a := testArticle(1, "Snapdragon", "INT4")
	a.Source = "Qualcomm AI Research"
	require.NoError(t, g.AddArticle(a))

	company := g.Entity("company:qualcomm-ai-research")
	require.NotNil(t, company)
	assert.Equal(t, EntityCompany, company.Type)

	neighbors := g.Neighbors("company:qualcomm-ai-research")
	require.Len(t, neighbors, 1)
	assert.Equal(t, "paper:1", neighbors[0].Entity.ID)
	assert.Equal(t, RelationRelatesTo, neighbors[0].Relation.Type)
}

func TestNeighborsRelationshipFilter(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4")))

	uses := g.Neighbors("paper:1", RelationUses)
	require.Len(t, uses, 1)
	assert.Equal(t, "technique:int4", uses[0].Entity.ID)

	related := g.Neighbors("paper:1", RelationRelatesTo)
	assert.Len(t, related, 2)

	assert.Empty(t, g.Neighbors("paper:1", "cites"))
}

func TestRelatedArticlesNearestFirst(t *testing.T) {
	g := New()

	// Paper 9 shares a technique with paper 2; paper 2 shares an
	// optimization with paper 10. From paper 9, paper 2 sits two hops
	// away and paper 10 four hops away.
	nine := &storage.Article{
		ID: 9, Title: "nine", Link: "https://e.com/9",
		Analysis: storage.Analysis{RelevanceScore: 80, QuantizationMethod: "AWQ"},
	}
	two := &storage.Article{
		ID: 2, Title: "two", Link: "https://e.com/2",
		Analysis: storage.Analysis{RelevanceScore: 80, QuantizationMethod: "AWQ", KeyOptimization: "KV paging"},
	}
	ten := &storage.Article{
		ID: 10, Title: "ten", Link: "https://e.com/10",
		Analysis: storage.Analysis{RelevanceScore: 80, KeyOptimization: "KV paging"},
	}
	require.NoError(t, g.AddArticle(nine))
	require.NoError(t, g.AddArticle(two))
	require.NoError(t, g.AddArticle(ten))

	// The nearer paper must come first even though "paper:10" sorts
	// before "paper:2" lexicographically.
	assert.Equal(t, []int64{2, 10}, g.RelatedArticles(9, 4))
	assert.Equal(t, []int64{2}, g.RelatedArticles(9, 2))
}

func TestSubgraphDiscoveryOrder(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4")))
	require.NoError(t, g.AddArticle(testArticle(2, "Snapdragon", "GPTQ")))

	sub := g.Subgraph("paper:1", 2)
	require.NotEmpty(t, sub)
	assert.Equal(t, "paper:1", sub[0])

	// Depth-1 entities precede depth-2 ones.
	depth1 := map[string]bool{"platform:snapdragon": true, "model_type:llm": true, "technique:int4": true}
	sawDeeper := false
	for _, id := range sub[1:] {
		if !depth1[id] {
			sawDeeper = true
		} else {
			assert.False(t, sawDeeper, "depth-1 entity %s appeared after a depth-2 entity", id)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	g := New()
	require.NoError(t, g.AddArticle(testArticle(1, "Snapdragon", "INT4")))
	require.NoError(t, g.AddArticle(testArticle(2, "Snapdragon", "GPTQ")))

	path := filepath.Join(t.TempDir(), "nested", "graph.json")
	require.NoError(t, g.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, g.Stats(), loaded.Stats())
	paths := loaded.FindPaths("paper:1", "paper:2", 2)
	assert.NotEmpty(t, paths)
}

func TestLoadMissingFile(t *testing.T) {
	g := New()
	require.NoError(t, g.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.Zero(t, g.Stats().Entities)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "int4-awq", Slug("INT4 AWQ"))
	assert.Equal(t, "kv-cache-paging", Slug("  KV-Cache Paging! "))
	assert.Equal(t, "", Slug("  "))
}
