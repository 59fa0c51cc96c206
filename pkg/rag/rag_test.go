package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder/hash"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/graph"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/index"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/intelligence"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/search"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/memory"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ ...llm.GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) GenerateWithMessages(_ context.Context, _ []llm.Message, _ ...llm.GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Close() error { return nil }

func setup(t *testing.T, opts ...OrchestratorOption) (*Orchestrator, *memory.Store, *index.BM25, *graph.Graph) {
	t.Helper()

	store := memory.NewStore()
	keyword := index.NewBM25()
	kg := graph.New()
	engine := search.NewEngine(store, keyword, hash.New(64))
	o := NewOrchestrator(engine, store, kg, opts...)
	return o, store, keyword, kg
}

func seed(t *testing.T, store *memory.Store, keyword *index.BM25, kg *graph.Graph, id int64, title, technique string) {
	t.Helper()

	embedding, err := hash.New(64).Embed(context.Background(), title)
	require.NoError(t, err)

	article := &storage.Article{
		ID:        id,
		Title:     title,
		Summary:   "summary of " + title,
		Link:      fmt.Sprintf("https://example.com/%d", id),
		Source:    "arxiv",
		Published: time.Now().AddDate(0, 0, -int(id)),
		Embedding: embedding,
		Analysis: storage.Analysis{
			RelevanceScore:     80,
			Platform:           "Snapdragon",
			ModelType:          "LLM",
			QuantizationMethod: technique,
			MemoryInsight:      "insight for " + title,
		},
	}
	require.NoError(t, store.Insert(context.Background(), article))
	keyword.Add(id, title)
	require.NoError(t, kg.AddArticle(article))
}

func TestRetrieve(t *testing.T) {
	o, store, keyword, kg := setup(t)
	ctx := context.Background()

	seed(t, store, keyword, kg, 1, "INT4 quantization on mobile NPUs", "INT4")
	seed(t, store, keyword, kg, 2, "kv cache compression", "KV cache")
	seed(t, store, keyword, kg, 3, "speculative decoding", "")

	result, err := o.Retrieve(ctx, "INT4 quantization on mobile NPUs", &Options{TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, result.Articles)
	assert.Equal(t, int64(1), result.Articles[0].ID)
	assert.LessOrEqual(t, len(result.Articles), 2)
	assert.Nil(t, result.ExpandedQueries)
}

func TestRetrieveEnhancedWithExpansion(t *testing.T) {
	expander := NewQueryExpander(&fakeLLM{
		response: `{"queries": ["low-bit weight compression", "mobile LLM memory reduction"]}`,
	}, nil)
	o, store, keyword, kg := setup(t, WithQueryExpander(expander))
	ctx := context.Background()

	seed(t, store, keyword, kg, 1, "INT4 quantization on mobile NPUs", "INT4")
	seed(t, store, keyword, kg, 2, "low-bit weight compression survey", "GPTQ")

	result, err := o.RetrieveEnhanced(ctx, "INT4 quantization", &Options{TopK: 3})
	require.NoError(t, err)

	assert.Len(t, result.ExpandedQueries, 3)
	assert.Equal(t, "INT4 quantization", result.ExpandedQueries[0])
	assert.NotEmpty(t, result.Articles)
}

func TestRetrieveEnhancedGraphRelated(t *testing.T) {
	o, store, keyword, kg := setup(t)
	ctx := context.Background()

	// Articles 1 and 2 share a technique in the graph but have unrelated
	// text, so 2 only surfaces through graph enhancement.
	seed(t, store, keyword, kg, 1, "INT4 quantization on mobile NPUs", "INT4")
	seed(t, store, keyword, kg, 2, "completely unrelated wording here", "INT4")

	result, err := o.RetrieveEnhanced(ctx, "INT4 quantization on mobile NPUs", &Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, int64(1), result.Articles[0].ID)

	require.NotEmpty(t, result.Related)
	assert.Equal(t, int64(2), result.Related[0].ID)
}

func TestRetrieveEnhancedCollectsConceptsAndTrend(t *testing.T) {
	o, store, keyword, kg := setup(t)
	ctx := context.Background()

	seed(t, store, keyword, kg, 1, "INT4 quantization on mobile NPUs", "INT4")

	result, err := o.RetrieveEnhanced(ctx, "INT4 quantization on mobile NPUs", &Options{TopK: 2})
	require.NoError(t, err)
	require.NotEmpty(t, result.Articles)

	require.NotNil(t, result.Concepts)
	assert.Contains(t, result.Concepts.Techniques, "INT4")
	assert.Contains(t, result.Concepts.Platforms, "Snapdragon")

	require.NotNil(t, result.Trend)
	assert.NotEmpty(t, result.Trend.Observations)
}

func TestQueryExpanderDegradesOnError(t *testing.T) {
	e := NewQueryExpander(&fakeLLM{err: fmt.Errorf("provider down")}, nil)
	queries := e.Expand(context.Background(), "original", 3)
	assert.Equal(t, []string{"original"}, queries)
}

func TestQueryExpanderSkipsDuplicates(t *testing.T) {
	e := NewQueryExpander(&fakeLLM{
		response: `{"queries": ["Original", "fresh variant", ""]}`,
	}, nil)
	queries := e.Expand(context.Background(), "original", 3)
	assert.Equal(t, []string{"original", "fresh variant"}, queries)
}

func TestBuildContext(t *testing.T) {
	result := &Result{
		Query: "q",
		Articles: []*storage.Article{
			{
				Title:     "INT4 on Snapdragon",
				Source:    "arxiv",
				Summary:   "short summary",
				Published: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Analysis: storage.Analysis{
					RelevanceScore: 88,
					MemoryInsight:  "halves weight footprint",
				},
			},
		},
		Related: []*storage.Article{
			{Title: "GPTQ revisited", Source: "blog"},
		},
	}

	out := BuildContext(result, 0)
	assert.Contains(t, out, "[1] INT4 on Snapdragon")
	assert.Contains(t, out, "Relevance: 88/100")
	assert.Contains(t, out, "halves weight footprint")
	assert.Contains(t, out, "GPTQ revisited")

	assert.Empty(t, BuildContext(nil, 0))
	assert.Empty(t, BuildContext(&Result{}, 0))
}

func TestBuildContextRendersConceptsAndTrend(t *testing.T) {
	result := &Result{
		Query: "q",
		Articles: []*storage.Article{
			{Title: "INT4 on Snapdragon", Source: "arxiv"},
		},
		Concepts: &RelatedConcepts{
			Techniques: []string{"INT4", "AWQ"},
			Platforms:  []string{"Snapdragon"},
			Companies:  []string{"Qualcomm AI Research"},
		},
		Trend: &intelligence.ReasoningChain{
			Patterns:       []string{"Dominant approach: AWQ (3 papers)"},
			Contradictions: []string{"Technique AWQ shows varying DRAM impact across papers"},
			Conclusions:    []string{"Research trend: Dominant approach: AWQ (3 papers)"},
		},
	}

	out := BuildContext(result, 0)
	assert.Contains(t, out, "Related techniques in the knowledge graph:")
	assert.Contains(t, out, "Techniques: INT4, AWQ")
	assert.Contains(t, out, "Companies: Qualcomm AI Research")
	assert.Contains(t, out, "Observed patterns:")
	assert.Contains(t, out, "Contradictions to investigate:")
	assert.Contains(t, out, "Current research direction:")

	// A tight budget drops the trailing sections whole.
	tight := BuildContext(result, 120)
	assert.NotContains(t, tight, "Observed patterns:")
}

func TestBuildContextRespectsBudget(t *testing.T) {
	articles := make([]*storage.Article, 10)
	for i := range articles {
		articles[i] = &storage.Article{
			Title:   fmt.Sprintf("article number %d with a reasonably long title", i),
			Source:  "arxiv",
			Summary: "a summary that takes up some space in the context window",
		}
	}

	out := BuildContext(&Result{Articles: articles}, 400)
	assert.LessOrEqual(t, len(out), 401)
	assert.Contains(t, out, "[1]")
}
