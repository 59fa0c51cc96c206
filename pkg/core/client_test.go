package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder/hash"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rag"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/memory"
)

// routingLLM answers by prompt shape, so component call order does not
// matter.
type routingLLM struct {
	score string
}

func (f *routingLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return f.route(prompt)
}

func (f *routingLLM) GenerateWithMessages(_ context.Context, messages []llm.Message, _ ...llm.GenerateOption) (string, error) {
	return f.route(messages[len(messages)-1].Content)
}

func (f *routingLLM) route(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Rate this article"):
		if f.score != "" {
			return f.score, nil
		}
		return `{
			"relevance_score": 85,
			"platform": "Snapdragon",
			"model_type": "LLM",
			"memory_insight": "cuts DRAM traffic by 1.5 GB",
			"dram_impact": "High",
			"engineering_takeaway": "try it",
			"quantization_method": "INT4",
			"key_optimization": "weight-only quantization"
		}`, nil
	case strings.Contains(prompt, "Extract the named concepts"):
		return `{"concepts": [{"name": "GPTQ", "type": "technique"}]}`, nil
	case strings.Contains(prompt, "Rewrite this search query"):
		return `{"queries": ["alternative phrasing"]}`, nil
	case strings.Contains(prompt, "identify the dominant trends"):
		return "Trend report.", nil
	case strings.Contains(prompt, "identify the gaps"):
		return "Gap report.", nil
	}
	return "", fmt.Errorf("unexpected prompt")
}

func (f *routingLLM) Close() error { return nil }

func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Storage.Provider = "memory"
	cfg.Embedder.Provider = "hash"
	cfg.Embedder.Dimensions = 64
	cfg.GraphPath = filepath.Join(t.TempDir(), "graph.json")
	cfg.LogLevel = "error"
	return cfg
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(testConfig(t),
		WithStore(memory.NewStore()),
		WithLLMProvider(&routingLLM{}),
		WithEmbedderProvider(hash.New(64)))
	require.NoError(t, err)
	return client
}

func input(title, link string) *IngestInput {
	return &IngestInput{
		Title:     title,
		Summary:   "summary of " + title,
		Link:      link,
		Source:    "arxiv",
		Published: time.Now(),
	}
}

func TestIngestStoresAndIndexes(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)

	article := result.Article
	assert.NotZero(t, article.ID)
	assert.Equal(t, 85, article.Analysis.RelevanceScore)
	assert.Equal(t, "Snapdragon", article.Analysis.Platform)
	assert.NotEmpty(t, article.Embedding)
	// Score 85 with full fields and high confidence auto-approves.
	assert.Equal(t, "auto_approved", article.Analysis.ReviewStatus)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Articles)
	assert.Equal(t, 1, stats.IndexedDocs)

	// Graph has the paper plus platform, model type, techniques, and
	// the extracted GPTQ concept.
	assert.GreaterOrEqual(t, stats.Graph.Entities, 5)
}

func TestIngestRejectsIncompleteInput(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Ingest(context.Background(), &IngestInput{Title: "no link"})
	require.Error(t, err)

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ingest", perr.Op)
}

func TestIngestDuplicateLink(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first, err := client.Ingest(ctx, input("some article", "https://a.com/1"))
	require.NoError(t, err)

	second, err := client.Ingest(ctx, input("retitled repost", "https://a.com/1"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "link", second.DuplicateReason)
	assert.Equal(t, first.Article.ID, second.Article.ID)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Articles)

	// The duplicate bumped the seen counter.
	stored, err := client.store.Get(ctx, first.Article.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.SeenCount)
}

func TestIngestNearDuplicateTitle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, input("KV cache paging for mobile", "https://a.com/1"))
	require.NoError(t, err)

	// Same normalized title from a different URL. The hash embedder
	// gives identical text similarity 1.0, above the dedup threshold.
	result, err := client.Ingest(ctx, input("KV cache paging for mobile", "https://b.com/2"))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestRetrieveAndBuildContext(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)
	_, err = client.Ingest(ctx, input("speculative decoding study", "https://a.com/2"))
	require.NoError(t, err)

	result, err := client.Retrieve(ctx, "INT4 quantization on NPUs", &rag.Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "INT4 quantization on NPUs", result.Articles[0].Title)

	contextBlock := client.BuildContext(result)
	assert.Contains(t, contextBlock, "INT4 quantization on NPUs")
	assert.Contains(t, contextBlock, "cuts DRAM traffic")
}

func TestRetrieveEnhanced(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)

	result, err := client.RetrieveEnhanced(ctx, "INT4 quantization", &rag.Options{TopK: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Articles)
	assert.Equal(t, []string{"INT4 quantization", "alternative phrasing"}, result.ExpandedQueries)
}

func TestRecentContextGroupsByPlatform(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)

	digest, err := client.RecentContext(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, digest, "Snapdragon:")
	assert.Contains(t, digest, "INT4 quantization on NPUs")
}

func TestTrendsAndGaps(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)

	trends, err := client.Trends(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, "Trend report.", trends)

	gaps, err := client.Gaps(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, "Gap report.", gaps)
}

func TestCloseSavesGraphAndRestoreReloads(t *testing.T) {
	cfg := testConfig(t)
	store := memory.NewStore()

	client, err := NewClient(cfg,
		WithStore(store),
		WithLLMProvider(&routingLLM{}),
		WithEmbedderProvider(hash.New(64)))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	// A new client over the same store and graph path resumes with the
	// index and graph populated.
	reopened, err := NewClient(cfg,
		WithStore(store),
		WithLLMProvider(&routingLLM{}),
		WithEmbedderProvider(hash.New(64)))
	require.NoError(t, err)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.IndexedDocs)
	assert.GreaterOrEqual(t, stats.Graph.Entities, 5)
}

func TestCRUDPassthrough(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.Ingest(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, err)
	id := result.Article.ID

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "INT4 quantization on NPUs", got.Title)

	// A reviewer approves the analysis.
	got.Analysis.ReviewStatus = "approved"
	updated, err := client.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Analysis.ReviewStatus)

	all, err := client.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// MinScore below zero keeps hits whose hash-embedding similarity
	// lands negative for non-identical text.
	hits, err := client.Search(ctx, "INT4 quantization on NPUs", &storage.SearchOptions{MinScore: -1})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, id, hits[0].ID)

	require.NoError(t, client.Delete(ctx, id))
	_, err = client.Get(ctx, id)
	// The sentinel survives the pipeline wrapper.
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.IndexedDocs)
}

func TestAsyncSingleOperations(t *testing.T) {
	client := newTestClient(t)
	async := NewAsyncClient(client)
	ctx := context.Background()

	ingested := <-async.IngestAsync(ctx, input("INT4 quantization on NPUs", "https://a.com/1"))
	require.NoError(t, ingested.Error)
	require.NotNil(t, ingested.Result)

	retrieved := <-async.RetrieveAsync(ctx, "INT4 quantization", &rag.Options{TopK: 1})
	require.NoError(t, retrieved.Error)
	require.Len(t, retrieved.Result.Articles, 1)

	async.Wait()
}

func TestAsyncIngestBatch(t *testing.T) {
	client := newTestClient(t)
	// Concurrency 1 keeps the duplicate detection deterministic: the
	// repeated link is only a duplicate once its first copy is stored.
	async := NewAsyncClient(client, WithBatchConcurrency(1))
	ctx := context.Background()

	inputs := []*IngestInput{
		input("article one about quantization", "https://a.com/1"),
		input("article two about kv caches", "https://a.com/2"),
		input("article one about quantization", "https://a.com/1"),
		{Title: "missing link"},
	}

	result, err := async.IngestBatch(ctx, inputs)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Ingested)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Failed)
	assert.Error(t, result.Errors[3])
	assert.Nil(t, result.Results[3])
}
