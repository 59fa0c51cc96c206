package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

func seedArticle(id int64, title string, embedding []float64) *storage.Article {
	return &storage.Article{
		ID:        id,
		Title:     title,
		Summary:   "summary of " + title,
		Link:      "https://example.com/" + title,
		Source:    "arxiv",
		Published: time.Now().AddDate(0, 0, -int(id)),
		Embedding: embedding,
		Analysis: storage.Analysis{
			RelevanceScore: 50 + int(id),
			Platform:       "snapdragon",
			ReviewStatus:   storage.ReviewAutoApproved,
		},
	}
}

func TestInsertGetDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	a := seedArticle(1, "int4-quantization", []float64{1, 0, 0})
	require.NoError(t, store.Insert(ctx, a))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "int4-quantization", got.Title)
	assert.Equal(t, 1, got.SeenCount)
	assert.False(t, got.CreatedAt.IsZero())

	// Mutating the returned copy must not affect the stored article.
	got.Title = "changed"
	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "int4-quantization", again.Title)

	require.NoError(t, store.Delete(ctx, 1))
	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, 1), storage.ErrNotFound)
}

func TestGetByLinkMissingReturnsNil(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, seedArticle(1, "kv-cache", []float64{1, 0, 0})))

	got, err := store.GetByLink(ctx, "https://example.com/kv-cache")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	missing, err := store.GetByLink(ctx, "https://example.com/nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchRanksAndFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, seedArticle(1, "close-match", []float64{1, 0, 0})))
	require.NoError(t, store.Insert(ctx, seedArticle(2, "far-match", []float64{0, 1, 0})))

	other := seedArticle(3, "other-platform", []float64{1, 0.1, 0})
	other.Analysis.Platform = "apple_silicon"
	require.NoError(t, store.Insert(ctx, other))

	results, err := store.Search(ctx, []float64{1, 0, 0}, &storage.SearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	filtered, err := store.Search(ctx, []float64{1, 0, 0}, &storage.SearchOptions{
		Limit:    10,
		Platform: "snapdragon",
		MinScore: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(1), filtered[0].ID)
}

func TestUpdateReplacesMutableFields(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, seedArticle(1, "sparsity", []float64{1, 0, 0})))
	require.NoError(t, store.MarkSeen(ctx, 1, time.Now()))

	changed := seedArticle(1, "structured-sparsity", []float64{0, 1, 0})
	changed.Analysis.ReviewStatus = storage.ReviewApproved

	updated, err := store.Update(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "structured-sparsity", updated.Title)
	assert.Equal(t, storage.ReviewApproved, updated.Analysis.ReviewStatus)
	assert.Equal(t, 2, updated.SeenCount, "seen count survives updates")

	_, err = store.Update(ctx, seedArticle(99, "missing", []float64{1, 0, 0}))
	assert.Error(t, err)
}

func TestUpdateAnalysisAndMarkSeen(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, seedArticle(1, "pruning", []float64{1, 0, 0})))

	updated, err := store.UpdateAnalysis(ctx, 1, &storage.Analysis{
		RelevanceScore: 92,
		ReviewStatus:   storage.ReviewNeeded,
	})
	require.NoError(t, err)
	assert.Equal(t, 92, updated.Analysis.RelevanceScore)

	require.NoError(t, store.MarkSeen(ctx, 1, time.Now()))
	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SeenCount)

	_, err = store.UpdateAnalysis(ctx, 99, &storage.Analysis{})
	assert.Error(t, err)
	assert.Error(t, store.MarkSeen(ctx, 99, time.Now()))
}

func TestGetAllOrderingAndPaging(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Insert(ctx, seedArticle(i, "doc", []float64{1, 0, 0})))
	}

	// Newest first: lower IDs were seeded with more recent dates.
	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(5), all[4].ID)

	page, err := store.GetAll(ctx, &storage.GetAllOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].ID)

	past, err := store.GetAll(ctx, &storage.GetAllOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)

	relevant, err := store.GetAll(ctx, &storage.GetAllOptions{MinRelevance: 54})
	require.NoError(t, err)
	require.Len(t, relevant, 2)
}

func TestCountAndDeleteAll(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, seedArticle(1, "a", []float64{1, 0, 0})))
	require.NoError(t, store.Insert(ctx, seedArticle(2, "b", []float64{0, 1, 0})))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.DeleteAll(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
