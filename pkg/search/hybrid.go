// Package search implements hybrid retrieval over the article store,
// combining semantic vector similarity with BM25 keyword ranking.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/index"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Mode selects which retrieval branches participate in a search.
type Mode int

const (
	// ModeHybrid blends semantic and keyword scores.
	ModeHybrid Mode = iota

	// ModeSemanticOnly uses vector similarity alone.
	ModeSemanticOnly

	// ModeKeywordOnly uses BM25 alone.
	ModeKeywordOnly
)

// defaultAlpha is the semantic branch weight in hybrid scoring.
const defaultAlpha = 0.6

// Options configures a single search call.
type Options struct {
	// TopK is the number of results to return. Defaults to 10.
	TopK int

	// Mode selects the retrieval branches. Defaults to ModeHybrid.
	Mode Mode

	// Filters are pushed down to the semantic branch of the store.
	Filters *storage.SearchOptions
}

// Engine runs hybrid searches against an article store and a BM25 index.
//
// Both branches overfetch twice the requested topK so that documents
// strong in only one branch still survive the blend.
type Engine struct {
	store    storage.ArticleStore
	keyword  *index.BM25
	provider embedder.Provider
	alpha    float64
	logger   log.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithAlpha sets the semantic weight for hybrid scoring. 1.0 ignores the
// keyword branch, 0.0 ignores the semantic branch. Values outside [0, 1]
// are ignored and the default kept.
func WithAlpha(alpha float64) EngineOption {
	return func(e *Engine) {
		if alpha >= 0 && alpha <= 1 {
			e.alpha = alpha
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a hybrid search engine.
func NewEngine(store storage.ArticleStore, keyword *index.BM25, provider embedder.Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		keyword:  keyword,
		provider: provider,
		alpha:    defaultAlpha,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search retrieves the topK articles most relevant to the query.
//
// In hybrid mode each branch's scores are normalized by the branch maximum
// and blended as alpha*semantic + (1-alpha)*keyword. Articles found by only
// one branch score zero on the other.
func (e *Engine) Search(ctx context.Context, query string, opts *Options) ([]*storage.Article, error) {
	if opts == nil {
		opts = &Options{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	switch opts.Mode {
	case ModeSemanticOnly:
		return e.semanticSearch(ctx, query, topK, opts.Filters)
	case ModeKeywordOnly:
		return e.keywordSearch(ctx, query, topK, opts.Filters)
	}

	overfetch := topK * 2

	semantic, err := e.semanticSearch(ctx, query, overfetch, opts.Filters)
	if err != nil {
		return nil, err
	}
	keyword, err := e.keywordSearch(ctx, query, overfetch, opts.Filters)
	if err != nil {
		return nil, err
	}

	e.logger.Debugf("hybrid search %q: %d semantic, %d keyword candidates",
		query, len(semantic), len(keyword))

	return blend(semantic, keyword, e.alpha, topK), nil
}

func (e *Engine) semanticSearch(ctx context.Context, query string, topK int, filters *storage.SearchOptions) ([]*storage.Article, error) {
	embedding, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	searchOpts := storage.SearchOptions{Limit: topK}
	if filters != nil {
		searchOpts = *filters
		searchOpts.Limit = topK
	}

	articles, err := e.store.Search(ctx, embedding, &searchOpts)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return articles, nil
}

func (e *Engine) keywordSearch(ctx context.Context, query string, topK int, filters *storage.SearchOptions) ([]*storage.Article, error) {
	results := e.keyword.Rank(query, topK)

	articles := make([]*storage.Article, 0, len(results))
	for _, res := range results {
		article, err := e.store.Get(ctx, res.ID)
		if err != nil {
			// The index can briefly lead the store during deletes.
			e.logger.Warnf("keyword hit %d missing from store: %v", res.ID, err)
			continue
		}
		if !matchesFilters(article, filters) {
			continue
		}
		article.Score = res.Score
		articles = append(articles, article)
	}
	return articles, nil
}

// matchesFilters applies store-level filters to keyword hits, which bypass
// the store's own WHERE clause.
func matchesFilters(a *storage.Article, filters *storage.SearchOptions) bool {
	if filters == nil {
		return true
	}
	if filters.Source != "" && a.Source != filters.Source {
		return false
	}
	if filters.Platform != "" && a.Analysis.Platform != filters.Platform {
		return false
	}
	if filters.MinRelevance > 0 && a.Analysis.RelevanceScore < filters.MinRelevance {
		return false
	}
	if !filters.Since.IsZero() && a.Published.Before(filters.Since) {
		return false
	}
	return true
}

// blend normalizes each branch by its max score and combines them.
func blend(semantic, keyword []*storage.Article, alpha float64, topK int) []*storage.Article {
	semScores := normalize(semantic)
	keyScores := normalize(keyword)

	byID := make(map[int64]*storage.Article)
	combined := make(map[int64]float64)

	for _, a := range semantic {
		byID[a.ID] = a
		combined[a.ID] += alpha * semScores[a.ID]
	}
	for _, a := range keyword {
		if _, ok := byID[a.ID]; !ok {
			byID[a.ID] = a
		}
		combined[a.ID] += (1 - alpha) * keyScores[a.ID]
	}

	results := make([]*storage.Article, 0, len(byID))
	for id, article := range byID {
		article.Score = combined[id]
		results = append(results, article)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// normalize maps article IDs to scores scaled by the branch maximum.
func normalize(articles []*storage.Article) map[int64]float64 {
	scores := make(map[int64]float64, len(articles))
	var max float64
	for _, a := range articles {
		if a.Score > max {
			max = a.Score
		}
	}
	if max == 0 {
		return scores
	}
	for _, a := range articles {
		scores[a.ID] = a.Score / max
	}
	return scores
}
