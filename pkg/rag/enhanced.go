package rag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/intelligence"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rank"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/search"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const (
	// expandedQueryCount is how many query variants enhanced retrieval
	// searches, counting the original.
	expandedQueryCount = 3

	// relatedLimit bounds graph-supplied secondary context.
	relatedLimit = 3
)

// RetrieveEnhanced runs the full pipeline: the query is expanded into
// variants, each variant is searched concurrently, the result lists are
// merged with reciprocal rank fusion, the fused set is re-ranked on
// combined signals, and the knowledge graph contributes related articles
// as secondary context.
//
// Without a configured query expander only the original query runs, which
// still exercises fusion and signal re-ranking.
func (o *Orchestrator) RetrieveEnhanced(ctx context.Context, query string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	queries := []string{query}
	if o.expander != nil {
		queries = o.expander.Expand(ctx, query, expandedQueryCount)
	}

	// Each goroutine writes only its own slot.
	lists := make([][]*storage.Article, len(queries))

	eg, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		eg.Go(func() error {
			articles, err := o.engine.Search(gctx, q, &search.Options{
				TopK:    topK * 2,
				Mode:    opts.Mode,
				Filters: opts.Filters,
			})
			if err != nil {
				return fmt.Errorf("search %q: %w", q, err)
			}
			lists[i] = articles
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("enhanced retrieve: %w", err)
	}

	fused := rank.FuseRRF(lists, topK*2)
	articles := o.reranker.Rerank(fused, topK)
	related := o.enhanceFromGraph(ctx, articles, relatedLimit)

	o.logger.Debugf("enhanced retrieve %q: %d variants, %d fused, %d final, %d related",
		query, len(queries), len(fused), len(articles), len(related))

	result := &Result{
		Query:           query,
		ExpandedQueries: queries,
		Articles:        articles,
		Related:         related,
		Concepts:        o.conceptsFromGraph(articles),
	}
	if len(articles) > 0 {
		result.Trend = intelligence.AnalyzeTrend(articles)
	}
	return result, nil
}
