// Package rag assembles retrieval-augmented context for generation: it
// orchestrates hybrid search, diversity re-ranking, multi-query fusion,
// and knowledge-graph enhancement into a single retrieval surface.
package rag

import (
	"context"
	"fmt"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/graph"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/intelligence"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rank"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/search"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Options configures a retrieval call.
type Options struct {
	// TopK is the number of articles to return. Defaults to 5.
	TopK int

	// Mode selects the search branches. Defaults to hybrid.
	Mode search.Mode

	// Filters are applied during candidate retrieval.
	Filters *storage.SearchOptions
}

// Result is the output of a retrieval call.
type Result struct {
	// Query is the original query.
	Query string

	// ExpandedQueries lists every query variant that was searched,
	// starting with the original. Plain retrieval leaves it nil.
	ExpandedQueries []string

	// Articles are the final ranked results.
	Articles []*storage.Article

	// Related are graph-connected articles not already in Articles,
	// supplied as secondary context. Nil unless graph enhancement ran.
	Related []*storage.Article

	// Concepts are graph entities adjacent to the result articles,
	// grouped by kind. Nil unless graph enhancement ran.
	Concepts *RelatedConcepts

	// Trend is the reasoning chain computed over the result articles.
	// Nil unless graph enhancement ran.
	Trend *intelligence.ReasoningChain
}

// RelatedConcepts groups the graph entities connected to a result set.
type RelatedConcepts struct {
	Techniques []string
	Platforms  []string
	Companies  []string
}

// Empty reports whether no concepts were collected.
func (rc *RelatedConcepts) Empty() bool {
	return rc == nil ||
		len(rc.Techniques) == 0 && len(rc.Platforms) == 0 && len(rc.Companies) == 0
}

// Orchestrator coordinates the retrieval pipeline.
type Orchestrator struct {
	engine   *search.Engine
	store    storage.ArticleStore
	kg       *graph.Graph
	mmr      *rank.MMRRanker
	reranker *rank.SignalReranker
	expander *QueryExpander
	logger   log.Logger
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMMRRanker overrides the diversity ranker.
func WithMMRRanker(r *rank.MMRRanker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.mmr = r
	}
}

// WithSignalReranker overrides the multi-signal reranker used by
// enhanced retrieval.
func WithSignalReranker(r *rank.SignalReranker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.reranker = r
	}
}

// WithQueryExpander enables multi-query expansion in enhanced retrieval.
func WithQueryExpander(e *QueryExpander) OrchestratorOption {
	return func(o *Orchestrator) {
		o.expander = e
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger log.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates a retrieval orchestrator. The knowledge graph
// may be nil, which disables graph enhancement.
func NewOrchestrator(engine *search.Engine, store storage.ArticleStore, kg *graph.Graph, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		store:    store,
		kg:       kg,
		mmr:      rank.NewMMRRanker(),
		reranker: rank.NewSignalReranker(rank.DefaultSignalWeights()),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Retrieve runs the standard pipeline: hybrid search with overfetch,
// then maximal marginal relevance selection down to topK.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	candidates, err := o.engine.Search(ctx, query, &search.Options{
		TopK:    topK * 2,
		Mode:    opts.Mode,
		Filters: opts.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	articles := o.mmr.Rank(candidates, topK)
	o.logger.Debugf("retrieve %q: %d candidates, %d after MMR", query, len(candidates), len(articles))

	return &Result{Query: query, Articles: articles}, nil
}

// conceptCap bounds each concept list collected from the graph.
const conceptCap = 3

// conceptsFromGraph collects the techniques, platforms, and companies
// adjacent to the result articles in the knowledge graph, strongest
// edges first.
func (o *Orchestrator) conceptsFromGraph(articles []*storage.Article) *RelatedConcepts {
	if o.kg == nil {
		return nil
	}

	concepts := &RelatedConcepts{}
	seen := make(map[string]bool)
	for _, a := range articles {
		for _, n := range o.kg.Neighbors(fmt.Sprintf("paper:%d", a.ID)) {
			if seen[n.Entity.ID] {
				continue
			}
			seen[n.Entity.ID] = true

			switch n.Entity.Type {
			case graph.EntityTechnique, graph.EntityOptimization:
				concepts.Techniques = appendCapped(concepts.Techniques, n.Entity.Name)
			case graph.EntityPlatform:
				concepts.Platforms = appendCapped(concepts.Platforms, n.Entity.Name)
			case graph.EntityCompany:
				concepts.Companies = appendCapped(concepts.Companies, n.Entity.Name)
			}
		}
	}
	if concepts.Empty() {
		return nil
	}
	return concepts
}

func appendCapped(list []string, name string) []string {
	if len(list) >= conceptCap {
		return list
	}
	return append(list, name)
}

// enhanceFromGraph collects graph-connected articles not already present
// in the result set.
func (o *Orchestrator) enhanceFromGraph(ctx context.Context, articles []*storage.Article, limit int) []*storage.Article {
	if o.kg == nil || limit <= 0 {
		return nil
	}

	have := make(map[int64]bool, len(articles))
	for _, a := range articles {
		have[a.ID] = true
	}

	var related []*storage.Article
	for _, a := range articles {
		for _, id := range o.kg.RelatedArticles(a.ID, 2) {
			if have[id] {
				continue
			}
			have[id] = true

			article, err := o.store.Get(ctx, id)
			if err != nil {
				o.logger.Warnf("graph references missing article %d: %v", id, err)
				continue
			}
			related = append(related, article)
			if len(related) >= limit {
				return related
			}
		}
	}
	return related
}
