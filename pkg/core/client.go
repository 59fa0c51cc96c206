// Package core wires the pipeline together: providers, storage, the
// keyword index, the knowledge graph, and the retrieval orchestrator
// behind one client.
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder/cached"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder/hash"
	embopenai "github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder/openai"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/graph"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/index"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/intelligence"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	llmollama "github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm/ollama"
	llmopenai "github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm/openai"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rag"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rank"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/search"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/memory"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/mysql"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/postgres"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage/sqlite"
)

// IngestInput is one article handed to the pipeline, typically the
// output of an external collector.
type IngestInput struct {
	Title     string                 `json:"title"`
	Summary   string                 `json:"summary"`
	Link      string                 `json:"link"`
	Source    string                 `json:"source"`
	Published time.Time              `json:"published"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IngestResult reports what happened to one input.
type IngestResult struct {
	// Article is the stored article, or the existing one for
	// duplicates.
	Article *storage.Article

	// Duplicate reports whether the input matched an existing article.
	Duplicate bool

	// DuplicateReason is "link", "title", or "similarity" when
	// Duplicate is true.
	DuplicateReason string
}

// Stats summarizes pipeline state.
type Stats struct {
	Articles    int64       `json:"articles"`
	IndexedDocs int         `json:"indexed_docs"`
	IndexTerms  int         `json:"index_terms"`
	Graph       graph.Stats `json:"graph"`
}

// Client is the pipeline facade.
type Client struct {
	config *Config
	logger log.Logger

	store     storage.ArticleStore
	llmClient llm.Provider
	embClient embedder.Provider
	keyword   *index.BM25
	kg        *graph.Graph
	engine    *search.Engine
	orch      *rag.Orchestrator
	scorer    *intelligence.Scorer
	extractor *intelligence.Extractor
	dedup     *intelligence.Deduplicator
	validator *intelligence.Validator
	trends    *intelligence.TrendAnalyzer
	idgen     *snowflake.Node
}

// NewClient builds a pipeline client from configuration. Options may
// override any constructed component, which is how tests substitute
// in-memory fakes.
//
// The knowledge graph is loaded from its snapshot and the keyword index
// is rebuilt from the store, so restarts resume with full retrieval
// state.
// parseLogLevel maps the Config.LogLevel strings (debug, info, warn,
// error) to log levels, defaulting to info.
func parseLogLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.LevelDebug
	case "info":
		return log.LevelInfo
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.SetLevel(parseLogLevel(config.LogLevel))

	c := &Client{
		config:  config,
		logger:  log.Default(),
		keyword: index.NewBM25(),
		kg:      graph.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.idgen == nil {
		node, err := snowflake.NewNode(config.NodeID)
		if err != nil {
			return nil, NewPipelineError("init", err)
		}
		c.idgen = node
	}

	if c.store == nil {
		store, err := newStore(config)
		if err != nil {
			return nil, NewPipelineError("init", err)
		}
		c.store = store
	}

	if c.llmClient == nil {
		provider, err := newLLMProvider(config)
		if err != nil {
			return nil, NewPipelineError("init", err)
		}
		c.llmClient = provider
	}

	if c.embClient == nil {
		provider, err := newEmbedderProvider(config)
		if err != nil {
			return nil, NewPipelineError("init", err)
		}
		c.embClient = provider
	}

	c.engine = search.NewEngine(c.store, c.keyword, c.embClient,
		search.WithAlpha(config.Search.Alpha),
		search.WithLogger(c.logger))

	mmrOpts := []rank.MMROption{rank.WithLambda(config.Rank.Lambda)}
	if config.Rank.ScoreWeighted {
		mmrOpts = append(mmrOpts, rank.WithScoreWeighting())
	}
	c.orch = rag.NewOrchestrator(c.engine, c.store, c.kg,
		rag.WithMMRRanker(rank.NewMMRRanker(mmrOpts...)),
		rag.WithQueryExpander(rag.NewQueryExpander(c.llmClient, c.logger)),
		rag.WithLogger(c.logger))

	c.scorer = intelligence.NewScorer(c.llmClient, c.logger)
	c.extractor = intelligence.NewExtractor(c.llmClient, c.logger)
	c.dedup = intelligence.NewDeduplicator(c.store, c.logger,
		intelligence.WithSimilarityThreshold(config.DedupThreshold))
	c.validator = intelligence.NewValidator(c.logger,
		intelligence.WithConfidenceThreshold(config.ConfidenceThreshold))
	c.trends = intelligence.NewTrendAnalyzer(c.llmClient, c.logger,
		intelligence.WithGraph(c.kg))

	if err := c.restoreState(context.Background()); err != nil {
		return nil, NewPipelineError("init", err)
	}

	return c, nil
}

func newStore(config *Config) (storage.ArticleStore, error) {
	switch config.Storage.Provider {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DBPath:    config.Storage.DBPath,
			TableName: config.Storage.TableName,
		})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			DSN:           config.Storage.DSN,
			TableName:     config.Storage.TableName,
			EmbeddingDims: config.Embedder.Dimensions,
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			DSN:       config.Storage.DSN,
			TableName: config.Storage.TableName,
		})
	}
	return nil, fmt.Errorf("unknown storage provider %q", config.Storage.Provider)
}

func newLLMProvider(config *Config) (llm.Provider, error) {
	switch config.LLM.Provider {
	case "openai":
		return llmopenai.NewClient(&llmopenai.Config{
			APIKey:  config.LLM.APIKey,
			Model:   config.LLM.Model,
			BaseURL: config.LLM.BaseURL,
		})
	case "ollama":
		return llmollama.NewClient(&llmollama.Config{
			Model:   config.LLM.Model,
			BaseURL: config.LLM.BaseURL,
		})
	}
	return nil, fmt.Errorf("unknown llm provider %q", config.LLM.Provider)
}

func newEmbedderProvider(config *Config) (embedder.Provider, error) {
	var inner embedder.Provider
	switch config.Embedder.Provider {
	case "openai":
		client, err := embopenai.NewClient(&embopenai.Config{
			APIKey:            config.Embedder.APIKey,
			Model:             config.Embedder.Model,
			BaseURL:           config.Embedder.BaseURL,
			Dimensions:        config.Embedder.Dimensions,
			RequestsPerSecond: config.Embedder.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		inner = client
	case "hash":
		inner = hash.New(config.Embedder.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", config.Embedder.Provider)
	}

	if !config.Embedder.Cache.Enabled {
		return inner, nil
	}
	return cached.New(inner, &cached.Config{
		Addr:     config.Embedder.Cache.Addr,
		Password: config.Embedder.Cache.Password,
		DB:       config.Embedder.Cache.DB,
		TTL:      config.Embedder.Cache.TTL,
	})
}

// restoreState loads the graph snapshot and rebuilds the keyword index
// from the store.
func (c *Client) restoreState(ctx context.Context) error {
	if c.config.GraphPath != "" {
		if err := c.kg.Load(c.config.GraphPath); err != nil {
			return err
		}
	}

	const page = 500
	for offset := 0; ; offset += page {
		articles, err := c.store.GetAll(ctx, &storage.GetAllOptions{Limit: page, Offset: offset})
		if err != nil {
			return err
		}
		for _, a := range articles {
			c.keyword.Add(a.ID, a.Title+" "+a.Summary)
		}
		if len(articles) < page {
			break
		}
	}

	c.logger.Infof("restored state: %d indexed articles, %d graph entities",
		c.keyword.Len(), c.kg.Stats().Entities)
	return nil
}

// Ingest runs one article through the full pipeline: embedding,
// duplicate detection, LLM scoring with recent-corpus context, review
// gating, storage, graph projection, and keyword indexing.
//
// Duplicates are not re-inserted; the existing article's seen counter is
// bumped and returned.
func (c *Client) Ingest(ctx context.Context, input *IngestInput) (*IngestResult, error) {
	if input.Title == "" || input.Link == "" {
		return nil, NewPipelineError("ingest", fmt.Errorf("title and link are required"))
	}

	article := &storage.Article{
		ID:          c.idgen.Generate().Int64(),
		Title:       input.Title,
		Summary:     input.Summary,
		Link:        input.Link,
		Source:      input.Source,
		Published:   input.Published,
		CollectedAt: time.Now(),
		Metadata:    input.Metadata,
	}

	embedding, err := c.embClient.Embed(ctx, article.Title+" "+article.Summary)
	if err != nil {
		return nil, NewPipelineError("ingest", err)
	}
	article.Embedding = embedding

	dupResult, err := c.dedup.Check(ctx, article)
	if err != nil {
		return nil, NewPipelineError("ingest", err)
	}
	if dupResult.IsDuplicate {
		if err := c.dedup.Merge(ctx, dupResult.Existing); err != nil {
			return nil, NewPipelineError("ingest", err)
		}
		c.logger.Infof("duplicate (%s) of article %d: %q",
			dupResult.Reason, dupResult.Existing.ID, input.Title)
		return &IngestResult{
			Article:         dupResult.Existing,
			Duplicate:       true,
			DuplicateReason: dupResult.Reason,
		}, nil
	}

	recentContext, err := c.RecentContext(ctx, c.config.RecentContextDays)
	if err != nil {
		c.logger.Warnf("recent context unavailable, scoring without it: %v", err)
		recentContext = ""
	}

	analysis, err := c.scorer.Score(ctx, article, recentContext)
	if err != nil {
		return nil, NewPipelineError("ingest", err)
	}
	c.validator.Validate(analysis)
	article.Analysis = *analysis

	if err := c.store.Insert(ctx, article); err != nil {
		return nil, NewPipelineError("ingest", err)
	}

	if err := c.kg.AddArticle(article); err != nil {
		return nil, NewPipelineError("ingest", err)
	}
	c.enrichGraph(ctx, article)

	c.keyword.Add(article.ID, article.Title+" "+article.Summary)

	c.logger.Infof("ingested article %d: %q (score %d, %s)",
		article.ID, article.Title, article.Analysis.RelevanceScore, article.Analysis.ReviewStatus)
	return &IngestResult{Article: article}, nil
}

// enrichGraph adds LLM-extracted concepts to the graph. Extraction
// failures only cost the extra edges, so they are logged and swallowed.
func (c *Client) enrichGraph(ctx context.Context, article *storage.Article) {
	concepts, err := c.extractor.Extract(ctx, article)
	if err != nil {
		c.logger.Warnf("concept extraction failed for article %d: %v", article.ID, err)
		return
	}

	weight := float64(article.Analysis.RelevanceScore) / 100.0
	paperID := fmt.Sprintf("paper:%d", article.ID)
	for _, concept := range concepts {
		var entityType graph.EntityType
		relType := graph.RelationRelatesTo
		switch concept.Type {
		case "technique":
			entityType = graph.EntityTechnique
			relType = graph.RelationUses
		case "metric":
			entityType = graph.EntityMetric
		case "company":
			entityType = graph.EntityCompany
		case "author":
			entityType = graph.EntityAuthor
		default:
			continue
		}

		id := string(entityType) + ":" + graph.Slug(concept.Name)
		c.kg.AddEntity(&graph.Entity{ID: id, Type: entityType, Name: concept.Name})
		if err := c.kg.AddRelation(paperID, id, relType, weight); err != nil {
			c.logger.Warnf("graph relation failed: %v", err)
		}
	}
}

// Get retrieves a stored article by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Article, error) {
	article, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, NewPipelineError("get", err)
	}
	return article, nil
}

// GetAll retrieves stored articles with filtering and pagination.
func (c *Client) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Article, error) {
	articles, err := c.store.GetAll(ctx, opts)
	if err != nil {
		return nil, NewPipelineError("get-all", err)
	}
	return articles, nil
}

// Update replaces an article's mutable fields and refreshes its keyword
// index entry. Manual review flows use it to record approved or rejected
// statuses.
func (c *Client) Update(ctx context.Context, article *storage.Article) (*storage.Article, error) {
	updated, err := c.store.Update(ctx, article)
	if err != nil {
		return nil, NewPipelineError("update", err)
	}
	c.keyword.Add(updated.ID, updated.Title+" "+updated.Summary)
	return updated, nil
}

// Delete removes an article from the store and the keyword index. Graph
// entities are left in place; they carry aggregate signal beyond one
// article.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return NewPipelineError("delete", err)
	}
	c.keyword.Remove(id)
	return nil
}

// Search runs a plain vector similarity search, bypassing the hybrid
// engine and re-rankers.
func (c *Client) Search(ctx context.Context, query string, opts *storage.SearchOptions) ([]*storage.Article, error) {
	embedding, err := c.embClient.Embed(ctx, query)
	if err != nil {
		return nil, NewPipelineError("search", err)
	}
	articles, err := c.store.Search(ctx, embedding, opts)
	if err != nil {
		return nil, NewPipelineError("search", err)
	}
	return articles, nil
}

// Retrieve runs standard retrieval: hybrid search plus MMR selection.
func (c *Client) Retrieve(ctx context.Context, query string, opts *rag.Options) (*rag.Result, error) {
	result, err := c.orch.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, NewPipelineError("retrieve", err)
	}
	return result, nil
}

// RetrieveEnhanced runs the enhanced pipeline: query expansion,
// concurrent multi-query search, rank fusion, signal re-ranking, and
// graph enhancement.
func (c *Client) RetrieveEnhanced(ctx context.Context, query string, opts *rag.Options) (*rag.Result, error) {
	result, err := c.orch.RetrieveEnhanced(ctx, query, opts)
	if err != nil {
		return nil, NewPipelineError("retrieve", err)
	}
	return result, nil
}

// BuildContext renders a retrieval result as a prompt context block.
func (c *Client) BuildContext(result *rag.Result) string {
	return rag.BuildContext(result, 0)
}

// RecentContext digests the most relevant articles from the last N days,
// grouped by platform, for use as scoring context.
func (c *Client) RecentContext(ctx context.Context, days int) (string, error) {
	if days <= 0 {
		days = 7
	}

	articles, err := c.store.GetAll(ctx, &storage.GetAllOptions{
		Limit:        50,
		Since:        time.Now().AddDate(0, 0, -days),
		MinRelevance: 50,
	})
	if err != nil {
		return "", NewPipelineError("recent-context", err)
	}
	if len(articles) == 0 {
		return "", nil
	}

	byPlatform := make(map[string][]*storage.Article)
	for _, a := range articles {
		byPlatform[a.Analysis.Platform] = append(byPlatform[a.Analysis.Platform], a)
	}

	platforms := make([]string, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var sb strings.Builder
	for _, platform := range platforms {
		fmt.Fprintf(&sb, "%s:\n", platform)
		for _, a := range byPlatform[platform] {
			fmt.Fprintf(&sb, "- %s (score %d)\n", a.Title, a.Analysis.RelevanceScore)
		}
	}
	return sb.String(), nil
}

// Trends generates a trend report over articles from the last N days.
func (c *Client) Trends(ctx context.Context, days int) (string, error) {
	articles, err := c.recentArticles(ctx, days)
	if err != nil {
		return "", err
	}
	report, err := c.trends.Trends(ctx, articles)
	if err != nil {
		return "", NewPipelineError("trends", err)
	}
	return report, nil
}

// Gaps generates a coverage gap report over articles from the last N
// days.
func (c *Client) Gaps(ctx context.Context, days int) (string, error) {
	articles, err := c.recentArticles(ctx, days)
	if err != nil {
		return "", err
	}
	report, err := c.trends.Gaps(ctx, articles)
	if err != nil {
		return "", NewPipelineError("gaps", err)
	}
	return report, nil
}

func (c *Client) recentArticles(ctx context.Context, days int) ([]*storage.Article, error) {
	if days <= 0 {
		days = 30
	}
	articles, err := c.store.GetAll(ctx, &storage.GetAllOptions{
		Limit: 100,
		Since: time.Now().AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, NewPipelineError("trends", err)
	}
	return articles, nil
}

// Stats reports pipeline state: stored articles, index size, and graph
// size.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	count, err := c.store.Count(ctx)
	if err != nil {
		return nil, NewPipelineError("stats", err)
	}
	return &Stats{
		Articles:    count,
		IndexedDocs: c.keyword.Len(),
		IndexTerms:  c.keyword.Terms(),
		Graph:       c.kg.Stats(),
	}, nil
}

// Graph exposes the knowledge graph for read operations such as path
// queries.
func (c *Client) Graph() *graph.Graph {
	return c.kg
}

// Close persists the graph snapshot and releases provider and store
// resources.
func (c *Client) Close() error {
	var firstErr error

	if c.config.GraphPath != "" {
		if err := c.kg.Save(c.config.GraphPath); err != nil {
			firstErr = err
		}
	}
	if err := c.llmClient.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.embClient.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
