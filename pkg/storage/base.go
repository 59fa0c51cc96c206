// Package storage provides interfaces and types for article storage backends.
//
// It defines the ArticleStore interface that all storage implementations must
// satisfy, along with the Article and Analysis types shared across the
// pipeline.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store operations that target an article ID
// with no matching row. Backends wrap it, so test with errors.Is.
var ErrNotFound = errors.New("article not found")

// Review statuses attached to an article after validation.
const (
	// ReviewAutoApproved marks a high-confidence analysis accepted without review.
	ReviewAutoApproved = "auto_approved"

	// ReviewNeeded marks an analysis queued for manual review.
	ReviewNeeded = "needs_review"

	// ReviewApproved marks an analysis approved by a human reviewer.
	ReviewApproved = "approved"

	// ReviewRejected marks an analysis rejected by a human reviewer.
	ReviewRejected = "rejected"
)

// Analysis holds the LLM relevance analysis of an article.
type Analysis struct {
	// RelevanceScore is the 0-100 relevance to on-device AI memory optimization.
	RelevanceScore int `json:"relevance_score"`

	// Platform is the target hardware family: Snapdragon, Exynos, Apple,
	// Other, or Unknown.
	Platform string `json:"platform"`

	// ModelType is the model category: LLM, Vision, Audio, Multimodal, Other, Unknown.
	ModelType string `json:"model_type"`

	// MemoryInsight captures specific memory findings, with numbers when present.
	MemoryInsight string `json:"memory_insight"`

	// DRAMImpact is the estimated DRAM impact: High, Medium, Low, or Unknown.
	DRAMImpact string `json:"dram_impact"`

	// EngineeringTakeaway is a one-sentence actionable summary.
	EngineeringTakeaway string `json:"engineering_takeaway"`

	// QuantizationMethod is the quantization technique named by the paper, if any.
	QuantizationMethod string `json:"quantization_method,omitempty"`

	// KeyOptimization is the main optimization technique, if any.
	KeyOptimization string `json:"key_optimization,omitempty"`

	// ReviewStatus is one of the Review* constants.
	ReviewStatus string `json:"review_status,omitempty"`

	// ReviewReason explains why the analysis was queued for review.
	ReviewReason string `json:"review_reason,omitempty"`

	// Confidence is the validator's 0-1 confidence in this analysis.
	Confidence float64 `json:"confidence,omitempty"`

	// ProcessedAt is when the analysis was produced.
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

// Article represents a research article stored in the pipeline.
type Article struct {
	// ID is the unique identifier of the article.
	ID int64

	// Title is the article title.
	Title string

	// Summary is the article abstract or summary text.
	Summary string

	// Link is the canonical URL. Used for exact-duplicate detection.
	Link string

	// Source names where the article was collected from (arXiv, blog, ...).
	Source string

	// Published is the publication date.
	Published time.Time

	// CollectedAt is when the collector first produced this article.
	CollectedAt time.Time

	// Embedding is the vector embedding of title + summary.
	Embedding []float64

	// Analysis is the LLM relevance analysis (zero value if unscored).
	Analysis Analysis

	// SeenCount counts how many times the same article arrived from collectors.
	SeenCount int

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// CreatedAt is when the article row was created.
	CreatedAt time.Time

	// UpdatedAt is when the article row was last updated.
	UpdatedAt time.Time

	// Score is the similarity score from search operations.
	Score float64
}

// ArticleStore defines the interface for article storage backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL) must implement
// this interface. Similarity search is cosine over the stored embeddings.
type ArticleStore interface {
	// Insert inserts an article into the store.
	Insert(ctx context.Context, article *Article) error

	// Search performs vector similarity search.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - embedding: Query embedding vector
	//   - opts: Search options (Limit, MinScore, Source, Platform, Since, MinRelevance)
	//
	// Returns matching articles sorted by similarity (highest first).
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Article, error)

	// Get retrieves an article by ID.
	Get(ctx context.Context, id int64) (*Article, error)

	// GetByLink retrieves an article by its canonical URL.
	// Returns nil without error when no article matches.
	GetByLink(ctx context.Context, link string) (*Article, error)

	// Update replaces an article's mutable fields.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - article: The article to update; matched by ID
	//
	// Returns the updated article, or an error if the ID does not exist.
	Update(ctx context.Context, article *Article) (*Article, error)

	// UpdateAnalysis updates an article's analysis fields.
	UpdateAnalysis(ctx context.Context, id int64, analysis *Analysis) (*Article, error)

	// MarkSeen increments the article's seen counter and refreshes its
	// updated timestamp. Used when a duplicate arrives from a collector.
	MarkSeen(ctx context.Context, id int64, at time.Time) error

	// Delete deletes an article by ID.
	Delete(ctx context.Context, id int64) error

	// GetAll retrieves articles with optional filtering and pagination.
	GetAll(ctx context.Context, opts *GetAllOptions) ([]*Article, error)

	// DeleteAll deletes all articles.
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored articles.
	Count(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// SearchOptions contains options for search operations.
type SearchOptions struct {
	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore sets the minimum similarity score for results.
	MinScore float64

	// Source filters results to a single collection source.
	Source string

	// Platform filters results by analyzed platform (Snapdragon, Exynos,
	// Apple, Other).
	Platform string

	// MinRelevance filters out articles below this analyzed relevance score.
	MinRelevance int

	// Since filters out articles published before this time (zero = no filter).
	Since time.Time
}

// GetAllOptions contains options for GetAll operations.
type GetAllOptions struct {
	// Limit sets the maximum number of results to return.
	Limit int

	// Offset sets the number of results to skip (for pagination).
	Offset int

	// Source filters results to a single collection source.
	Source string

	// ReviewStatus filters by review status (e.g. ReviewNeeded for the
	// manual review queue).
	ReviewStatus string

	// MinRelevance filters out articles below this analyzed relevance score.
	MinRelevance int

	// Since filters out articles published before this time (zero = no filter).
	Since time.Time
}
