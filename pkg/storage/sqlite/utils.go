package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// articleColumns is the column list shared by all SELECT queries, in the
// order scanArticle expects.
const articleColumns = `id, title, summary, link, source, published, collected_at,
	embedding, relevance_score, platform, model_type, memory_insight, dram_impact,
	engineering_takeaway, quantization_method, key_optimization, review_status,
	review_reason, confidence, seen_count, metadata, created_at, updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows for scanArticle.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanArticle scans a database row into an Article struct.
func scanArticle(row rowScanner) (*storage.Article, error) {
	var article storage.Article
	var embeddingJSON, metadataJSON string
	var summary, source, memoryInsight sql.NullString
	var engineeringTakeaway, quantizationMethod, keyOptimization sql.NullString
	var reviewStatus, reviewReason sql.NullString
	var published, collectedAt sql.NullTime

	err := row.Scan(
		&article.ID,
		&article.Title,
		&summary,
		&article.Link,
		&source,
		&published,
		&collectedAt,
		&embeddingJSON,
		&article.Analysis.RelevanceScore,
		&article.Analysis.Platform,
		&article.Analysis.ModelType,
		&memoryInsight,
		&article.Analysis.DRAMImpact,
		&engineeringTakeaway,
		&quantizationMethod,
		&keyOptimization,
		&reviewStatus,
		&reviewReason,
		&article.Analysis.Confidence,
		&article.SeenCount,
		&metadataJSON,
		&article.CreatedAt,
		&article.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanArticle: %w", err)
	}

	article.Summary = summary.String
	article.Source = source.String
	article.Analysis.MemoryInsight = memoryInsight.String
	article.Analysis.EngineeringTakeaway = engineeringTakeaway.String
	article.Analysis.QuantizationMethod = quantizationMethod.String
	article.Analysis.KeyOptimization = keyOptimization.String
	article.Analysis.ReviewStatus = reviewStatus.String
	article.Analysis.ReviewReason = reviewReason.String
	if published.Valid {
		article.Published = published.Time
	}
	if collectedAt.Valid {
		article.CollectedAt = collectedAt.Time
	}

	if err := json.Unmarshal([]byte(embeddingJSON), &article.Embedding); err != nil {
		return nil, fmt.Errorf("scanArticle: failed to unmarshal embedding: %w", err)
	}

	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &article.Metadata); err != nil {
			return nil, fmt.Errorf("scanArticle: failed to unmarshal metadata: %w", err)
		}
	}

	return &article, nil
}

// buildSearchWhere builds the WHERE clause for similarity search filters.
func buildSearchWhere(opts *storage.SearchOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Platform != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, opts.Platform)
	}
	if opts.MinRelevance > 0 {
		conditions = append(conditions, "relevance_score >= ?")
		args = append(args, opts.MinRelevance)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "published >= ?")
		args = append(args, opts.Since)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildGetAllWhere builds the WHERE clause for list queries.
func buildGetAllWhere(opts *storage.GetAllOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.ReviewStatus != "" {
		conditions = append(conditions, "review_status = ?")
		args = append(args, opts.ReviewStatus)
	}
	if opts.MinRelevance > 0 {
		conditions = append(conditions, "relevance_score >= ?")
		args = append(args, opts.MinRelevance)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "published >= ?")
		args = append(args, opts.Since)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// orUnknown substitutes the default label for empty analysis fields.
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore sorts articles by score descending and applies the limit.
func sortByScore(articles []*storage.Article, limit int) []*storage.Article {
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Score > articles[j].Score
	})

	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}
