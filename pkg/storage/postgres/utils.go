package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const articleColumns = `id, title, summary, link, source, published, collected_at,
	embedding, relevance_score, platform, model_type, memory_insight, dram_impact,
	engineering_takeaway, quantization_method, key_optimization, review_status,
	review_reason, confidence, seen_count, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// vectorString formats a float64 slice in pgvector's text representation,
// e.g. "[0.1,0.2,0.3]".
func vectorString(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

// parseVector parses pgvector's text representation back into a slice.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parseVector: %w", err)
		}
		vec[i] = f
	}
	return vec, nil
}

func scanArticleInto(row rowScanner, extra ...interface{}) (*storage.Article, error) {
	var article storage.Article
	var embeddingStr string
	var metadataJSON []byte
	var summary, source, memoryInsight sql.NullString
	var engineeringTakeaway, quantizationMethod, keyOptimization sql.NullString
	var reviewStatus, reviewReason sql.NullString
	var published, collectedAt sql.NullTime

	dest := []interface{}{
		&article.ID,
		&article.Title,
		&summary,
		&article.Link,
		&source,
		&published,
		&collectedAt,
		&embeddingStr,
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
	}
	dest = append(dest, extra...)

	err := row.Scan(dest...)
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

	article.Embedding, err = parseVector(embeddingStr)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &article.Metadata); err != nil {
			return nil, fmt.Errorf("scanArticle: failed to unmarshal metadata: %w", err)
		}
	}

	return &article, nil
}

func scanArticle(row rowScanner) (*storage.Article, error) {
	return scanArticleInto(row)
}

func scanArticleWithScore(row rowScanner) (*storage.Article, error) {
	var score float64
	article, err := scanArticleInto(row, &score)
	if err != nil {
		return nil, err
	}
	article.Score = score
	return article, nil
}

// buildSearchWhere builds the WHERE clause for similarity search filters.
// The first positional argument is reserved for the query vector.
func buildSearchWhere(opts *storage.SearchOptions, args []interface{}) (string, []interface{}) {
	var conditions []string

	if opts.Source != "" {
		args = append(args, opts.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if opts.Platform != "" {
		args = append(args, opts.Platform)
		conditions = append(conditions, fmt.Sprintf("platform = $%d", len(args)))
	}
	if opts.MinRelevance > 0 {
		args = append(args, opts.MinRelevance)
		conditions = append(conditions, fmt.Sprintf("relevance_score >= $%d", len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		conditions = append(conditions, fmt.Sprintf("published >= $%d", len(args)))
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
		args = append(args, opts.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if opts.ReviewStatus != "" {
		args = append(args, opts.ReviewStatus)
		conditions = append(conditions, fmt.Sprintf("review_status = $%d", len(args)))
	}
	if opts.MinRelevance > 0 {
		args = append(args, opts.MinRelevance)
		conditions = append(conditions, fmt.Sprintf("relevance_score >= $%d", len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		conditions = append(conditions, fmt.Sprintf("published >= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
