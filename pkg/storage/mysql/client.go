// Package mysql provides the MySQL implementation of the article store.
//
// Vectors are stored as JSON documents and similarity is calculated in
// process, which keeps the backend compatible with stock MySQL 8 and
// MySQL-protocol databases without vector extensions.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Client implements storage.ArticleStore using MySQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a MySQL article store.
type Config struct {
	// DSN is the MySQL connection string, e.g.
	// "user:pass@tcp(localhost:3306)/research?parseTime=true".
	DSN string

	// TableName is the name of the table to use. Defaults to "articles".
	TableName string
}

// NewClient creates a new MySQL article store.
func NewClient(cfg *Config) (*Client, error) {
	dsn := cfg.DSN
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "articles"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			link VARCHAR(768) NOT NULL,
			source VARCHAR(255),
			published DATETIME,
			collected_at DATETIME,
			embedding JSON NOT NULL,
			relevance_score INT DEFAULT 0,
			platform VARCHAR(64) DEFAULT 'Unknown',
			model_type VARCHAR(64) DEFAULT 'Unknown',
			memory_insight TEXT,
			dram_impact VARCHAR(64) DEFAULT 'Unknown',
			engineering_takeaway TEXT,
			quantization_method VARCHAR(128),
			key_optimization TEXT,
			review_status VARCHAR(32),
			review_reason TEXT,
			confidence DOUBLE DEFAULT 0,
			seen_count INT DEFAULT 1,
			metadata JSON,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY idx_link (link),
			KEY idx_published (published)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts an article.
func (c *Client) Insert(ctx context.Context, article *storage.Article) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, title, summary, link, source, published, collected_at, embedding,
		 relevance_score, platform, model_type, memory_insight, dram_impact,
		 engineering_takeaway, quantization_method, key_optimization,
		 review_status, review_reason, confidence, seen_count, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(article.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	metadataJSON, err := json.Marshal(article.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	seen := article.SeenCount
	if seen == 0 {
		seen = 1
	}

	now := time.Now()
	_, err = c.db.ExecContext(ctx, query,
		article.ID,
		article.Title,
		article.Summary,
		article.Link,
		article.Source,
		article.Published,
		article.CollectedAt,
		string(embeddingJSON),
		article.Analysis.RelevanceScore,
		orUnknown(article.Analysis.Platform),
		orUnknown(article.Analysis.ModelType),
		article.Analysis.MemoryInsight,
		orUnknown(article.Analysis.DRAMImpact),
		article.Analysis.EngineeringTakeaway,
		article.Analysis.QuantizationMethod,
		article.Analysis.KeyOptimization,
		article.Analysis.ReviewStatus,
		article.Analysis.ReviewReason,
		article.Analysis.Confidence,
		seen,
		string(metadataJSON),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using in-process cosine
// similarity over the filtered rows.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Article, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause, args := buildSearchWhere(opts)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY id
	`, articleColumns, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []*storage.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}

		score := cosineSimilarity(embedding, article.Embedding)
		article.Score = score

		if score >= opts.MinScore {
			articles = append(articles, article)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Score > articles[j].Score
	})
	if opts.Limit > 0 && len(articles) > opts.Limit {
		articles = articles[:opts.Limit]
	}

	return articles, nil
}

// Get retrieves an article by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Article, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = ?
	`, articleColumns, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: article %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return article, nil
}

// GetByLink retrieves an article by its canonical URL, returning nil
// without error when no article matches.
func (c *Client) GetByLink(ctx context.Context, link string) (*storage.Article, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE link = ?
	`, articleColumns, c.tableName)

	row := c.db.QueryRowContext(ctx, query, link)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByLink: %w", err)
	}

	return article, nil
}

// Update replaces an article's mutable fields, matched by ID.
func (c *Client) Update(ctx context.Context, article *storage.Article) (*storage.Article, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = ?, summary = ?, link = ?, source = ?, published = ?,
		    embedding = ?, relevance_score = ?, platform = ?, model_type = ?,
		    memory_insight = ?, dram_impact = ?, engineering_takeaway = ?,
		    quantization_method = ?, key_optimization = ?, review_status = ?,
		    review_reason = ?, confidence = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, c.tableName)

	embeddingJSON, err := json.Marshal(article.Embedding)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	metadataJSON, err := json.Marshal(article.Metadata)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	result, err := c.db.ExecContext(ctx, query,
		article.Title,
		article.Summary,
		article.Link,
		article.Source,
		article.Published,
		string(embeddingJSON),
		article.Analysis.RelevanceScore,
		orUnknown(article.Analysis.Platform),
		orUnknown(article.Analysis.ModelType),
		article.Analysis.MemoryInsight,
		orUnknown(article.Analysis.DRAMImpact),
		article.Analysis.EngineeringTakeaway,
		article.Analysis.QuantizationMethod,
		article.Analysis.KeyOptimization,
		article.Analysis.ReviewStatus,
		article.Analysis.ReviewReason,
		article.Analysis.Confidence,
		string(metadataJSON),
		time.Now(),
		article.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("Update: article %d: %w", article.ID, storage.ErrNotFound)
	}

	return c.Get(ctx, article.ID)
}

// UpdateAnalysis updates an article's analysis fields.
func (c *Client) UpdateAnalysis(ctx context.Context, id int64, analysis *storage.Analysis) (*storage.Article, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET relevance_score = ?, platform = ?, model_type = ?, memory_insight = ?,
		    dram_impact = ?, engineering_takeaway = ?, quantization_method = ?,
		    key_optimization = ?, review_status = ?, review_reason = ?,
		    confidence = ?, updated_at = ?
		WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		analysis.RelevanceScore,
		orUnknown(analysis.Platform),
		orUnknown(analysis.ModelType),
		analysis.MemoryInsight,
		orUnknown(analysis.DRAMImpact),
		analysis.EngineeringTakeaway,
		analysis.QuantizationMethod,
		analysis.KeyOptimization,
		analysis.ReviewStatus,
		analysis.ReviewReason,
		analysis.Confidence,
		time.Now(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("UpdateAnalysis: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("UpdateAnalysis: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("UpdateAnalysis: article %d: %w", id, storage.ErrNotFound)
	}

	return c.Get(ctx, id)
}

// MarkSeen increments the article's seen counter.
func (c *Client) MarkSeen(ctx context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET seen_count = seen_count + 1, updated_at = ? WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("MarkSeen: article %d: %w", id, storage.ErrNotFound)
	}

	return nil
}

// Delete deletes an article by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Delete: article %d: %w", id, storage.ErrNotFound)
	}

	return nil
}

// GetAll retrieves articles with optional filtering and pagination,
// ordered by publication date, newest first.
func (c *Client) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Article, error) {
	if opts == nil {
		opts = &storage.GetAllOptions{}
	}

	whereClause, args := buildGetAllWhere(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY published DESC
		LIMIT ? OFFSET ?
	`, articleColumns, c.tableName, whereClause)
	args = append(args, limit, opts.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []*storage.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return articles, nil
}

// DeleteAll deletes all articles.
func (c *Client) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}
	return nil
}

// Count returns the number of stored articles.
func (c *Client) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName)

	var count int64
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

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
