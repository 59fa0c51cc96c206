// Package sqlite provides the SQLite implementation of the article store.
//
// SQLite is a lightweight, file-based database suitable for local pipelines
// and development. Vectors are stored as JSON strings in TEXT fields, and
// similarity search uses in-process cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Client implements storage.ArticleStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing articles.
	tableName string
}

// Config contains configuration for creating a SQLite article store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Defaults to "articles".
	TableName string
}

// NewClient creates a new SQLite article store.
//
// Parameters:
//   - cfg: Configuration containing the database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
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

// initTables initializes the database table structure.
//
// SQLite stores vectors as JSON strings in TEXT fields.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			link TEXT NOT NULL,
			source TEXT,
			published DATETIME,
			collected_at DATETIME,
			embedding TEXT NOT NULL,
			relevance_score INTEGER DEFAULT 0,
			platform TEXT DEFAULT 'Unknown',
			model_type TEXT DEFAULT 'Unknown',
			memory_insight TEXT,
			dram_impact TEXT DEFAULT 'Unknown',
			engineering_takeaway TEXT,
			quantization_method TEXT,
			key_optimization TEXT,
			review_status TEXT,
			review_reason TEXT,
			confidence REAL DEFAULT 0,
			seen_count INTEGER DEFAULT 1,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	linkIndex := fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_link ON %s(link)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, linkIndex); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	dateIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_published ON %s(published)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, dateIndex); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts an article into the SQLite database.
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

// Search performs vector similarity search using cosine similarity.
//
// SQLite has no native vector operations, so similarity is calculated in
// process after loading the filtered rows.
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

	return sortByScore(articles, opts.Limit), nil
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

// GetByLink retrieves an article by its canonical URL.
//
// Returns nil without error when no article matches, so callers can use it
// for exact-duplicate checks without treating a miss as a failure.
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

// GetAll retrieves articles with optional filtering and pagination.
//
// Results are ordered by publication date, newest first.
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
