// Package memory provides a map-backed article store with in-process
// cosine similarity search. It backs tests and short-lived runs where no
// database is wanted; contents vanish when the process exits.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Store implements storage.ArticleStore in memory.
type Store struct {
	mu       sync.RWMutex
	articles map[int64]*storage.Article
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{articles: make(map[int64]*storage.Article)}
}

// Insert stores a copy of the article.
func (s *Store) Insert(_ context.Context, article *storage.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *article
	if copied.SeenCount == 0 {
		copied.SeenCount = 1
	}
	now := time.Now()
	copied.CreatedAt = now
	copied.UpdatedAt = now
	s.articles[article.ID] = &copied
	return nil
}

// Search ranks all matching articles by cosine similarity.
func (s *Store) Search(_ context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Article, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*storage.Article
	for _, a := range s.articles {
		if opts.Source != "" && a.Source != opts.Source {
			continue
		}
		if opts.Platform != "" && a.Analysis.Platform != opts.Platform {
			continue
		}
		if opts.MinRelevance > 0 && a.Analysis.RelevanceScore < opts.MinRelevance {
			continue
		}
		if !opts.Since.IsZero() && a.Published.Before(opts.Since) {
			continue
		}

		copied := *a
		copied.Score = cosineSimilarity(embedding, a.Embedding)
		if copied.Score >= opts.MinScore {
			results = append(results, &copied)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Get returns a copy of the article with the given ID.
func (s *Store) Get(_ context.Context, id int64) (*storage.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("Get: article %d: %w", id, storage.ErrNotFound)
	}
	copied := *a
	return &copied, nil
}

// GetByLink returns the article with the given link, or nil.
func (s *Store) GetByLink(_ context.Context, link string) (*storage.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.articles {
		if a.Link == link {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

// Update replaces the article's mutable fields, matched by ID.
func (s *Store) Update(_ context.Context, article *storage.Article) (*storage.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.articles[article.ID]
	if !ok {
		return nil, fmt.Errorf("Update: article %d: %w", article.ID, storage.ErrNotFound)
	}

	copied := *article
	copied.SeenCount = existing.SeenCount
	copied.CreatedAt = existing.CreatedAt
	copied.UpdatedAt = time.Now()
	s.articles[article.ID] = &copied

	out := copied
	return &out, nil
}

// UpdateAnalysis replaces the article's analysis.
func (s *Store) UpdateAnalysis(_ context.Context, id int64, analysis *storage.Analysis) (*storage.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("UpdateAnalysis: article %d: %w", id, storage.ErrNotFound)
	}
	a.Analysis = *analysis
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

// MarkSeen increments the article's seen counter.
func (s *Store) MarkSeen(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("MarkSeen: article %d: %w", id, storage.ErrNotFound)
	}
	a.SeenCount++
	a.UpdatedAt = at
	return nil
}

// Delete removes an article.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[id]; !ok {
		return fmt.Errorf("Delete: article %d: %w", id, storage.ErrNotFound)
	}
	delete(s.articles, id)
	return nil
}

// GetAll returns matching articles ordered by publication date, newest
// first.
func (s *Store) GetAll(_ context.Context, opts *storage.GetAllOptions) ([]*storage.Article, error) {
	if opts == nil {
		opts = &storage.GetAllOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*storage.Article
	for _, a := range s.articles {
		if opts.Source != "" && a.Source != opts.Source {
			continue
		}
		if opts.ReviewStatus != "" && a.Analysis.ReviewStatus != opts.ReviewStatus {
			continue
		}
		if opts.MinRelevance > 0 && a.Analysis.RelevanceScore < opts.MinRelevance {
			continue
		}
		if !opts.Since.IsZero() && a.Published.Before(opts.Since) {
			continue
		}
		copied := *a
		results = append(results, &copied)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Published.Equal(results[j].Published) {
			return results[i].Published.After(results[j].Published)
		}
		return results[i].ID < results[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return nil, nil
		}
		results = results[opts.Offset:]
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteAll clears the store.
func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = make(map[int64]*storage.Article)
	return nil
}

// Count returns the number of stored articles.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.articles)), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

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
