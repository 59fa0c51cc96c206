package intelligence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rank"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const (
	// defaultSimilarityThreshold marks two articles as duplicates.
	defaultSimilarityThreshold = 0.95

	// dedupSearchLimit bounds the near-duplicate candidate search.
	dedupSearchLimit = 5
)

// DedupResult describes the outcome of a duplicate check.
type DedupResult struct {
	// IsDuplicate reports whether an existing article matched.
	IsDuplicate bool

	// Existing is the matched article, nil when IsDuplicate is false.
	Existing *storage.Article

	// Reason is "link", "title", or "similarity".
	Reason string

	// Similarity is the vector similarity for near-duplicate matches.
	Similarity float64
}

// Deduplicator detects exact and near-duplicate articles before they
// enter the store.
type Deduplicator struct {
	store     storage.ArticleStore
	threshold float64
	logger    log.Logger
}

// DedupOption configures the deduplicator.
type DedupOption func(*Deduplicator)

// WithSimilarityThreshold overrides the near-duplicate cutoff. Values
// outside (0, 1] are ignored and the default kept.
func WithSimilarityThreshold(threshold float64) DedupOption {
	return func(d *Deduplicator) {
		if threshold > 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}

// NewDeduplicator creates a deduplicator over the given store.
func NewDeduplicator(store storage.ArticleStore, logger log.Logger, opts ...DedupOption) *Deduplicator {
	if logger == nil {
		logger = log.Default()
	}
	d := &Deduplicator{
		store:     store,
		threshold: defaultSimilarityThreshold,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check looks for an existing article matching the candidate. The checks
// run cheapest first: exact link, then normalized title hash, then vector
// similarity against the top nearest neighbors.
//
// The candidate's embedding must already be populated for the similarity
// check; without one, only the exact checks run.
func (d *Deduplicator) Check(ctx context.Context, candidate *storage.Article) (*DedupResult, error) {
	existing, err := d.store.GetByLink(ctx, candidate.Link)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if existing != nil {
		return &DedupResult{IsDuplicate: true, Existing: existing, Reason: "link"}, nil
	}

	if len(candidate.Embedding) > 0 {
		neighbors, err := d.store.Search(ctx, candidate.Embedding, &storage.SearchOptions{
			Limit: dedupSearchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("dedup check: %w", err)
		}

		titleKey := TitleHash(candidate.Title)
		for _, neighbor := range neighbors {
			if TitleHash(neighbor.Title) == titleKey {
				return &DedupResult{IsDuplicate: true, Existing: neighbor, Reason: "title"}, nil
			}

			sim := rank.CosineSimilarity(candidate.Embedding, neighbor.Embedding)
			if sim >= d.threshold {
				d.logger.Debugf("near-duplicate of %d (similarity %.3f): %q",
					neighbor.ID, sim, candidate.Title)
				return &DedupResult{
					IsDuplicate: true,
					Existing:    neighbor,
					Reason:      "similarity",
					Similarity:  sim,
				}, nil
			}
		}
	}

	return &DedupResult{}, nil
}

// Merge records that a duplicate of an existing article was seen again.
// The stored article keeps its analysis; only the seen counter and
// timestamp move.
func (d *Deduplicator) Merge(ctx context.Context, existing *storage.Article) error {
	if err := d.store.MarkSeen(ctx, existing.ID, time.Now()); err != nil {
		return fmt.Errorf("dedup merge: %w", err)
	}
	return nil
}

// TitleHash returns a hash of the normalized title: lowercased, with
// punctuation and whitespace runs collapsed, so trivial reformatting
// still matches.
func TitleHash(title string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	normalized = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			return r
		}
		return -1
	}, normalized)

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}
