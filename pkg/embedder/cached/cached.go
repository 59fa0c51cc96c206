// Package cached provides a caching decorator for embedding providers.
//
// Pipeline runs re-embed the same titles and summaries often (re-ingests,
// repeated queries, index rebuilds). The decorator stores vectors in Redis
// keyed by a hash of the text, so repeated embeddings skip the provider call.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
)

// keyPrefix namespaces cache entries so the same Redis can serve other uses.
const keyPrefix = "researchrag:emb:"

// Provider wraps an embedding provider with a Redis cache.
type Provider struct {
	inner embedder.Provider
	rdb   *redis.Client
	ttl   time.Duration
}

var _ embedder.Provider = (*Provider)(nil)

// Config contains configuration for the caching decorator.
type Config struct {
	// Addr is the Redis address, e.g. "localhost:6379".
	Addr string

	// Password is the optional Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// TTL is how long cached vectors live. Zero means no expiry.
	TTL time.Duration
}

// New wraps the given provider with a Redis-backed cache.
//
// Parameters:
//   - inner: The provider doing real embedding work
//   - cfg: Redis connection settings
//
// Returns the caching provider, or an error if inner is nil or the address
// is empty. The Redis connection is verified lazily on first use.
func New(inner embedder.Provider, cfg *Config) (*Provider, error) {
	if inner == nil {
		return nil, errors.New("cached: inner provider is required")
	}
	if cfg == nil || cfg.Addr == "" {
		return nil, errors.New("cached: redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Provider{
		inner: inner,
		rdb:   rdb,
		ttl:   cfg.TTL,
	}, nil
}

// Embed returns the cached vector for the text, embedding and caching it on miss.
//
// Cache failures degrade to direct provider calls; they are logged, never fatal.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := p.cacheKey(text)

	if vec, ok := p.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch embeds a batch, serving cached entries and forwarding only the
// misses to the inner provider in a single call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := p.lookup(ctx, p.cacheKey(text)); ok {
			out[i] = vec
		} else {
			missTexts = append(missTexts, text)
			missIdx = append(missIdx, i)
		}
	}

	if len(missTexts) > 0 {
		vecs, err := p.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIdx[j]
			out[i] = vec
			p.store(ctx, p.cacheKey(texts[i]), vec)
		}
	}

	return out, nil
}

// Dimensions returns the inner provider's vector dimension.
func (p *Provider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close closes the Redis connection and the inner provider.
func (p *Provider) Close() error {
	if err := p.rdb.Close(); err != nil {
		_ = p.inner.Close()
		return err
	}
	return p.inner.Close()
}

func (p *Provider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

func (p *Provider) lookup(ctx context.Context, key string) ([]float64, bool) {
	data, err := p.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("embedding cache get failed: %v", err)
		}
		return nil, false
	}

	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		log.Warnf("embedding cache entry corrupt, ignoring: %v", err)
		return nil, false
	}
	return vec, true
}

func (p *Provider) store(ctx context.Context, key string, vec []float64) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, key, data, p.ttl).Err(); err != nil {
		log.Warnf("embedding cache set failed: %v", err)
	}
}
