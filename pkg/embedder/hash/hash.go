// Package hash provides a deterministic, offline embedding provider.
//
// Vectors are derived from a SHA-256 based pseudo-random expansion of the
// input text and normalized to unit length. The same text always produces the
// same vector, so pipelines and tests can run without any external embedding
// service. Vectors carry no semantic meaning; only identity comparisons and
// plumbing behave realistically.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// Embedder is a deterministic embedding provider.
type Embedder struct {
	dimensions int
}

// New creates a deterministic embedder producing vectors of the given
// dimension. A dimension <= 0 defaults to 384.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Embedder{dimensions: dimensions}
}

// Embed returns a unit-length vector derived from the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, e.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= norm
	}

	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector dimension.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close closes the embedder.
func (e *Embedder) Close() error {
	return nil
}
