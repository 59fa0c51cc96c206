// Package openai provides an OpenAI embedding client.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Client is an OpenAI embedding client.
// It implements the embedder.Provider interface on top of the OpenAI
// embeddings API. Requests are rate limited so that large ingest batches do
// not trip provider-side quotas.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	limiter    *rate.Limiter
}

// Config is the configuration for the OpenAI embedding client.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// Model is the embedding model name. Defaults to text-embedding-3-small.
	Model string

	// BaseURL overrides the API base URL.
	BaseURL string

	// Dimensions is the vector dimension. Defaults to 1536.
	Dimensions int

	// RequestsPerSecond caps the request rate. Defaults to 5.
	RequestsPerSecond float64
}

// NewClient creates a new OpenAI embedding client.
//
// Parameters:
//   - cfg: Configuration containing APIKey, Model, BaseURL, Dimensions
//
// Returns the client instance, or an error if the configuration is invalid.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("embedding generation failed: no data returned from API")
	}

	return toFloat64(resp.Data[0].Embedding), nil
}

// EmbedBatch converts multiple texts to vectors in a single request.
//
// The returned vectors match the order of the input texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding generation failed: unexpected number of results (got %d, expected %d)", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		embeddings[i] = toFloat64(data.Embedding)
	}

	return embeddings, nil
}

// Dimensions returns the configured vector dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client.
func (c *Client) Close() error {
	return nil
}

// toFloat64 converts the API's float32 vector to float64.
func toFloat64(embedding []float32) []float64 {
	out := make([]float64, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}
