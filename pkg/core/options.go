package core

import (
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/embedder"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// Option overrides a component the client would otherwise construct from
// configuration.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStore supplies a pre-built article store.
func WithStore(store storage.ArticleStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithLLMProvider supplies a pre-built LLM provider.
func WithLLMProvider(provider llm.Provider) Option {
	return func(c *Client) {
		c.llmClient = provider
	}
}

// WithEmbedderProvider supplies a pre-built embedding provider.
func WithEmbedderProvider(provider embedder.Provider) Option {
	return func(c *Client) {
		c.embClient = provider
	}
}
