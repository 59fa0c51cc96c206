// Package openai provides an OpenAI-compatible LLM client.
//
// Because BaseURL is configurable, the same client also talks to Groq and
// other OpenAI-compatible inference endpoints.
package openai

import (
	"context"
	"errors"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI LLM client.
// It implements the llm.Provider interface on top of the OpenAI chat API.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI LLM client.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// Model is the model name. Defaults to "gpt-4o-mini".
	Model string

	// BaseURL overrides the API base URL. Use this to point at Groq or any
	// other OpenAI-compatible endpoint.
	BaseURL string
}

// NewClient creates a new OpenAI LLM client.
//
// Parameters:
//   - cfg: Configuration containing APIKey, Model, and BaseURL
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

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate generates text from a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{
		{Role: "user", Content: prompt},
	}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text using message history.
//
// Supports multi-turn conversations and accepts a complete message history
// (system, user, and assistant messages). When the JSONResponse option is
// set, the request asks the API for a JSON object response.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}
	if options.JSONResponse {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("generation failed: no choices returned from API")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client. The underlying HTTP client needs no teardown.
func (c *Client) Close() error {
	return nil
}
