package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
)

const expandPromptTemplate = `Rewrite this search query into %d alternative phrasings that would surface relevant research articles a literal match might miss. Use synonyms and related technical terms.

Query: %s

Respond with ONLY a JSON object:
{"queries": ["<rewrite 1>", "<rewrite 2>", ...]}`

// QueryExpander rewrites a search query into variants for multi-query
// retrieval.
type QueryExpander struct {
	provider llm.Provider
	logger   log.Logger
}

// NewQueryExpander creates a query expander.
func NewQueryExpander(provider llm.Provider, logger log.Logger) *QueryExpander {
	if logger == nil {
		logger = log.Default()
	}
	return &QueryExpander{provider: provider, logger: logger}
}

// Expand returns up to n query variants, always starting with the
// original. Expansion failures degrade to the original query alone so
// retrieval never blocks on the LLM.
func (e *QueryExpander) Expand(ctx context.Context, query string, n int) []string {
	if n <= 0 {
		n = 2
	}

	queries := []string{query}

	response, err := e.provider.Generate(ctx,
		fmt.Sprintf(expandPromptTemplate, n, query),
		llm.WithTemperature(0.5), llm.WithJSONResponse())
	if err != nil {
		e.logger.Warnf("query expansion failed, using original query: %v", err)
		return queries
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	cleaned := response
	if start := strings.IndexByte(cleaned, '{'); start >= 0 {
		if end := strings.LastIndexByte(cleaned, '}'); end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		e.logger.Warnf("query expansion returned unparseable output: %v", err)
		return queries
	}

	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q == "" || strings.EqualFold(q, query) {
			continue
		}
		queries = append(queries, q)
		if len(queries) > n {
			break
		}
	}
	return queries
}
