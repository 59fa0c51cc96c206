package intelligence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const extractorPromptTemplate = `Extract the named concepts from this research article summary.

Title: %s
Summary: %s

Concept types:
- technique: a named method (e.g. "GPTQ", "speculative decoding", "KV cache paging")
- metric: a measured quantity (e.g. "tokens/sec", "peak DRAM usage")
- company: an organization building or shipping the work
- author: a named researcher

Respond with ONLY a JSON object:
{"concepts": [{"name": "<concept name>", "type": "<technique|metric|company|author>"}]}

Return an empty list if the summary names nothing concrete. Do not invent concepts.`

// Concept is a named entity extracted from article text.
type Concept struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Extractor pulls named concepts out of article text with an LLM. The
// concepts supplement the structured analysis fields when populating the
// knowledge graph.
type Extractor struct {
	provider llm.Provider
	logger   log.Logger
}

// NewExtractor creates a concept extractor.
func NewExtractor(provider llm.Provider, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{provider: provider, logger: logger}
}

// Extract returns the concepts named in the article's title and summary.
// Unparseable model output yields an empty list, not an error.
func (e *Extractor) Extract(ctx context.Context, article *storage.Article) ([]Concept, error) {
	prompt := fmt.Sprintf(extractorPromptTemplate,
		article.Title, truncate(article.Summary, 2000))

	response, err := e.provider.Generate(ctx, prompt,
		llm.WithTemperature(0.0), llm.WithJSONResponse())
	if err != nil {
		return nil, fmt.Errorf("extract concepts: %w", err)
	}

	var parsed struct {
		Concepts []Concept `json:"concepts"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		e.logger.Warnf("extractor returned unparseable output for %q: %v", article.Title, err)
		return nil, nil
	}

	concepts := parsed.Concepts[:0]
	for _, c := range parsed.Concepts {
		if c.Name == "" {
			continue
		}
		switch c.Type {
		case "technique", "metric", "company", "author":
			concepts = append(concepts, c)
		}
	}
	return concepts, nil
}
