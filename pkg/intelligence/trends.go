package intelligence

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/graph"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const trendsSystemPrompt = `You are a research analyst tracking LLM memory optimization for on-device inference. Reason step by step before concluding.`

const trendsPromptTemplate = `Analyze the following recently collected research articles and identify the dominant trends.

%s

A first-pass structured analysis of the same articles:

%s

Think through this step by step:
1. Group the articles by technique family and platform.
2. Note which techniques are gaining attention and which are fading.
3. Check the detected patterns and contradictions above against the articles.

Then write a concise trends report with:
- The top 3-5 trends, each with the supporting articles cited by title
- Emerging techniques worth watching
- One paragraph on what this implies for mobile DRAM sizing`

const gapsPromptTemplate = `Review the following collected research articles and identify the gaps: topics the corpus should cover but does not.

%s

A first-pass structured analysis of the same articles:

%s

Think through this step by step:
1. Map the covered space: techniques, platforms, model families.
2. Compare against the full landscape of LLM memory optimization for on-device inference.
3. List what is missing or underrepresented.

Then write a concise gap analysis with:
- The top 3-5 coverage gaps, each with a one-line reason it matters
- Suggested search queries to fill each gap`

// TrendAnalyzer reports on patterns and blind spots in the collected
// corpus. It first builds a deterministic reasoning chain over the
// articles, then hands both the digest and the chain to the LLM for the
// narrative report.
type TrendAnalyzer struct {
	provider llm.Provider
	kg       *graph.Graph
	logger   log.Logger
}

// TrendOption configures a TrendAnalyzer.
type TrendOption func(*TrendAnalyzer)

// WithGraph attaches a knowledge graph; its entity and relation counts
// are appended to the structured analysis fed to the LLM.
func WithGraph(g *graph.Graph) TrendOption {
	return func(t *TrendAnalyzer) {
		t.kg = g
	}
}

// NewTrendAnalyzer creates a trend analyzer.
func NewTrendAnalyzer(provider llm.Provider, logger log.Logger, opts ...TrendOption) *TrendAnalyzer {
	if logger == nil {
		logger = log.Default()
	}
	t := &TrendAnalyzer{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trends summarizes the dominant research directions across the given
// articles.
func (t *TrendAnalyzer) Trends(ctx context.Context, articles []*storage.Article) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("trend analysis: no articles to analyze")
	}

	prompt := fmt.Sprintf(trendsPromptTemplate, digest(articles), t.renderChain(articles))
	report, err := t.provider.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: trendsSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.4), llm.WithMaxTokens(2000))
	if err != nil {
		return "", fmt.Errorf("trend analysis: %w", err)
	}

	t.logger.Infof("trend analysis over %d articles complete", len(articles))
	return strings.TrimSpace(report), nil
}

// Gaps reports coverage holes in the corpus relative to the research
// focus.
func (t *TrendAnalyzer) Gaps(ctx context.Context, articles []*storage.Article) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("gap analysis: no articles to analyze")
	}

	prompt := fmt.Sprintf(gapsPromptTemplate, digest(articles), t.renderChain(articles))
	report, err := t.provider.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: trendsSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.4), llm.WithMaxTokens(2000))
	if err != nil {
		return "", fmt.Errorf("gap analysis: %w", err)
	}

	t.logger.Infof("gap analysis over %d articles complete", len(articles))
	return strings.TrimSpace(report), nil
}

// renderChain runs the deterministic analysis and appends graph counts
// when a knowledge graph is attached.
func (t *TrendAnalyzer) renderChain(articles []*storage.Article) string {
	rendered := AnalyzeTrend(articles).Render()
	if t.kg != nil {
		stats := t.kg.Stats()
		rendered += fmt.Sprintf("\n\nKNOWLEDGE GRAPH: %d entities, %d relations",
			stats.Entities, stats.Relations)
	}
	return rendered
}

// digest renders articles as a compact numbered list for prompting.
func digest(articles []*storage.Article) string {
	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. [%s] %s (platform: %s, score: %d)\n",
			i+1, a.Source, a.Title, a.Analysis.Platform, a.Analysis.RelevanceScore)
		if a.Analysis.MemoryInsight != "" {
			fmt.Fprintf(&sb, "   Insight: %s\n", a.Analysis.MemoryInsight)
		}
	}
	return sb.String()
}
