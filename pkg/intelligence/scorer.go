package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/llm"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const scorerSystemPrompt = `You are a senior mobile memory systems engineer evaluating research articles for a team working on LLM memory optimization for on-device inference.`

const scorerPromptTemplate = `Rate this article's relevance to LLM memory optimization on mobile/edge devices.

Scoring rubric:
- 90-100: Directly about LLM memory optimization for on-device/mobile inference (quantization, KV cache management, memory bandwidth, DRAM usage)
- 70-89: On-device LLM inference with substantial memory discussion
- 50-69: Mobile AI or LLM efficiency work with some memory relevance
- 30-49: General LLM optimization, limited mobile/memory angle
- 0-29: Unrelated to LLM memory or mobile inference

Article:
Title: %s
Source: %s
Summary: %s
%s
Respond with ONLY a JSON object:
{
  "relevance_score": <0-100>,
  "platform": "<Snapdragon|Exynos|Apple|Other|Unknown>",
  "model_type": "<model family, e.g. LLM, VLM, diffusion, Unknown>",
  "memory_insight": "<one sentence on the memory technique or finding>",
  "dram_impact": "<High|Medium|Low|Unknown>",
  "engineering_takeaway": "<one actionable sentence for the team>",
  "quantization_method": "<method name or empty string>",
  "key_optimization": "<the central optimization or empty string>"
}`

// scoreResponse mirrors the JSON schema the scorer asks the model for.
type scoreResponse struct {
	RelevanceScore      int    `json:"relevance_score"`
	Platform            string `json:"platform"`
	ModelType           string `json:"model_type"`
	MemoryInsight       string `json:"memory_insight"`
	DRAMImpact          string `json:"dram_impact"`
	EngineeringTakeaway string `json:"engineering_takeaway"`
	QuantizationMethod  string `json:"quantization_method"`
	KeyOptimization     string `json:"key_optimization"`
}

// Scorer rates articles against the team's research focus using an LLM.
type Scorer struct {
	provider llm.Provider
	logger   log.Logger
}

// NewScorer creates an article scorer.
func NewScorer(provider llm.Provider, logger log.Logger) *Scorer {
	if logger == nil {
		logger = log.Default()
	}
	return &Scorer{provider: provider, logger: logger}
}

// Score analyzes one article. The optional recentContext string carries
// summaries of recently stored articles so the model can judge novelty
// against what the corpus already holds.
//
// Malformed model output degrades to a zero-score Unknown analysis rather
// than failing ingestion.
func (s *Scorer) Score(ctx context.Context, article *storage.Article, recentContext string) (*storage.Analysis, error) {
	contextBlock := ""
	if recentContext != "" {
		contextBlock = fmt.Sprintf("\nRecently collected articles for context (judge novelty against these):\n%s\n", recentContext)
	}

	prompt := fmt.Sprintf(scorerPromptTemplate,
		article.Title, article.Source, truncate(article.Summary, 2000), contextBlock)

	response, err := s.provider.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: scorerSystemPrompt},
		{Role: "user", Content: prompt},
	}, llm.WithTemperature(0.2), llm.WithJSONResponse())
	if err != nil {
		return nil, fmt.Errorf("score article: %w", err)
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		s.logger.Warnf("scorer returned unparseable output for %q: %v", article.Title, err)
		return defaultAnalysis(), nil
	}

	analysis := &storage.Analysis{
		RelevanceScore:      clampScore(parsed.RelevanceScore),
		Platform:            normalizePlatform(parsed.Platform),
		ModelType:           orUnknown(parsed.ModelType),
		MemoryInsight:       parsed.MemoryInsight,
		DRAMImpact:          normalizeImpact(parsed.DRAMImpact),
		EngineeringTakeaway: parsed.EngineeringTakeaway,
		QuantizationMethod:  parsed.QuantizationMethod,
		KeyOptimization:     parsed.KeyOptimization,
		ProcessedAt:         time.Now(),
	}

	s.logger.Debugf("scored %q: relevance=%d platform=%s",
		article.Title, analysis.RelevanceScore, analysis.Platform)
	return analysis, nil
}

func defaultAnalysis() *storage.Analysis {
	return &storage.Analysis{
		Platform:    PlatformUnknown,
		ModelType:   "Unknown",
		DRAMImpact:  ImpactUnknown,
		ProcessedAt: time.Now(),
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func normalizePlatform(platform string) string {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "snapdragon", "qualcomm":
		return PlatformSnapdragon
	case "exynos", "samsung":
		return PlatformExynos
	case "apple", "ios", "m1", "m2", "m3", "m4":
		return PlatformApple
	case "", "unknown":
		return PlatformUnknown
	default:
		return PlatformOther
	}
}

func normalizeImpact(impact string) string {
	switch strings.ToLower(strings.TrimSpace(impact)) {
	case "high":
		return ImpactHigh
	case "medium", "moderate":
		return ImpactMedium
	case "low":
		return ImpactLow
	default:
		return ImpactUnknown
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
