package intelligence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const (
	// dominantApproachFloor is the paper count that marks a technique as
	// the dominant approach.
	dominantApproachFloor = 3

	// platformFocusShare is the corpus share above which a platform
	// counts as a focus area.
	platformFocusShare = 0.3
)

// Observation records what one paper contributes to the chain.
type Observation struct {
	Paper      string `json:"paper"`
	KeyFinding string `json:"key_finding"`
	Approach   string `json:"approach"`
	Impact     string `json:"impact"`
}

// ReasoningChain is the structured output of trend analysis: stepwise
// observations, detected patterns and contradictions, coverage gaps, and
// the conclusions they support. Every field is computed deterministically
// from the articles.
type ReasoningChain struct {
	Observations   []Observation `json:"observations"`
	Patterns       []string      `json:"patterns"`
	Contradictions []string      `json:"contradictions"`
	Gaps           []string      `json:"gaps"`
	Conclusions    []string      `json:"conclusions"`
}

// knownPlatforms is the full platform taxonomy used for gap detection.
var knownPlatforms = []string{PlatformSnapdragon, PlatformExynos, PlatformApple}

// AnalyzeTrend runs the reasoning chain over a set of analyzed articles.
//
// Steps: observe each paper, count approach and platform distributions,
// flag techniques reported with both high and low DRAM impact, list
// uncovered platforms and thin technique or model diversity, then draw
// conclusions from the strongest pattern and the impact balance.
func AnalyzeTrend(articles []*storage.Article) *ReasoningChain {
	chain := &ReasoningChain{}
	if len(articles) == 0 {
		return chain
	}

	approaches := make(map[string]int)
	platforms := make(map[string]int)
	modelTypes := make(map[string]int)
	highImpactTechniques := make(map[string]bool)
	lowImpactTechniques := make(map[string]bool)
	highImpact, lowImpact := 0, 0

	for _, a := range articles {
		chain.Observations = append(chain.Observations, Observation{
			Paper:      a.Title,
			KeyFinding: orNA(a.Analysis.MemoryInsight),
			Approach:   orUnknown(a.Analysis.QuantizationMethod),
			Impact:     orUnknown(a.Analysis.DRAMImpact),
		})

		technique := orUnknown(a.Analysis.QuantizationMethod)
		approaches[technique]++
		platforms[orUnknown(a.Analysis.Platform)]++
		modelTypes[orUnknown(a.Analysis.ModelType)]++

		switch a.Analysis.DRAMImpact {
		case ImpactHigh:
			highImpact++
			highImpactTechniques[technique] = true
		case ImpactLow:
			lowImpact++
			lowImpactTechniques[technique] = true
		}
	}

	if technique, count := topCount(approaches); count >= dominantApproachFloor {
		chain.Patterns = append(chain.Patterns,
			fmt.Sprintf("Dominant approach: %s (%d papers)", technique, count))
	}
	for _, platform := range sortedKeys(platforms) {
		count := platforms[platform]
		if platform != PlatformUnknown && float64(count) >= float64(len(articles))*platformFocusShare {
			chain.Patterns = append(chain.Patterns,
				fmt.Sprintf("%s focus in %d/%d papers", platform, count, len(articles)))
		}
	}

	var divergent []string
	for technique := range highImpactTechniques {
		if technique != "Unknown" && lowImpactTechniques[technique] {
			divergent = append(divergent, technique)
		}
	}
	sort.Strings(divergent)
	for _, technique := range divergent {
		chain.Contradictions = append(chain.Contradictions,
			fmt.Sprintf("Technique %s shows varying DRAM impact across papers", technique))
	}

	var missing []string
	for _, platform := range knownPlatforms {
		if platforms[platform] == 0 {
			missing = append(missing, platform)
		}
	}
	if len(missing) > 0 {
		chain.Gaps = append(chain.Gaps,
			fmt.Sprintf("Limited research on: %s", strings.Join(missing, ", ")))
	}
	if distinct(approaches) < 3 && len(articles) >= 5 {
		chain.Gaps = append(chain.Gaps,
			fmt.Sprintf("Low technique diversity: %d techniques across %d papers",
				distinct(approaches), len(articles)))
	}
	if distinct(modelTypes) < 2 && len(articles) >= 5 {
		chain.Gaps = append(chain.Gaps,
			fmt.Sprintf("Narrow model coverage: only %s papers collected", soleKey(modelTypes)))
	}

	if len(chain.Patterns) > 0 {
		chain.Conclusions = append(chain.Conclusions,
			fmt.Sprintf("Research trend: %s", chain.Patterns[0]))
	}
	if highImpact > lowImpact {
		chain.Conclusions = append(chain.Conclusions,
			"Research focusing on high DRAM impact solutions")
	}

	return chain
}

// Render writes the chain as labelled sections for prompting or display.
// Empty sections are omitted.
func (rc *ReasoningChain) Render() string {
	var sb strings.Builder

	section := func(header string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sb.WriteString(header + "\n")
		for _, line := range lines {
			sb.WriteString("- " + line + "\n")
		}
		sb.WriteByte('\n')
	}

	if len(rc.Observations) > 0 {
		sb.WriteString("OBSERVATIONS:\n")
		for _, o := range rc.Observations {
			fmt.Fprintf(&sb, "- %s: %s (approach: %s, impact: %s)\n",
				o.Paper, o.KeyFinding, o.Approach, o.Impact)
		}
		sb.WriteByte('\n')
	}
	section("OBSERVED PATTERNS:", rc.Patterns)
	section("CONTRADICTIONS TO INVESTIGATE:", rc.Contradictions)
	section("COVERAGE GAPS:", rc.Gaps)
	section("CURRENT RESEARCH DIRECTION:", rc.Conclusions)

	return strings.TrimRight(sb.String(), "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// topCount returns the most frequent key, breaking ties alphabetically,
// ignoring the Unknown bucket.
func topCount(counts map[string]int) (string, int) {
	best, bestCount := "", 0
	for _, k := range sortedKeys(counts) {
		if k == "Unknown" {
			continue
		}
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, bestCount
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// distinct counts keys other than the Unknown bucket.
func distinct(m map[string]int) int {
	n := 0
	for k := range m {
		if k != "Unknown" {
			n++
		}
	}
	return n
}

// soleKey returns the single non-Unknown key, or "Unknown".
func soleKey(m map[string]int) string {
	for k := range m {
		if k != "Unknown" {
			return k
		}
	}
	return "Unknown"
}
