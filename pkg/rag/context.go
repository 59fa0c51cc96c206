package rag

import (
	"fmt"
	"strings"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

// defaultContextBudget caps the generated context length in characters.
const defaultContextBudget = 8000

// BuildContext renders a retrieval result as a context block for a
// generation prompt. Primary articles come first with their analysis
// fields; graph-related articles follow under a separate heading.
//
// maxChars of zero or less uses the default budget. Articles that would
// overflow the budget are dropped whole rather than truncated mid-entry.
func BuildContext(result *Result, maxChars int) string {
	if result == nil || len(result.Articles) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = defaultContextBudget
	}

	var sb strings.Builder
	sb.WriteString("Retrieved research context:\n\n")

	for i, a := range result.Articles {
		entry := formatArticle(i+1, a)
		if sb.Len()+len(entry) > maxChars {
			break
		}
		sb.WriteString(entry)
	}

	if len(result.Related) > 0 {
		header := "Related work from the knowledge graph:\n"
		if sb.Len()+len(header) <= maxChars {
			sb.WriteString(header)
			for _, a := range result.Related {
				line := fmt.Sprintf("- %s (%s)\n", a.Title, a.Source)
				if sb.Len()+len(line) > maxChars {
					break
				}
				sb.WriteString(line)
			}
			sb.WriteByte('\n')
		}
	}

	if !result.Concepts.Empty() {
		appendSection(&sb, "Related techniques in the knowledge graph:", conceptLines(result.Concepts), maxChars)
	}
	if result.Trend != nil {
		appendSection(&sb, "Observed patterns:", result.Trend.Patterns, maxChars)
		appendSection(&sb, "Contradictions to investigate:", result.Trend.Contradictions, maxChars)
		appendSection(&sb, "Current research direction:", result.Trend.Conclusions, maxChars)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// appendSection writes a header and its bullet lines if the whole
// section fits in the remaining budget.
func appendSection(sb *strings.Builder, header string, lines []string, maxChars int) {
	if len(lines) == 0 {
		return
	}
	size := len(header) + 2
	for _, line := range lines {
		size += len(line) + 3
	}
	if sb.Len()+size > maxChars {
		return
	}
	sb.WriteString(header + "\n")
	for _, line := range lines {
		sb.WriteString("- " + line + "\n")
	}
	sb.WriteByte('\n')
}

func conceptLines(c *RelatedConcepts) []string {
	var lines []string
	if len(c.Techniques) > 0 {
		lines = append(lines, "Techniques: "+strings.Join(c.Techniques, ", "))
	}
	if len(c.Platforms) > 0 {
		lines = append(lines, "Platforms: "+strings.Join(c.Platforms, ", "))
	}
	if len(c.Companies) > 0 {
		lines = append(lines, "Companies: "+strings.Join(c.Companies, ", "))
	}
	return lines
}

func formatArticle(n int, a *storage.Article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s\n", n, a.Title)
	fmt.Fprintf(&sb, "Source: %s", a.Source)
	if !a.Published.IsZero() {
		fmt.Fprintf(&sb, " | Published: %s", a.Published.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, " | Relevance: %d/100\n", a.Analysis.RelevanceScore)

	if a.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", a.Summary)
	}
	if a.Analysis.MemoryInsight != "" {
		fmt.Fprintf(&sb, "Memory insight: %s\n", a.Analysis.MemoryInsight)
	}
	if a.Analysis.EngineeringTakeaway != "" {
		fmt.Fprintf(&sb, "Takeaway: %s\n", a.Analysis.EngineeringTakeaway)
	}
	sb.WriteByte('\n')
	return sb.String()
}
