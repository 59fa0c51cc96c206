// Package intelligence provides the LLM-backed analysis layer of the
// pipeline: article scoring, concept extraction, duplicate detection,
// review gating, and trend analysis over the stored corpus.
package intelligence

import (
	"strings"
)

// Platform labels assigned by the scorer.
const (
	PlatformSnapdragon = "Snapdragon"
	PlatformExynos     = "Exynos"
	PlatformApple      = "Apple"
	PlatformOther      = "Other"
	PlatformUnknown    = "Unknown"
)

// DRAM impact labels.
const (
	ImpactHigh    = "High"
	ImpactMedium  = "Medium"
	ImpactLow     = "Low"
	ImpactUnknown = "Unknown"
)

// stripCodeFences removes a surrounding markdown code fence from LLM
// output, tolerating a language tag after the opening backticks.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		// Drop a language tag like "json" on the fence line.
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON pulls the first top-level JSON object out of text that may
// carry prose before or after it.
func extractJSON(s string) string {
	s = stripCodeFences(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
