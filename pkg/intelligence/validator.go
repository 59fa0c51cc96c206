package intelligence

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/log"
	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/storage"
)

const (
	// defaultConfidenceThreshold gates automatic approval.
	defaultConfidenceThreshold = 0.85

	// reviewScoreFloor forces human review for very high scores, which
	// are the ones most likely to drive decisions.
	reviewScoreFloor = 90
)

// Validator assigns a review status to scored analyses. It implements the
// human-in-the-loop gate: confident mid-range scores flow through
// automatically while low-confidence or headline-grade results queue for
// review.
type Validator struct {
	confidenceThreshold float64
	logger              log.Logger
}

// ValidatorOption configures the validator.
type ValidatorOption func(*Validator)

// WithConfidenceThreshold overrides the auto-approval cutoff.
func WithConfidenceThreshold(threshold float64) ValidatorOption {
	return func(v *Validator) {
		v.confidenceThreshold = threshold
	}
}

// NewValidator creates a validator with the default 0.85 threshold.
func NewValidator(logger log.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = log.Default()
	}
	v := &Validator{
		confidenceThreshold: defaultConfidenceThreshold,
		logger:              logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate computes a confidence for the analysis and sets its review
// status and reason in place. Scores of 90 and above always need review
// regardless of confidence.
func (v *Validator) Validate(analysis *storage.Analysis) {
	analysis.Confidence = v.confidence(analysis)

	switch {
	case analysis.RelevanceScore >= reviewScoreFloor:
		analysis.ReviewStatus = storage.ReviewNeeded
	case analysis.Confidence >= v.confidenceThreshold:
		analysis.ReviewStatus = storage.ReviewAutoApproved
	default:
		analysis.ReviewStatus = storage.ReviewNeeded
	}
	analysis.ReviewReason = v.reviewReason(analysis)

	v.logger.Debugf("validated analysis: score=%d confidence=%.2f status=%s",
		analysis.RelevanceScore, analysis.Confidence, analysis.ReviewStatus)
}

// reviewReason explains why an analysis was queued for review, empty for
// auto-approved ones.
func (v *Validator) reviewReason(a *storage.Analysis) string {
	if a.ReviewStatus != storage.ReviewNeeded {
		return ""
	}
	var reasons []string
	if a.Confidence < v.confidenceThreshold {
		reasons = append(reasons, fmt.Sprintf("Low confidence (%.0f%%)", a.Confidence*100))
	}
	if a.RelevanceScore >= reviewScoreFloor {
		reasons = append(reasons, fmt.Sprintf("High score (%d) requires verification", a.RelevanceScore))
	}
	if len(reasons) == 0 {
		return "Manual review requested"
	}
	return strings.Join(reasons, " + ")
}

// confidence estimates how trustworthy the analysis is from its internal
// consistency. Complete, specific analyses score high; analyses full of
// Unknown fields score low.
func (v *Validator) confidence(a *storage.Analysis) float64 {
	confidence := 1.0

	if a.Platform == PlatformUnknown {
		confidence -= 0.15
	}
	if a.ModelType == "Unknown" {
		confidence -= 0.10
	}
	if a.DRAMImpact == ImpactUnknown {
		confidence -= 0.10
	}
	if a.MemoryInsight == "" {
		confidence -= 0.20
	} else {
		// Specific insights quote numbers and units; vague ones don't.
		switch {
		case hasNumerals(a.MemoryInsight) && hasMemoryUnits(a.MemoryInsight):
		case hasNumerals(a.MemoryInsight):
			confidence -= 0.05
		default:
			confidence -= 0.15
		}
	}
	if a.EngineeringTakeaway == "" {
		confidence -= 0.15
	}

	// A high score with no named technique is suspicious.
	if a.RelevanceScore >= 70 && a.QuantizationMethod == "" && a.KeyOptimization == "" {
		confidence -= 0.20
	}

	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// memoryUnits are the measurement suffixes that mark an insight as
// quantitative.
var memoryUnits = []string{"gb", "mb", "ms", "tops", "%"}

func hasNumerals(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasMemoryUnits(s string) bool {
	lower := strings.ToLower(s)
	for _, unit := range memoryUnits {
		if strings.Contains(lower, unit) {
			return true
		}
	}
	return false
}
