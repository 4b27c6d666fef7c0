package grading

import (
	"math"

	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

// Result states. Unparseable means every provider answered but nothing in the
// replies could be read, which is different from a provider failure (an error).
const (
	StatusGraded      = "graded"
	StatusUnparseable = "unparseable"
)

// EvaluationResponse is one (provider, repeat) round trip.
type EvaluationResponse struct {
	Criteria        []CriterionResult `json:"criteria"`
	OverallFeedback string            `json:"overall_feedback"`
	ProviderInfo    ai.ModelInfo      `json:"provider_info"`
	Iteration       int               `json:"iteration"`
	RawTotal        float64           `json:"raw_total"`
	Bias            float64           `json:"bias"`
	Total           float64           `json:"total"`
	Parsed          bool              `json:"parsed"`
}

// AggregatedCriterion is a criterion after folding.
type AggregatedCriterion struct {
	Name     string  `json:"name"`
	Feedback string  `json:"feedback"`
	Grade    float64 `json:"grade"`
}

// AggregatedResult is the fold of several responses or several aggregates.
type AggregatedResult struct {
	Criteria        []AggregatedCriterion `json:"criteria"`
	OverallFeedback string                `json:"overall_feedback"`
	ProviderInfo    []string              `json:"provider_info"`
	Iterations      int                   `json:"iteration"`
	BiasOffset      float64               `json:"bias_offset"`

	// provider and weight identify the source when this aggregate is folded
	// again across providers.
	provider string
	weight   float64
}

// Total is the sum of criterion grades plus the aggregated bias offset.
func (a AggregatedResult) Total() float64 {
	total := a.BiasOffset
	for _, criterion := range a.Criteria {
		total += criterion.Grade
	}
	return total
}

// GradingResult is the terminal artifact of grading one submission.
type GradingResult struct {
	SubmissionID        string                 `json:"submission_id"`
	WordCount           int                    `json:"word_count"`
	Readability         float64                `json:"readability"`
	Sentiment           textanalysis.Sentiment `json:"sentiment"`
	Grade               float64                `json:"grade"`
	OutOf               int                    `json:"out_of"`
	Status              string                 `json:"status"`
	Method              Method                 `json:"method"`
	AggregatedResponse  AggregatedResult       `json:"aggregated_response"`
	IndividualResponses []EvaluationResponse   `json:"individual_responses"`
}

// ScoreOutcome is the whole-response grading result.
type ScoreOutcome struct {
	SubmissionID string                 `json:"submission_id"`
	WordCount    int                    `json:"word_count"`
	Readability  float64                `json:"readability"`
	Sentiment    textanalysis.Sentiment `json:"sentiment"`
	Grade        *float64               `json:"grade"`
	Feedback     *string                `json:"feedback"`
	Status       string                 `json:"status"`
	ProviderInfo string                 `json:"provider_info"`
}

// RoundHalf rounds to the nearest half point.
func RoundHalf(grade float64) float64 {
	if grade == 0 || math.IsNaN(grade) {
		return 0
	}
	return math.Round(grade*2) / 2
}
