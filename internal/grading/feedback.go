package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/gradebot-go/pkg/ai"
)

const summaryPrompt = `Summarize this feedback into one concise paragraph as if you are talking directly to the student, so use "you" instead of "the student": %s`

// ConcatFeedback joins non-empty feedback strings with a single space, in order.
func ConcatFeedback(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}

// Summarizer rewrites concatenated feedback into one second-person paragraph
// using a single provider.
type Summarizer struct {
	provider ai.Provider
}

// NewSummarizer picks the highest-weight provider. Ties go to the first one.
func NewSummarizer(providers []ai.Provider) (*Summarizer, error) {
	best := ai.Heaviest(providers)
	if best == nil {
		return nil, ErrNoProviders
	}
	return &Summarizer{provider: best}, nil
}

// Provider returns the provider used for summaries.
func (s *Summarizer) Provider() ai.Provider {
	return s.provider
}

// Summarize returns the rewritten text. Empty feedback is returned unchanged
// without calling the provider.
func (s *Summarizer) Summarize(ctx context.Context, feedback string) (string, error) {
	if strings.TrimSpace(feedback) == "" {
		return feedback, nil
	}
	summary, err := s.provider.GenerateText(ctx, fmt.Sprintf(summaryPrompt, feedback), ai.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("summarize feedback: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// SummarizeAll replaces every criterion feedback and the overall feedback of
// result with a summary.
func (s *Summarizer) SummarizeAll(ctx context.Context, result AggregatedResult) (AggregatedResult, error) {
	criteria := make([]AggregatedCriterion, len(result.Criteria))
	copy(criteria, result.Criteria)
	for i := range criteria {
		summary, err := s.Summarize(ctx, criteria[i].Feedback)
		if err != nil {
			return AggregatedResult{}, err
		}
		criteria[i].Feedback = summary
	}

	overall, err := s.Summarize(ctx, result.OverallFeedback)
	if err != nil {
		return AggregatedResult{}, err
	}

	result.Criteria = criteria
	result.OverallFeedback = overall
	return result, nil
}
