package grading

import (
	"context"
	"strings"

	"github.com/noah-isme/gradebot-go/pkg/ai"
)

// Runner issues the repeated prompt/response round trips for one provider.
type Runner struct {
	Parser             Parser
	NumRepeats         int
	RepeatEachProvider bool
	Method             Method
	BiasAdjustments    map[string]float64
	PromptTemplate     string
}

// Repeats is NumRepeats when RepeatEachProvider is set, otherwise 1.
func (r Runner) Repeats() int {
	if r.RepeatEachProvider && r.NumRepeats > 1 {
		return r.NumRepeats
	}
	return 1
}

// Bias returns the additive offset for a model. It only applies to the
// bias_adjusted method. Model names match exactly first, then case-insensitively.
func (r Runner) Bias(info ai.ModelInfo) float64 {
	if r.Method != BiasAdjusted || len(r.BiasAdjustments) == 0 {
		return 0
	}
	if bias, ok := r.BiasAdjustments[info.ModelName]; ok {
		return bias
	}
	for model, bias := range r.BiasAdjustments {
		if strings.EqualFold(model, info.ModelName) {
			return bias
		}
	}
	return 0
}

// Run evaluates submission Repeats() times against provider, in order. The
// first provider error aborts the run.
func (r Runner) Run(ctx context.Context, provider ai.Provider, submission string, rubric Rubric) ([]EvaluationResponse, error) {
	prompt := BuildPrompt(rubric, submission, r.PromptTemplate)
	repeats := r.Repeats()

	responses := make([]EvaluationResponse, 0, repeats)
	for i := 1; i <= repeats; i++ {
		resp, err := r.Evaluate(ctx, provider, prompt, i)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// Evaluate performs a single round trip with an already built prompt.
func (r Runner) Evaluate(ctx context.Context, provider ai.Provider, prompt string, iteration int) (EvaluationResponse, error) {
	reply, err := provider.GetResponse(ctx, prompt)
	if err != nil {
		return EvaluationResponse{}, err
	}

	parsed := r.Parser.Parse(reply)
	info := provider.ModelInfo()
	raw := parsed.Total()
	bias := r.Bias(info)

	criteria := parsed.Criteria
	if criteria == nil {
		criteria = []CriterionResult{}
	}

	return EvaluationResponse{
		Criteria:        criteria,
		OverallFeedback: parsed.Overall,
		ProviderInfo:    info,
		Iteration:       iteration,
		RawTotal:        raw,
		Bias:            bias,
		Total:           raw + bias,
		Parsed:          !parsed.Empty(),
	}, nil
}
