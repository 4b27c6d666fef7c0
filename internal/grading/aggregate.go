package grading

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Method selects how grade observations are combined.
type Method string

const (
	SimpleAverage   Method = "simple_average"
	WeightedAverage Method = "weighted_average"
	Median          Method = "median"
	BiasAdjusted    Method = "bias_adjusted"
)

// ErrUnsupportedMethod is returned for any aggregation method not listed above.
var ErrUnsupportedMethod = errors.New("unsupported aggregation method")

// ParseMethod validates a configured method name. Empty selects SimpleAverage.
func ParseMethod(value string) (Method, error) {
	method := Method(strings.TrimSpace(value))
	switch method {
	case "":
		return SimpleAverage, nil
	case SimpleAverage, WeightedAverage, Median, BiasAdjusted:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, value)
	}
}

// Observation is one grade together with the provider that produced it and
// that provider's weight.
type Observation struct {
	Provider string
	Weight   float64
	Grade    float64
}

func (o Observation) effectiveWeight() float64 {
	if o.Weight <= 0 {
		return 1.0
	}
	return o.Weight
}

// AggregateGrades combines observations with method. No observations yields 0.
// The result is never rounded.
func AggregateGrades(method Method, observations []Observation) (float64, error) {
	switch method {
	case SimpleAverage, BiasAdjusted, WeightedAverage, Median:
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	if len(observations) == 0 {
		return 0, nil
	}

	switch method {
	case WeightedAverage:
		var weighted, weights float64
		for _, obs := range observations {
			w := obs.effectiveWeight()
			weighted += obs.Grade * w
			weights += w
		}
		return weighted / weights, nil
	case Median:
		grades := make([]float64, len(observations))
		for i, obs := range observations {
			grades[i] = obs.Grade
		}
		sort.Float64s(grades)
		mid := len(grades) / 2
		if len(grades)%2 == 1 {
			return grades[mid], nil
		}
		return (grades[mid-1] + grades[mid]) / 2, nil
	default:
		sum := 0.0
		for _, obs := range observations {
			sum += obs.Grade
		}
		return sum / float64(len(observations)), nil
	}
}

// fromResponse lifts a single response into an aggregate so that repeats and
// providers fold through the same code path. A response without criteria
// carries no bias offset.
func fromResponse(resp EvaluationResponse) AggregatedResult {
	criteria := make([]AggregatedCriterion, 0, len(resp.Criteria))
	for _, criterion := range resp.Criteria {
		criteria = append(criteria, AggregatedCriterion{
			Name:     criterion.Name,
			Feedback: criterion.Feedback,
			Grade:    criterion.Grade,
		})
	}
	bias := 0.0
	if len(criteria) > 0 {
		bias = resp.Bias
	}
	return AggregatedResult{
		Criteria:        criteria,
		OverallFeedback: resp.OverallFeedback,
		ProviderInfo:    []string{resp.ProviderInfo.String()},
		Iterations:      1,
		BiasOffset:      bias,
		provider:        resp.ProviderInfo.String(),
		weight:          resp.ProviderInfo.EffectiveWeight(),
	}
}

// FoldResponses folds the repeats of one provider into a single aggregate.
// A single response is converted without aggregation.
func FoldResponses(method Method, responses []EvaluationResponse) (AggregatedResult, error) {
	parts := make([]AggregatedResult, 0, len(responses))
	for _, resp := range responses {
		parts = append(parts, fromResponse(resp))
	}
	return Fold(method, parts)
}

// Fold combines aggregates. Criterion grades and bias offsets are aggregated
// with method, feedback is concatenated in input order, and criteria keep the
// order in which they were first seen. Only parts with criteria contribute a
// bias offset. A single input is returned unchanged.
func Fold(method Method, parts []AggregatedResult) (AggregatedResult, error) {
	if _, err := AggregateGrades(method, nil); err != nil {
		return AggregatedResult{}, err
	}

	switch len(parts) {
	case 0:
		return AggregatedResult{Criteria: []AggregatedCriterion{}, ProviderInfo: []string{}}, nil
	case 1:
		return parts[0], nil
	}

	type bucket struct {
		feedback     []string
		observations []Observation
	}

	var (
		order    []string
		buckets  = make(map[string]*bucket)
		overall  []string
		infos    []string
		seenInfo = make(map[string]struct{})
		biases   = make([]Observation, 0, len(parts))
		result   AggregatedResult
	)

	for _, part := range parts {
		for _, criterion := range part.Criteria {
			b, ok := buckets[criterion.Name]
			if !ok {
				b = &bucket{}
				buckets[criterion.Name] = b
				order = append(order, criterion.Name)
			}
			b.feedback = append(b.feedback, criterion.Feedback)
			b.observations = append(b.observations, Observation{
				Provider: part.provider,
				Weight:   part.weight,
				Grade:    criterion.Grade,
			})
		}

		overall = append(overall, part.OverallFeedback)
		for _, info := range part.ProviderInfo {
			if _, ok := seenInfo[info]; ok {
				continue
			}
			seenInfo[info] = struct{}{}
			infos = append(infos, info)
		}
		if len(part.Criteria) > 0 {
			biases = append(biases, Observation{Provider: part.provider, Weight: part.weight, Grade: part.BiasOffset})
		}
		result.Iterations += part.Iterations
	}

	result.Criteria = make([]AggregatedCriterion, 0, len(order))
	for _, name := range order {
		b := buckets[name]
		grade, err := AggregateGrades(method, b.observations)
		if err != nil {
			return AggregatedResult{}, err
		}
		result.Criteria = append(result.Criteria, AggregatedCriterion{
			Name:     name,
			Feedback: ConcatFeedback(b.feedback),
			Grade:    grade,
		})
	}

	bias, err := AggregateGrades(method, biases)
	if err != nil {
		return AggregatedResult{}, err
	}

	result.OverallFeedback = ConcatFeedback(overall)
	result.ProviderInfo = infos
	result.BiasOffset = bias
	result.provider = parts[0].provider
	result.weight = parts[0].weight
	return result, nil
}
