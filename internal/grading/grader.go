package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

// ErrNoProviders is returned when grading is requested without any LLM provider.
var ErrNoProviders = errors.New("no llm providers configured")

// TextAnalyzer supplies submission-level text metrics.
type TextAnalyzer interface {
	AnalyzeSentiment(text string) textanalysis.Sentiment
	AnalyzeStyle(text string) textanalysis.Style
}

// Options configures a grading run.
type Options struct {
	NumRepeats         int
	RepeatEachProvider bool
	Method             Method
	BiasAdjustments    map[string]float64
	PromptTemplate     string
	SummarizeFeedback  bool
	// Concurrency bounds in-flight provider calls. 1 or less is strictly sequential.
	Concurrency   int
	OverallPolicy OverallPolicy
}

// Grader orchestrates prompt building, provider calls, parsing and aggregation
// for one submission at a time. It holds no state between calls.
type Grader struct {
	opts     Options
	runner   Runner
	analyzer TextAnalyzer
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewGrader validates opts. An unknown aggregation method fails here, before
// any provider is called.
func NewGrader(opts Options, analyzer TextAnalyzer, logger zerolog.Logger) (*Grader, error) {
	method, err := ParseMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	opts.Method = method

	policy, err := ParseOverallPolicy(string(opts.OverallPolicy))
	if err != nil {
		return nil, err
	}
	opts.OverallPolicy = policy

	if opts.NumRepeats < 1 {
		opts.NumRepeats = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if analyzer == nil {
		analyzer = textanalysis.NewAnalyzer()
	}

	return &Grader{
		opts: opts,
		runner: Runner{
			Parser:             Parser{Policy: opts.OverallPolicy},
			NumRepeats:         opts.NumRepeats,
			RepeatEachProvider: opts.RepeatEachProvider,
			Method:             opts.Method,
			BiasAdjustments:    opts.BiasAdjustments,
			PromptTemplate:     opts.PromptTemplate,
		},
		analyzer: analyzer,
		tracer:   otel.Tracer("github.com/noah-isme/gradebot-go/internal/grading"),
		logger:   logger.With().Str("component", "grader").Logger(),
	}, nil
}

// Options returns the normalised options.
func (g *Grader) Options() Options {
	return g.opts
}

// GradeSubmission grades text against rubric with every provider, folds
// repeats per provider and then across providers, and attaches text metrics.
// Provider errors abort the run and are returned unchanged.
func (g *Grader) GradeSubmission(ctx context.Context, submissionID, text string, rubric Rubric, providers []ai.Provider) (*GradingResult, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	ctx, span := g.tracer.Start(ctx, "grading.grade_submission", trace.WithAttributes(
		attribute.String("grading.submission_id", submissionID),
		attribute.String("grading.method", string(g.opts.Method)),
		attribute.Int("grading.providers", len(providers)),
		attribute.Int("grading.repeats", g.runner.Repeats()),
	))
	defer span.End()

	start := time.Now()
	perProvider, err := g.evaluate(ctx, text, rubric, providers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error().Err(err).Str("submission_id", submissionID).Msg("grading aborted")
		return nil, err
	}

	aggregated, err := g.fold(perProvider)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if g.opts.SummarizeFeedback {
		summarizer, err := NewSummarizer(providers)
		if err == nil {
			aggregated, err = summarizer.SummarizeAll(ctx, aggregated)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	individual := make([]EvaluationResponse, 0, len(providers)*g.runner.Repeats())
	parsed := false
	for _, responses := range perProvider {
		for _, resp := range responses {
			parsed = parsed || resp.Parsed
			individual = append(individual, resp)
		}
	}

	status := StatusGraded
	grade := RoundHalf(aggregated.Total())
	if !parsed {
		status = StatusUnparseable
		grade = 0
	}

	style := g.analyzer.AnalyzeStyle(text)
	result := &GradingResult{
		SubmissionID:        submissionID,
		WordCount:           style.WordCount,
		Readability:         style.Readability,
		Sentiment:           g.analyzer.AnalyzeSentiment(text),
		Grade:               grade,
		OutOf:               rubric.Total(),
		Status:              status,
		Method:              g.opts.Method,
		AggregatedResponse:  aggregated,
		IndividualResponses: individual,
	}

	span.SetAttributes(attribute.String("grading.status", status), attribute.Float64("grading.grade", grade))
	g.logger.Info().
		Str("submission_id", submissionID).
		Str("status", status).
		Float64("grade", grade).
		Int("out_of", result.OutOf).
		Dur("duration", time.Since(start)).
		Msg("submission graded")

	return result, nil
}

// evaluate returns the responses grouped by provider, in provider then repeat order.
func (g *Grader) evaluate(ctx context.Context, text string, rubric Rubric, providers []ai.Provider) ([][]EvaluationResponse, error) {
	results := make([][]EvaluationResponse, len(providers))

	if g.opts.Concurrency <= 1 {
		for i, provider := range providers {
			responses, err := g.runner.Run(ctx, provider, text, rubric)
			if err != nil {
				return nil, err
			}
			results[i] = responses
		}
		return results, nil
	}

	prompt := BuildPrompt(rubric, text, g.opts.PromptTemplate)
	repeats := g.runner.Repeats()
	for i := range results {
		results[i] = make([]EvaluationResponse, repeats)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.opts.Concurrency)
	for i, provider := range providers {
		for r := 0; r < repeats; r++ {
			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				resp, err := g.runner.Evaluate(groupCtx, provider, prompt, r+1)
				if err != nil {
					return err
				}
				results[i][r] = resp
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Grader) fold(perProvider [][]EvaluationResponse) (AggregatedResult, error) {
	providerAggregates := make([]AggregatedResult, 0, len(perProvider))
	for _, responses := range perProvider {
		aggregate, err := FoldResponses(g.opts.Method, responses)
		if err != nil {
			return AggregatedResult{}, err
		}
		providerAggregates = append(providerAggregates, aggregate)
	}
	return Fold(g.opts.Method, providerAggregates)
}

// Score runs the whole-response mode: one prompt to the highest-weight
// provider, parsed into a single optional grade and feedback.
func (g *Grader) Score(ctx context.Context, submissionID, text string, rubric Rubric, providers []ai.Provider) (*ScoreOutcome, error) {
	provider := ai.Heaviest(providers)
	if provider == nil {
		return nil, ErrNoProviders
	}

	ctx, span := g.tracer.Start(ctx, "grading.score_submission", trace.WithAttributes(
		attribute.String("grading.submission_id", submissionID),
	))
	defer span.End()

	reply, err := provider.GetResponse(ctx, BuildScorePrompt(rubric, text, g.opts.PromptTemplate))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("score submission %s: %w", submissionID, err)
	}

	parsed := ParseScore(reply)
	status := StatusGraded
	if parsed.Grade == nil {
		status = StatusUnparseable
	} else {
		rounded := RoundHalf(*parsed.Grade)
		parsed.Grade = &rounded
	}

	style := g.analyzer.AnalyzeStyle(text)
	return &ScoreOutcome{
		SubmissionID: submissionID,
		WordCount:    style.WordCount,
		Readability:  style.Readability,
		Sentiment:    g.analyzer.AnalyzeSentiment(text),
		Grade:        parsed.Grade,
		Feedback:     parsed.Feedback,
		Status:       status,
		ProviderInfo: provider.ModelInfo().String(),
	}, nil
}
