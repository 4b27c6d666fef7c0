package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/internal/observability"
	"github.com/noah-isme/gradebot-go/pkg/ai"
)

// ErrRubricRequired indicates neither a rubric id nor inline criteria were given.
var ErrRubricRequired = errors.New("rubric_id or criteria is required")

// GradingService grades submissions with the configured LLM providers.
type GradingService interface {
	Grade(ctx context.Context, payload dto.GradingRequest) (dto.GradingResponse, error)
	GradeUpload(ctx context.Context, file *multipart.FileHeader, payload dto.GradingUploadRequest) (dto.GradingResponse, error)
}

// GradingServiceConfig wires the grading service.
type GradingServiceConfig struct {
	Rubrics   RubricService
	Providers []ai.Provider
	Defaults  grading.Options
	Analyzer  grading.TextAnalyzer
	Loader    *loader.SubmissionLoader
	Publisher EventPublisher
	Validator *validator.Validate
}

type gradingService struct {
	rubrics   RubricService
	providers []ai.Provider
	defaults  grading.Options
	analyzer  grading.TextAnalyzer
	loader    *loader.SubmissionLoader
	publisher EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewGradingService constructs the grading service.
func NewGradingService(cfg GradingServiceConfig, logger zerolog.Logger) GradingService {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = NewNoopPublisher()
	}
	validate := cfg.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	submissionLoader := cfg.Loader
	if submissionLoader == nil {
		submissionLoader = loader.NewSubmissionLoader(0, logger)
	}

	return &gradingService{
		rubrics:   cfg.Rubrics,
		providers: cfg.Providers,
		defaults:  cfg.Defaults,
		analyzer:  cfg.Analyzer,
		loader:    submissionLoader,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gradebot-go/internal/service/grading"),
	}
}

func (s *gradingService) Grade(ctx context.Context, payload dto.GradingRequest) (dto.GradingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradingResponse{}, err
	}

	rubric, err := s.rubric(ctx, payload.RubricID, payload.Criteria)
	if err != nil {
		return dto.GradingResponse{}, err
	}
	return s.run(ctx, payload.SubmissionID, payload.Text, rubric, payload.GradingOverrides)
}

func (s *gradingService) GradeUpload(ctx context.Context, file *multipart.FileHeader, payload dto.GradingUploadRequest) (dto.GradingResponse, error) {
	if file == nil {
		return dto.GradingResponse{}, fmt.Errorf("%w: file is required", loader.ErrUnsupportedSubmission)
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradingResponse{}, err
	}

	handle, err := file.Open()
	if err != nil {
		return dto.GradingResponse{}, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, handle); err != nil {
		return dto.GradingResponse{}, fmt.Errorf("read upload: %w", err)
	}

	name := filepath.Base(file.Filename)
	text, err := s.loader.Extract(name, buf.Bytes())
	if err != nil {
		return dto.GradingResponse{}, err
	}

	submissionID := strings.TrimSpace(payload.SubmissionID)
	if submissionID == "" {
		submissionID = name
	}

	rubric, err := s.rubric(ctx, payload.RubricID, nil)
	if err != nil {
		return dto.GradingResponse{}, err
	}
	return s.run(ctx, submissionID, text, rubric, payload.GradingOverrides)
}

func (s *gradingService) rubric(ctx context.Context, id uint, inline []dto.CriterionPayload) (grading.Rubric, error) {
	if len(inline) > 0 {
		return grading.NewRubric(dto.ToCriteria(inline)...)
	}
	if id == 0 {
		return grading.Rubric{}, ErrRubricRequired
	}
	return s.rubrics.Resolve(ctx, id)
}

func (s *gradingService) options(overrides dto.GradingOverrides) grading.Options {
	opts := s.defaults
	if overrides.AggregationMethod != "" {
		opts.Method = grading.Method(overrides.AggregationMethod)
	}
	if overrides.NumberOfRepeats != nil {
		opts.NumRepeats = *overrides.NumberOfRepeats
	}
	if overrides.RepeatEachProvider != nil {
		opts.RepeatEachProvider = *overrides.RepeatEachProvider
	}
	if overrides.SummarizeFeedback != nil {
		opts.SummarizeFeedback = *overrides.SummarizeFeedback
	}
	return opts
}

func (s *gradingService) run(ctx context.Context, submissionID, text string, rubric grading.Rubric, overrides dto.GradingOverrides) (dto.GradingResponse, error) {
	mode := overrides.Mode
	if mode == "" {
		mode = dto.ModeRubric
	}

	grader, err := grading.NewGrader(s.options(overrides), s.analyzer, s.logger)
	if err != nil {
		return dto.GradingResponse{}, err
	}
	method := string(grader.Options().Method)

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "grading.run", trace.WithAttributes(
		attribute.String("grading.run_id", runID),
		attribute.String("grading.mode", mode),
	))
	defer span.End()

	logger := s.logger.With().Str("run_id", runID).Str("submission_id", submissionID).Str("mode", mode).Logger()
	start := time.Now()

	response := dto.GradingResponse{RunID: runID, Mode: mode}
	event := GradingEvent{RunID: runID, SubmissionID: submissionID, Mode: mode, Method: method, OutOf: rubric.Total()}

	if mode == dto.ModeScore {
		outcome, scoreErr := grader.Score(ctx, submissionID, text, rubric, s.providers)
		err = scoreErr
		if err == nil {
			response.Score = outcome
			event.Status = outcome.Status
			event.Grade = outcome.Grade
		}
	} else {
		result, gradeErr := grader.GradeSubmission(ctx, submissionID, text, rubric, s.providers)
		err = gradeErr
		if err == nil {
			response.Result = result
			grade := result.Grade
			event.Status = result.Status
			event.Grade = &grade
		}
	}

	observability.GradingDuration().WithLabelValues(method, mode).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.GradingRuns().WithLabelValues(method, mode, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("grading run failed")
		return dto.GradingResponse{}, err
	}
	observability.GradingRuns().WithLabelValues(method, mode, event.Status).Inc()

	if err := s.publisher.PublishGradingCompleted(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("failed to publish grading event")
	}

	logger.Info().Str("status", event.Status).Dur("duration", time.Since(start)).Msg("grading run completed")
	return response, nil
}
