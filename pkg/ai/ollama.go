package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultOllamaModel     = "llama3"
	defaultOllamaServerURL = "http://localhost:11434"
)

// OllamaConfig configures a provider backed by a local Ollama server.
type OllamaConfig struct {
	ServerURL   string
	Model       string
	Temperature float32
	Weight      float64
	Logger      zerolog.Logger
}

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	llm    llms.Model
	cfg    OllamaConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOllamaProvider constructs the local provider. No request is made until the first prompt.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultOllamaServerURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Weight <= 0 {
		cfg.Weight = 1.0
	}

	client, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.ServerURL))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaProvider{
		llm:    client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gradebot-go/pkg/ai/ollama"),
		logger: logger.With().Str("component", "llm_provider").Str("provider", "Ollama").Str("model", cfg.Model).Logger(),
	}, nil
}

// GetResponse sends the grading prompt to the local model.
func (p *OllamaProvider) GetResponse(ctx context.Context, prompt string) (string, error) {
	response, err := p.GenerateText(ctx, prompt, GenerateOptions{})
	if err != nil {
		p.logger.Error().Err(err).Msg("grading request failed")
		return "", err
	}
	p.logger.Debug().Int("response_length", len(response)).Msg("received grading response")
	return response, nil
}

// GenerateText runs a single prompt through the local model.
func (p *OllamaProvider) GenerateText(parent context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, span := p.tracer.Start(parent, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", "Ollama"),
		attribute.String("llm.model", p.cfg.Model),
	))
	defer span.End()

	temperature := p.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	callOpts := []llms.CallOption{llms.WithTemperature(float64(temperature))}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.System != "" {
		prompt = opts.System + "\n\n" + prompt
	}

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt, callOpts...)
	llmDuration.WithLabelValues("Ollama", p.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		llmFailures.WithLabelValues("Ollama", p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &ProviderError{Provider: "Ollama", Model: p.cfg.Model, Err: err}
	}

	return strings.TrimSpace(text), nil
}

// ModelInfo reports the provider metadata.
func (p *OllamaProvider) ModelInfo() ModelInfo {
	return ModelInfo{
		Provider:  "Ollama",
		ModelName: p.cfg.Model,
		Weight:    p.cfg.Weight,
		ServerURL: p.cfg.ServerURL,
	}
}
