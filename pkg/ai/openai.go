package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultOpenAIModel       = "gpt-3.5-turbo"
	defaultOpenAITemperature = 0.7
	openRouterBaseURL        = "https://openrouter.ai/api/v1"
	openAISystemPrompt       = "You are a helpful assistant."
)

var (
	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradebot",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Duration of LLM provider requests",
	}, []string{"provider", "model"})

	llmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradebot",
		Subsystem: "llm",
		Name:      "request_failures_total",
		Help:      "Number of failed LLM provider requests",
	}, []string{"provider", "model"})
)

// OpenAIConfig defines configuration options for OpenAI-compatible chat providers.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Weight      float64
	Logger      zerolog.Logger
}

// OpenAIProvider implements Provider against the OpenAI chat completion API.
// The same client serves OpenRouter by overriding the base URL.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
	name   string
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIProvider builds a provider talking to api.openai.com.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	return newChatProvider("OpenAI", cfg)
}

// NewOpenRouterProvider builds a provider talking to the OpenRouter gateway.
func NewOpenRouterProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	return newChatProvider("OpenRouter", cfg)
}

func newChatProvider(name string, cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", strings.ToLower(name))
	}

	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	if cfg.Weight <= 0 {
		cfg.Weight = 1.0
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		name:   name,
		tracer: otel.Tracer("github.com/noah-isme/gradebot-go/pkg/ai/openai"),
		logger: logger.With().Str("component", "llm_provider").Str("provider", name).Str("model", cfg.Model).Logger(),
	}, nil
}

// GetResponse sends the grading prompt and returns the reply text.
func (p *OpenAIProvider) GetResponse(ctx context.Context, prompt string) (string, error) {
	response, err := p.GenerateText(ctx, prompt, GenerateOptions{})
	if err != nil {
		p.logger.Error().Err(err).Msg("grading request failed")
		return "", err
	}
	p.logger.Debug().Int("response_length", len(response)).Msg("received grading response")
	return response, nil
}

// GenerateText sends a single user prompt to the chat completion endpoint.
func (p *OpenAIProvider) GenerateText(parent context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, span := p.tracer.Start(parent, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", p.name),
		attribute.String("llm.model", p.cfg.Model),
	))
	defer span.End()

	temperature := p.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := p.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	system := openAISystemPrompt
	if opts.System != "" {
		system = opts.System
	}

	request := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, request)
	llmDuration.WithLabelValues(p.name, p.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", p.fail(span, err)
	}

	if len(resp.Choices) == 0 {
		return "", p.fail(span, errors.New("no choices returned"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ModelInfo reports the provider metadata used for weighting and bias lookups.
func (p *OpenAIProvider) ModelInfo() ModelInfo {
	info := ModelInfo{
		Provider:  p.name,
		ModelName: p.cfg.Model,
		Weight:    p.cfg.Weight,
		Version:   "1.0",
	}
	if p.name != "OpenAI" {
		info.ServerURL = p.cfg.BaseURL
	}
	return info
}

func (p *OpenAIProvider) fail(span trace.Span, err error) error {
	llmFailures.WithLabelValues(p.name, p.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &ProviderError{Provider: p.name, Model: p.cfg.Model, Err: err}
}
