package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrUnsupportedProvider indicates the configured provider kind is unknown.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// ProviderConfig is one entry of the llm_providers configuration list.
type ProviderConfig struct {
	Provider    string   `mapstructure:"provider" json:"provider" validate:"required,oneof=openai openrouter ollama"`
	APIKey      string   `mapstructure:"api_key" json:"api_key,omitempty"`
	Model       string   `mapstructure:"model" json:"model,omitempty"`
	Temperature *float32 `mapstructure:"temperature" json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Weight      float64  `mapstructure:"weight" json:"weight,omitempty" validate:"gte=0"`
	ServerURL   string   `mapstructure:"server_url" json:"server_url,omitempty" validate:"omitempty,url"`
	MaxTokens   int      `mapstructure:"max_tokens" json:"max_tokens,omitempty" validate:"gte=0"`
}

// NewProvider builds a single provider from its configuration entry.
func NewProvider(cfg ProviderConfig, logger zerolog.Logger) (Provider, error) {
	temperature := float32(defaultOpenAITemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.ServerURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: temperature,
			Weight:      cfg.Weight,
			Logger:      logger,
		})
	case "openrouter":
		return NewOpenRouterProvider(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.ServerURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: temperature,
			Weight:      cfg.Weight,
			Logger:      logger,
		})
	case "ollama":
		return NewOllamaProvider(OllamaConfig{
			ServerURL:   cfg.ServerURL,
			Model:       cfg.Model,
			Temperature: temperature,
			Weight:      cfg.Weight,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewProviders builds every configured provider, preserving configuration order.
func NewProviders(cfgs []ProviderConfig, logger zerolog.Logger) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for i, cfg := range cfgs {
		provider, err := NewProvider(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("llm provider #%d: %w", i+1, err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

// Heaviest returns the provider with the highest weight. Ties go to the earliest provider.
func Heaviest(providers []Provider) Provider {
	var best Provider
	bestWeight := 0.0
	for _, provider := range providers {
		weight := provider.ModelInfo().EffectiveWeight()
		if best == nil || weight > bestWeight {
			best = provider
			bestWeight = weight
		}
	}
	return best
}
