package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ModelInfo describes the provider and model behind a Provider.
type ModelInfo struct {
	Provider  string  `json:"provider"`
	ModelName string  `json:"model_name"`
	Weight    float64 `json:"weight"`
	Version   string  `json:"version,omitempty"`
	ServerURL string  `json:"server_url,omitempty"`
}

// EffectiveWeight returns the configured weight, falling back to 1.0 when unset.
func (m ModelInfo) EffectiveWeight() float64 {
	if m.Weight <= 0 {
		return 1.0
	}
	return m.Weight
}

// String renders the info as space separated "key: value" pairs.
func (m ModelInfo) String() string {
	parts := []string{
		"provider: " + m.Provider,
		"model_name: " + m.ModelName,
		"weight: " + strconv.FormatFloat(m.EffectiveWeight(), 'f', -1, 64),
	}
	if m.Version != "" {
		parts = append(parts, "version: "+m.Version)
	}
	if m.ServerURL != "" {
		parts = append(parts, "server_url: "+m.ServerURL)
	}
	return strings.Join(parts, " ")
}

// GenerateOptions tunes a single text generation call. Zero values keep the provider defaults.
type GenerateOptions struct {
	Temperature *float32
	MaxTokens   int
	System      string
}

// Provider is a text-in/text-out LLM capable of grading submissions.
type Provider interface {
	// GetResponse sends a grading prompt and returns the raw reply.
	GetResponse(ctx context.Context, prompt string) (string, error)
	// GenerateText runs a free-form generation, used for feedback summaries.
	GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	ModelInfo() ModelInfo
}

// ProviderError wraps a transport or API failure so callers can tell it apart
// from a reply that merely could not be parsed.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
