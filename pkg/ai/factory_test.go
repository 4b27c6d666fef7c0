package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	info ModelInfo
}

func (s stubProvider) GetResponse(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func (s stubProvider) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return "", nil
}

func (s stubProvider) ModelInfo() ModelInfo {
	return s.info
}

func TestNewProviderRequiresOpenAIKey(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "openai"}, zerolog.Nop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestNewProviderRejectsUnknownKind(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "mystery"}, zerolog.Nop())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedProvider))
}

func TestNewProviderAppliesOpenAIDefaults(t *testing.T) {
	provider, err := NewProvider(ProviderConfig{Provider: "openai", APIKey: "sk-test"}, zerolog.Nop())
	require.NoError(t, err)

	info := provider.ModelInfo()
	require.Equal(t, "OpenAI", info.Provider)
	require.Equal(t, defaultOpenAIModel, info.ModelName)
	require.Equal(t, 1.0, info.Weight)
	require.Equal(t, "1.0", info.Version)

	openAI, ok := provider.(*OpenAIProvider)
	require.True(t, ok)
	require.InDelta(t, 0.7, openAI.cfg.Temperature, 0.0001)
}

func TestNewProviderBuildsOpenRouterWithGatewayURL(t *testing.T) {
	provider, err := NewProvider(ProviderConfig{Provider: "openrouter", APIKey: "key", Model: "meta/llama", Weight: 2}, zerolog.Nop())
	require.NoError(t, err)

	info := provider.ModelInfo()
	require.Equal(t, "OpenRouter", info.Provider)
	require.Equal(t, openRouterBaseURL, info.ServerURL)
	require.Equal(t, 2.0, info.Weight)
}

func TestNewProviderBuildsOllamaWithDefaults(t *testing.T) {
	provider, err := NewProvider(ProviderConfig{Provider: "ollama"}, zerolog.Nop())
	require.NoError(t, err)

	info := provider.ModelInfo()
	require.Equal(t, "Ollama", info.Provider)
	require.Equal(t, defaultOllamaModel, info.ModelName)
	require.Equal(t, defaultOllamaServerURL, info.ServerURL)
}

func TestNewProvidersReportsFailingEntry(t *testing.T) {
	_, err := NewProviders([]ProviderConfig{
		{Provider: "ollama"},
		{Provider: "openai"},
	}, zerolog.Nop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "#2")
}

func TestHeaviestPrefersFirstOnTies(t *testing.T) {
	first := stubProvider{info: ModelInfo{ModelName: "a", Weight: 2}}
	second := stubProvider{info: ModelInfo{ModelName: "b", Weight: 2}}
	light := stubProvider{info: ModelInfo{ModelName: "c"}}

	best := Heaviest([]Provider{light, first, second})
	require.Equal(t, "a", best.ModelInfo().ModelName)
	require.Nil(t, Heaviest(nil))
}

func TestModelInfoString(t *testing.T) {
	info := ModelInfo{Provider: "OpenAI", ModelName: "gpt-4o", Weight: 1.5, Version: "1.0"}
	require.Equal(t, "provider: OpenAI model_name: gpt-4o weight: 1.5 version: 1.0", info.String())

	unweighted := ModelInfo{Provider: "Ollama", ModelName: "llama3", ServerURL: "http://localhost:11434"}
	require.Equal(t, "provider: Ollama model_name: llama3 weight: 1 server_url: http://localhost:11434", unweighted.String())
}
