package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/pkg/ai"
)

//go:embed schema.json
var schemaDocument string

const schemaURL = "gradebot-config.schema.json"

// ErrInvalidConfig wraps schema and validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds runtime configuration values for the API service and the CLI.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	EventsChannel   string
	JWTSecret       string
	RateLimitMax    int
	RateLimitWindow time.Duration
	Grading         GradingConfig
	Providers       []ai.ProviderConfig
}

// GradingConfig carries the grading pipeline settings.
type GradingConfig struct {
	NumberOfRepeats    int
	RepeatEachProvider bool
	AggregationMethod  string
	BiasAdjustments    map[string]float64
	SummarizeFeedback  bool
	PromptTemplate     string
	Concurrency        int
	OverallPolicy      string
	RubricPath         string
	SubmissionPath     string
	MaxSubmissionBytes int64
}

// Options converts the settings into grader options, rejecting unknown
// aggregation methods and overall policies.
func (g GradingConfig) Options() (grading.Options, error) {
	method, err := grading.ParseMethod(g.AggregationMethod)
	if err != nil {
		return grading.Options{}, err
	}
	policy, err := grading.ParseOverallPolicy(g.OverallPolicy)
	if err != nil {
		return grading.Options{}, err
	}
	return grading.Options{
		NumRepeats:         g.NumberOfRepeats,
		RepeatEachProvider: g.RepeatEachProvider,
		Method:             method,
		BiasAdjustments:    g.BiasAdjustments,
		PromptTemplate:     g.PromptTemplate,
		SummarizeFeedback:  g.SummarizeFeedback,
		Concurrency:        g.Concurrency,
		OverallPolicy:      policy,
	}, nil
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration from an optional config file, environment
// variables prefixed with GRADEBOT_ and an optional .env file. An empty path
// falls back to GRADEBOT_CONFIG. Environment variables win over the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEBOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeBot API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("events.channel", "grading.completed")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("grading.number_of_repeats", 1)
	v.SetDefault("grading.repeat_each_provider", false)
	v.SetDefault("grading.aggregation_method", string(grading.SimpleAverage))
	v.SetDefault("grading.summarize_feedback", false)
	v.SetDefault("grading.prompt_template", "")
	v.SetDefault("grading.concurrency", 1)
	v.SetDefault("grading.overall_policy", string(grading.OverallStop))
	v.SetDefault("grading.max_submission_bytes", 2<<20)

	if path == "" {
		path = os.Getenv("GRADEBOT_CONFIG")
	}
	if path != "" {
		if err := validateFile(path); err != nil {
			return Config{}, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	window, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: rate_limit.window: %v", ErrInvalidConfig, err)
	}

	bias, err := biasAdjustments(v.GetStringMap("grading.bias_adjustments"))
	if err != nil {
		return Config{}, err
	}

	var providers []ai.ProviderConfig
	if err := v.UnmarshalKey("llm_providers", &providers); err != nil {
		return Config{}, fmt.Errorf("%w: llm_providers: %v", ErrInvalidConfig, err)
	}
	if len(providers) == 0 {
		if key := v.GetString("openai_api_key"); key != "" {
			providers = append(providers, ai.ProviderConfig{
				Provider: "openai",
				APIKey:   key,
				Model:    v.GetString("openai_model"),
			})
		}
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		LogLevel:        strings.ToLower(v.GetString("logging.level")),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventsChannel:   v.GetString("events.channel"),
		JWTSecret:       v.GetString("jwt.secret"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: window,
		Grading: GradingConfig{
			NumberOfRepeats:    v.GetInt("grading.number_of_repeats"),
			RepeatEachProvider: v.GetBool("grading.repeat_each_provider"),
			AggregationMethod:  v.GetString("grading.aggregation_method"),
			BiasAdjustments:    bias,
			SummarizeFeedback:  v.GetBool("grading.summarize_feedback"),
			PromptTemplate:     v.GetString("grading.prompt_template"),
			Concurrency:        v.GetInt("grading.concurrency"),
			OverallPolicy:      v.GetString("grading.overall_policy"),
			RubricPath:         v.GetString("grading.rubric_path"),
			SubmissionPath:     v.GetString("grading.submission_path"),
			MaxSubmissionBytes: v.GetInt64("grading.max_submission_bytes"),
		},
		Providers: providers,
	}

	if cfg.Grading.NumberOfRepeats < 1 {
		cfg.Grading.NumberOfRepeats = 1
	}
	if cfg.Grading.Concurrency < 1 {
		cfg.Grading.Concurrency = 1
	}

	if err := validateProviders(cfg.Providers); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Grading.Options(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// validateFile checks the raw config file against the embedded JSON schema.
// The file is read through its own viper instance so defaults and environment
// overrides do not leak into the document.
func validateFile(path string) error {
	fileViper := viper.New()
	fileViper.SetConfigFile(path)
	if err := fileViper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	raw, err := json.Marshal(fileViper.AllSettings())
	if err != nil {
		return fmt.Errorf("encode config %s: %w", path, err)
	}
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaDocument)); err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func validateProviders(providers []ai.ProviderConfig) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	for i, provider := range providers {
		if err := validate.Struct(provider); err != nil {
			return fmt.Errorf("%w: llm provider #%d: %v", ErrInvalidConfig, i+1, err)
		}
	}
	return nil
}

// biasAdjustments converts the raw map. Keys come back lower-cased from viper.
func biasAdjustments(raw map[string]interface{}) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for model, value := range raw {
		bias, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("%w: bias adjustment for %s: %v", ErrInvalidConfig, model, err)
		}
		out[model] = bias
	}
	return out, nil
}
