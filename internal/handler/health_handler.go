package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebot-go/internal/config"
	"github.com/noah-isme/gradebot-go/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Service           string    `json:"service"`
	Environment       string    `json:"environment"`
	Providers         []string  `json:"providers"`
	AggregationMethod string    `json:"aggregation_method"`
}

// HealthCheck reports service health and the configured grading setup.
// A service without any LLM provider reports "degraded".
func HealthCheck(cfg config.Config) fiber.Handler {
	providers := make([]string, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		name := provider.Provider
		if provider.Model != "" {
			name += "/" + provider.Model
		}
		providers = append(providers, name)
	}

	return func(c *fiber.Ctx) error {
		status := "ok"
		if len(providers) == 0 {
			status = "degraded"
		}

		payload := HealthResponse{
			Status:            status,
			Timestamp:         time.Now().UTC(),
			Service:           cfg.AppName,
			Environment:       cfg.AppEnv,
			Providers:         providers,
			AggregationMethod: cfg.Grading.AggregationMethod,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
