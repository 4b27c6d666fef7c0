package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesGradingCollectors(t *testing.T) {
	GradingRuns().WithLabelValues("simple_average", "rubric", "graded").Inc()
	GradingDuration().WithLabelValues("simple_average", "rubric").Observe(1.5)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `gradebot_grading_runs_total{method="simple_average",mode="rubric",status="graded"}`)
	require.Contains(t, string(body), "gradebot_grading_duration_seconds_bucket")
}
