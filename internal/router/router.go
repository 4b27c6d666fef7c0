package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradebot-go/internal/config"
	"github.com/noah-isme/gradebot-go/internal/handler"
	"github.com/noah-isme/gradebot-go/internal/middleware"
	"github.com/noah-isme/gradebot-go/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler *handler.GradingHandler
	RubricHandler  *handler.RubricHandler
	JWTMiddleware  fiber.Handler
	// RateLimit guards the grading endpoints, which fan out to paid LLM calls.
	RateLimit fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := passthrough(deps.JWTMiddleware)

	if deps.RubricHandler != nil {
		rubrics := api.Group("/rubrics", jwtMiddleware, middleware.RequireRole(middleware.RoleGrader, middleware.RoleInstructor, middleware.RoleAdmin))
		deps.RubricHandler.Register(rubrics, func(next fiber.Handler) fiber.Handler {
			return middleware.WithAuth(next, middleware.AuthOptions{MinRole: middleware.RoleInstructor})
		})
	}

	if deps.GradingHandler != nil {
		grading := api.Group("/grading",
			jwtMiddleware,
			middleware.RequireRole(middleware.RoleGrader, middleware.RoleInstructor, middleware.RoleAdmin),
			passthrough(deps.RateLimit),
		)
		deps.GradingHandler.Register(grading)
	}
}

func passthrough(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
