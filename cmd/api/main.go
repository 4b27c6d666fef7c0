package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/config"
	"github.com/noah-isme/gradebot-go/internal/database"
	"github.com/noah-isme/gradebot-go/internal/handler"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/internal/middleware"
	"github.com/noah-isme/gradebot-go/internal/repository"
	"github.com/noah-isme/gradebot-go/internal/router"
	"github.com/noah-isme/gradebot-go/internal/service"
	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "gradebot-api").Logger()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	providers, err := ai.NewProviders(cfg.Providers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build llm providers")
	}
	if len(providers) == 0 {
		logger.Warn().Msg("no llm providers configured; grading requests will fail")
	}

	defaults, err := cfg.Grading.Options()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid grading configuration")
	}

	var publisher service.EventPublisher = service.NewNoopPublisher()
	if redisClient != nil || natsConn != nil {
		publisher = service.NewGradingPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	rubricRepo := repository.NewRubricRepository(db)
	rubricService := service.NewRubricService(rubricRepo, validate, logger)
	gradingService := service.NewGradingService(service.GradingServiceConfig{
		Rubrics:   rubricService,
		Providers: providers,
		Defaults:  defaults,
		Analyzer:  textanalysis.NewAnalyzer(),
		Loader:    loader.NewSubmissionLoader(cfg.Grading.MaxSubmissionBytes, logger),
		Publisher: publisher,
		Validator: validate,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.Grading.MaxSubmissionBytes) + 64<<10,
		ReadTimeout:  30 * time.Second,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradingHandler: handler.NewGradingHandler(gradingService, logger),
		RubricHandler:  handler.NewRubricHandler(rubricService, logger),
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
		RateLimit:      middleware.RateLimit("grading", cfg.RateLimitMax, cfg.RateLimitWindow),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Int("providers", len(providers)).Msg("starting server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	// Grading runs wait on LLM calls, so give in-flight requests longer to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
