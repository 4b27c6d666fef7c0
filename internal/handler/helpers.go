package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/internal/middleware"
	"github.com/noah-isme/gradebot-go/internal/service"
	"github.com/noah-isme/gradebot-go/internal/utils"
	"github.com/noah-isme/gradebot-go/pkg/ai"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseOptionalInt(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalBool(value string) (*bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// handleError maps domain errors onto HTTP status codes.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrors validator.ValidationErrors
		providerErr      *ai.ProviderError
	)
	switch {
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	case errors.Is(err, grading.ErrInvalidRubric),
		errors.Is(err, grading.ErrUnsupportedMethod),
		errors.Is(err, service.ErrRubricRequired),
		errors.Is(err, loader.ErrUnsupportedSubmission):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	case errors.Is(err, service.ErrRubricExists):
		return utils.SendError(c, fiber.StatusConflict, "rubric already exists")
	case errors.Is(err, grading.ErrNoProviders):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "no llm providers configured")
	case errors.As(err, &providerErr):
		requestLogger(logger, c).Error().Err(err).Str("provider", providerErr.Provider).Msg("llm provider failed")
		return utils.SendError(c, fiber.StatusBadGateway, "llm provider request failed")
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Namespace()] = fieldErr.Tag()
	}
	return details
}
