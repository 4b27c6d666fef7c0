package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/service"
	"github.com/noah-isme/gradebot-go/internal/utils"
)

// GradingHandler exposes the grading endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("", h.grade)
	router.Post("/upload", h.upload)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradingRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Grade(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission graded", result)
}

func (h *GradingHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	rubricID, err := parseOptionalInt(c.FormValue("rubric_id"))
	if err != nil || rubricID == nil || *rubricID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid rubric_id")
	}
	repeats, err := parseOptionalInt(c.FormValue("number_of_repeats"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid number_of_repeats")
	}
	repeatEach, err := parseOptionalBool(c.FormValue("repeat_each_provider"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid repeat_each_provider")
	}
	summarize, err := parseOptionalBool(c.FormValue("summarize_feedback"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid summarize_feedback")
	}

	payload := dto.GradingUploadRequest{
		SubmissionID: c.FormValue("submission_id"),
		RubricID:     uint(*rubricID),
		GradingOverrides: dto.GradingOverrides{
			Mode:               c.FormValue("mode"),
			AggregationMethod:  c.FormValue("aggregation_method"),
			NumberOfRepeats:    repeats,
			RepeatEachProvider: repeatEach,
			SummarizeFeedback:  summarize,
		},
	}

	result, err := h.service.GradeUpload(c.UserContext(), file, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission graded", result)
}
