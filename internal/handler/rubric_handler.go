package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/service"
	"github.com/noah-isme/gradebot-go/internal/utils"
)

// RubricHandler manages stored rubric endpoints.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler builds a rubric handler instance.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. protectWrite wraps the
// handlers that create rubrics; nil leaves them unguarded.
func (h *RubricHandler) Register(router fiber.Router, protectWrite func(fiber.Handler) fiber.Handler) {
	if protectWrite == nil {
		protectWrite = func(next fiber.Handler) fiber.Handler { return next }
	}

	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", protectWrite(h.create))
	router.Post("/import", protectWrite(h.importCSV))
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	var query dto.RubricListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	rubrics, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.OK(c, rubrics.Items, "rubrics retrieved", rubrics.Pagination)
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	rubric, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric retrieved", rubric)
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", rubric)
}

func (h *RubricHandler) importCSV(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	handle, err := file.Open()
	if err != nil {
		return handleError(c, h.logger, err)
	}
	defer handle.Close()

	payload := dto.RubricImportRequest{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
	}
	rubric, err := h.service.Import(c.UserContext(), payload, handle)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric imported", rubric)
}
