package dto

import (
	"time"

	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/models"
)

// CriterionPayload is one rubric criterion on the wire.
type CriterionPayload struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	MaxPoints   int    `json:"max_points" validate:"gte=0,lte=10000"`
}

// RubricCreateRequest stores a rubric defined in JSON.
type RubricCreateRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=2000"`
	Criteria    []CriterionPayload `json:"criteria" validate:"required,min=1,dive"`
}

// RubricImportRequest carries the form fields sent alongside a CSV upload.
type RubricImportRequest struct {
	Name        string `form:"name" validate:"required,max=255"`
	Description string `form:"description" validate:"max=2000"`
}

// RubricListQuery filters the rubric listing.
type RubricListQuery struct {
	Search   string `query:"search"`
	Page     int    `query:"page" validate:"gte=0"`
	PageSize int    `query:"page_size" validate:"gte=0,lte=100"`
}

// RubricResponse is a stored rubric.
type RubricResponse struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Criteria    []CriterionPayload `json:"criteria"`
	OutOf       int                `json:"out_of"`
	CreatedAt   time.Time          `json:"created_at"`
}

// PaginationMeta describes a page of results.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
}

// RubricListResponse is a page of stored rubrics.
type RubricListResponse struct {
	Items      []RubricResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// ToCriteria converts payloads into core criteria.
func ToCriteria(payloads []CriterionPayload) []grading.Criterion {
	criteria := make([]grading.Criterion, 0, len(payloads))
	for _, payload := range payloads {
		criteria = append(criteria, grading.Criterion{
			Name:        payload.Name,
			Description: payload.Description,
			MaxPoints:   payload.MaxPoints,
		})
	}
	return criteria
}

// NewRubricResponse maps a stored rubric, keeping criterion order.
func NewRubricResponse(model models.Rubric) RubricResponse {
	criteria := make([]CriterionPayload, 0, len(model.Criteria))
	if rubric, err := model.ToGrading(); err == nil {
		for _, criterion := range rubric.Criteria() {
			criteria = append(criteria, CriterionPayload{
				Name:        criterion.Name,
				Description: criterion.Description,
				MaxPoints:   criterion.MaxPoints,
			})
		}
	}
	return RubricResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Criteria:    criteria,
		OutOf:       model.TotalPoints(),
		CreatedAt:   model.CreatedAt,
	}
}
