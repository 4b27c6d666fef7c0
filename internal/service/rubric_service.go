package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/internal/models"
	"github.com/noah-isme/gradebot-go/internal/repository"
)

var (
	// ErrRubricNotFound indicates the requested rubric does not exist.
	ErrRubricNotFound = errors.New("rubric not found")
	// ErrRubricExists indicates a rubric with the same name is already stored.
	ErrRubricExists = errors.New("rubric already exists")
)

const defaultRubricPageSize = 20

// RubricService manages stored rubrics.
type RubricService interface {
	Create(ctx context.Context, payload dto.RubricCreateRequest) (dto.RubricResponse, error)
	Import(ctx context.Context, payload dto.RubricImportRequest, csv io.Reader) (dto.RubricResponse, error)
	Get(ctx context.Context, id uint) (dto.RubricResponse, error)
	List(ctx context.Context, query dto.RubricListQuery) (dto.RubricListResponse, error)
	Resolve(ctx context.Context, id uint) (grading.Rubric, error)
}

type rubricService struct {
	repo      repository.RubricRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric service.
func NewRubricService(repo repository.RubricRepository, validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) Create(ctx context.Context, payload dto.RubricCreateRequest) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric, err := grading.NewRubric(dto.ToCriteria(payload.Criteria)...)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	return s.store(ctx, payload.Name, payload.Description, rubric)
}

func (s *rubricService) Import(ctx context.Context, payload dto.RubricImportRequest, csv io.Reader) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric, err := loader.ParseRubricCSV(csv)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	if rubric.Len() == 0 {
		return dto.RubricResponse{}, fmt.Errorf("%w: no criteria", grading.ErrInvalidRubric)
	}
	return s.store(ctx, payload.Name, payload.Description, rubric)
}

func (s *rubricService) store(ctx context.Context, name, description string, rubric grading.Rubric) (dto.RubricResponse, error) {
	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return dto.RubricResponse{}, ErrRubricExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.RubricResponse{}, err
	}

	model := models.NewRubricModel(name, description, rubric)
	if err := s.repo.Create(ctx, &model); err != nil {
		return dto.RubricResponse{}, err
	}

	s.logger.Info().Uint("rubric_id", model.ID).Str("name", model.Name).Int("criteria", rubric.Len()).Msg("rubric stored")
	return dto.NewRubricResponse(model), nil
}

func (s *rubricService) Get(ctx context.Context, id uint) (dto.RubricResponse, error) {
	model, err := s.find(ctx, id)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	return dto.NewRubricResponse(model), nil
}

func (s *rubricService) List(ctx context.Context, query dto.RubricListQuery) (dto.RubricListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.RubricListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultRubricPageSize
	}

	items, total, err := s.repo.List(ctx, repository.RubricFilter{Search: query.Search, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.RubricListResponse{}, err
	}

	responses := make([]dto.RubricResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewRubricResponse(item))
	}
	return dto.RubricListResponse{
		Items:      responses,
		Pagination: dto.PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total},
	}, nil
}

func (s *rubricService) Resolve(ctx context.Context, id uint) (grading.Rubric, error) {
	model, err := s.find(ctx, id)
	if err != nil {
		return grading.Rubric{}, err
	}
	return model.ToGrading()
}

func (s *rubricService) find(ctx context.Context, id uint) (models.Rubric, error) {
	model, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Rubric{}, ErrRubricNotFound
	}
	return model, err
}
