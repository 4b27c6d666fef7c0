package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gradebot-go/internal/models"
)

// RubricFilter filters rubric list queries.
type RubricFilter struct {
	Search   string
	Page     int
	PageSize int
}

// RubricRepository exposes persistence helpers for stored rubrics.
type RubricRepository interface {
	Create(ctx context.Context, rubric *models.Rubric) error
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
	GetByName(ctx context.Context, name string) (models.Rubric, error)
	List(ctx context.Context, filter RubricFilter) ([]models.Rubric, int64, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository constructs the repository implementation.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func orderedCriteria(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rubric).Error
	})
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).Preload("Criteria", orderedCriteria).First(&rubric, id).Error
	return rubric, err
}

func (r *rubricRepository) GetByName(ctx context.Context, name string) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).Preload("Criteria", orderedCriteria).Where("name = ?", strings.TrimSpace(name)).First(&rubric).Error
	return rubric, err
}

func (r *rubricRepository) List(ctx context.Context, filter RubricFilter) ([]models.Rubric, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Rubric{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var items []models.Rubric
	if err := query.Preload("Criteria", orderedCriteria).Order("name ASC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
