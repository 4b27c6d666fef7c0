package models

import (
	"sort"
	"time"

	"github.com/noah-isme/gradebot-go/internal/grading"
)

// Rubric is a stored grading rubric. Criteria keep their position so the
// prompt lists them in the order they were defined.
type Rubric struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	Criteria    []RubricCriterion `gorm:"constraint:OnDelete:CASCADE" json:"criteria"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// RubricCriterion is one row of a stored rubric.
type RubricCriterion struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	RubricID    uint   `gorm:"index;not null" json:"rubric_id"`
	Position    int    `gorm:"not null" json:"position"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	MaxPoints   int    `gorm:"not null" json:"max_points"`
}

// NewRubricModel maps a validated rubric into rows.
func NewRubricModel(name, description string, rubric grading.Rubric) Rubric {
	criteria := rubric.Criteria()
	rows := make([]RubricCriterion, 0, len(criteria))
	for i, criterion := range criteria {
		rows = append(rows, RubricCriterion{
			Position:    i,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
		})
	}
	return Rubric{Name: name, Description: description, Criteria: rows}
}

// ToGrading rebuilds the in-memory rubric, ordering criteria by position.
func (r Rubric) ToGrading() (grading.Rubric, error) {
	rows := make([]RubricCriterion, len(r.Criteria))
	copy(rows, r.Criteria)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	criteria := make([]grading.Criterion, 0, len(rows))
	for _, row := range rows {
		criteria = append(criteria, grading.Criterion{
			Name:        row.Name,
			Description: row.Description,
			MaxPoints:   row.MaxPoints,
		})
	}
	return grading.NewRubric(criteria...)
}

// TotalPoints sums max points over every criterion.
func (r Rubric) TotalPoints() int {
	total := 0
	for _, criterion := range r.Criteria {
		total += criterion.MaxPoints
	}
	return total
}
