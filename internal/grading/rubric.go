package grading

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRubric indicates a rubric failed validation at the load boundary.
var ErrInvalidRubric = errors.New("invalid rubric")

// Criterion is one independently graded aspect of a submission.
type Criterion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPoints   int    `json:"max_points"`
}

// Rubric is an ordered, immutable list of criteria.
type Rubric struct {
	criteria []Criterion
}

// NewRubric validates the criteria and returns a rubric preserving their order.
func NewRubric(criteria ...Criterion) (Rubric, error) {
	seen := make(map[string]struct{}, len(criteria))
	copied := make([]Criterion, 0, len(criteria))
	for i, criterion := range criteria {
		criterion.Name = strings.TrimSpace(criterion.Name)
		criterion.Description = strings.TrimSpace(criterion.Description)
		if criterion.Name == "" {
			return Rubric{}, fmt.Errorf("%w: criterion #%d has no name", ErrInvalidRubric, i+1)
		}
		if criterion.MaxPoints < 0 {
			return Rubric{}, fmt.Errorf("%w: criterion %q has negative max points", ErrInvalidRubric, criterion.Name)
		}
		if _, ok := seen[criterion.Name]; ok {
			return Rubric{}, fmt.Errorf("%w: duplicate criterion %q", ErrInvalidRubric, criterion.Name)
		}
		seen[criterion.Name] = struct{}{}
		copied = append(copied, criterion)
	}
	return Rubric{criteria: copied}, nil
}

// MustRubric is NewRubric for fixtures; it panics on invalid input.
func MustRubric(criteria ...Criterion) Rubric {
	rubric, err := NewRubric(criteria...)
	if err != nil {
		panic(err)
	}
	return rubric
}

// Criteria returns a copy of the criteria in rubric order.
func (r Rubric) Criteria() []Criterion {
	out := make([]Criterion, len(r.criteria))
	copy(out, r.criteria)
	return out
}

// Len reports the number of criteria.
func (r Rubric) Len() int {
	return len(r.criteria)
}

// Lookup finds a criterion by name.
func (r Rubric) Lookup(name string) (Criterion, bool) {
	for _, criterion := range r.criteria {
		if criterion.Name == name {
			return criterion, true
		}
	}
	return Criterion{}, false
}

// Total is the total possible score, the sum of every criterion's max points.
func (r Rubric) Total() int {
	total := 0
	for _, criterion := range r.criteria {
		total += criterion.MaxPoints
	}
	return total
}
