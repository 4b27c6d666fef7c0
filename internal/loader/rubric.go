// Package loader reads rubrics and submissions from disk and turns them into
// the typed values the grading core works with.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/noah-isme/gradebot-go/internal/grading"
)

const (
	columnCriterion   = "criterion"
	columnDescription = "description"
	columnMaxPoints   = "max_points"
)

// LoadRubric reads a rubric CSV file from path.
func LoadRubric(path string) (grading.Rubric, error) {
	file, err := os.Open(path)
	if err != nil {
		return grading.Rubric{}, fmt.Errorf("open rubric: %w", err)
	}
	defer file.Close()

	return ParseRubricCSV(file)
}

// ParseRubricCSV reads rows of criterion,description,max_points. The header
// row is required; description may be missing and an empty max_points counts
// as 0. Rows keep their file order.
func ParseRubricCSV(r io.Reader) (grading.Rubric, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return grading.Rubric{}, fmt.Errorf("%w: empty csv", grading.ErrInvalidRubric)
	}
	if err != nil {
		return grading.Rubric{}, fmt.Errorf("read rubric header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{columnCriterion, columnMaxPoints} {
		if _, ok := columns[required]; !ok {
			return grading.Rubric{}, fmt.Errorf("%w: missing %q column", grading.ErrInvalidRubric, required)
		}
	}

	field := func(record []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var criteria []grading.Criterion
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return grading.Rubric{}, fmt.Errorf("read rubric line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		points := 0
		if raw := field(record, columnMaxPoints); raw != "" {
			points, err = strconv.Atoi(raw)
			if err != nil || points < 0 {
				return grading.Rubric{}, fmt.Errorf("%w: line %d: max_points must be a non-negative integer, got %q", grading.ErrInvalidRubric, line, raw)
			}
		}

		criteria = append(criteria, grading.Criterion{
			Name:        field(record, columnCriterion),
			Description: field(record, columnDescription),
			MaxPoints:   points,
		})
	}

	return grading.NewRubric(criteria...)
}

func isBlank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
