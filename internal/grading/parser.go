package grading

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OverallPolicy decides what happens to lines that follow the first "Overall:" line.
type OverallPolicy string

const (
	// OverallStop captures every following line as overall feedback and stops
	// reading criteria. Criterion blocks after "Overall:" are dropped.
	OverallStop OverallPolicy = "stop"
	// OverallResume ends the overall block at the next "Criterion:" line and
	// keeps parsing criteria after it.
	OverallResume OverallPolicy = "resume"
)

// ParseOverallPolicy maps a configuration value to a policy. Empty selects OverallStop.
func ParseOverallPolicy(value string) (OverallPolicy, error) {
	switch OverallPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", OverallStop:
		return OverallStop, nil
	case OverallResume:
		return OverallResume, nil
	default:
		return "", fmt.Errorf("unknown overall policy %q", value)
	}
}

// Labels may be decorated with list markers, quotes or bold markers by noncompliant models.
const labelNoise = `^[\s>*#_-]*`

var (
	criterionLine  = regexp.MustCompile(`(?i)` + labelNoise + `criterion\s*[*_]*:[*_]*\s*(.*)$`)
	gradeLine      = regexp.MustCompile(`(?i)` + labelNoise + `grade\s*[*_]*:[*_]*\s*(.*)$`)
	gradeValue     = regexp.MustCompile(`^(\d+(?:\.\d+)?)`)
	feedbackLine   = regexp.MustCompile(`(?i)` + labelNoise + `feedback\s*[*_]*:[*_]*\s*(.*)$`)
	overallLine    = regexp.MustCompile(`(?i)` + labelNoise + `overall\s*[*_]*:[*_]*\s*(.*)$`)
	scoreGrade     = regexp.MustCompile(`Grade:\s*(\d+(?:\.\d+)?)`)
	scoreFeedback  = regexp.MustCompile(`(?s)Feedback:[ \t]*(.*)`)
	labelDecorator = " \t*_"
)

// CriterionResult is the grade and feedback an LLM gave one criterion.
type CriterionResult struct {
	Name     string  `json:"name"`
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

// ParsedResponse holds everything recovered from one LLM reply.
type ParsedResponse struct {
	Criteria []CriterionResult `json:"criteria"`
	Overall  string            `json:"overall"`
}

// Empty reports whether nothing usable was recovered.
func (p ParsedResponse) Empty() bool {
	return len(p.Criteria) == 0 && p.Overall == ""
}

// Total sums the criterion grades.
func (p ParsedResponse) Total() float64 {
	total := 0.0
	for _, criterion := range p.Criteria {
		total += criterion.Grade
	}
	return total
}

// Parser turns a per-criterion LLM reply into structured results. It never
// fails: unrecognised lines are ignored and a criterion without a numeric
// grade scores 0.
type Parser struct {
	Policy OverallPolicy
}

// ParseResponse parses text with the default OverallStop policy.
func ParseResponse(text string) ParsedResponse {
	return Parser{Policy: OverallStop}.Parse(text)
}

// Parse runs the line-oriented state machine over text.
func (p Parser) Parse(text string) ParsedResponse {
	var (
		criteria    []CriterionResult
		current     *CriterionResult
		collecting  bool
		overallSeen bool
		inOverall   bool
		overall     []string
	)

	flush := func() {
		if current != nil {
			criteria = append(criteria, *current)
			current = nil
		}
		collecting = false
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if inOverall {
			if p.Policy != OverallResume || !criterionLine.MatchString(line) {
				if line != "" {
					overall = append(overall, line)
				}
				continue
			}
			inOverall = false
		}

		if m := criterionLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &CriterionResult{Name: strings.Trim(m[1], labelDecorator)}
			continue
		}

		if m := overallLine.FindStringSubmatch(line); m != nil {
			flush()
			if overallSeen {
				continue
			}
			overallSeen = true
			inOverall = true
			if rest := strings.TrimSpace(m[1]); rest != "" {
				overall = append(overall, rest)
			}
			continue
		}

		if m := gradeLine.FindStringSubmatch(line); m != nil {
			collecting = false
			if current == nil {
				continue
			}
			if v := gradeValue.FindString(strings.Trim(m[1], labelDecorator)); v != "" {
				if grade, err := strconv.ParseFloat(v, 64); err == nil {
					current.Grade = grade
				}
			}
			continue
		}

		if m := feedbackLine.FindStringSubmatch(line); m != nil {
			if current == nil {
				collecting = false
				continue
			}
			current.Feedback = strings.TrimSpace(m[1])
			collecting = true
			continue
		}

		if collecting && current != nil && line != "" {
			current.Feedback = joinSpace(current.Feedback, line)
		}
	}
	flush()

	return ParsedResponse{
		Criteria: criteria,
		Overall:  strings.TrimSpace(strings.Join(overall, " ")),
	}
}

// ScoreResult is the whole-response parse: one grade and one feedback block,
// either of which may be absent.
type ScoreResult struct {
	Grade    *float64 `json:"grade"`
	Feedback *string  `json:"feedback"`
}

// ParseScore extracts the first "Grade: <n>" and everything after the first
// "Feedback:". A bare "Feedback:" label counts as absent.
func ParseScore(text string) ScoreResult {
	var result ScoreResult
	if m := scoreGrade.FindStringSubmatch(text); m != nil {
		if grade, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.Grade = &grade
		}
	}
	if m := scoreFeedback.FindStringSubmatch(text); m != nil {
		if feedback := strings.TrimSpace(m[1]); feedback != "" {
			result.Feedback = &feedback
		}
	}
	return result
}

func joinSpace(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}
