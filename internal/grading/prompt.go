package grading

import (
	"fmt"
	"strings"
)

// SystemInstruction opens every grading prompt.
const SystemInstruction = "You are an assistant evaluating student work against a rubric."

const criterionFormatInstructions = `Respond using exactly this format for every criterion in the rubric:
Criterion: <criterion name>
Grade: <number>
Feedback: <feedback>

After the last criterion, finish with a single block:
Overall: <overall feedback>

Do not include a total or aggregate score; totals are calculated separately.
Do not use markdown, bold text, bullet points, headings or any other rich text formatting.`

const scoreFormatInstructions = `Provide detailed feedback and a grade in the following format:
Grade: <grade>
Feedback: <feedback>
`

// RubricListing renders one "- name: description (Max Points: n)" line per criterion.
func RubricListing(rubric Rubric) string {
	var builder strings.Builder
	for _, criterion := range rubric.criteria {
		fmt.Fprintf(&builder, "- %s: %s (Max Points: %d)\n", criterion.Name, criterion.Description, criterion.MaxPoints)
	}
	return builder.String()
}

// BuildPrompt renders the per-criterion grading prompt. A non-empty template
// replaces the default rubric/submission layout; its {rubric} and {submission}
// placeholders are substituted. The output format directives are always appended.
func BuildPrompt(rubric Rubric, submission, template string) string {
	var builder strings.Builder
	builder.WriteString(SystemInstruction)
	builder.WriteString("\n\n")
	builder.WriteString(renderBody(rubric, submission, template))
	builder.WriteString("\n\n")
	builder.WriteString(criterionFormatInstructions)
	return builder.String()
}

// BuildScorePrompt renders the whole-response prompt asking for a single grade.
func BuildScorePrompt(rubric Rubric, submission, template string) string {
	var builder strings.Builder
	builder.WriteString(SystemInstruction)
	builder.WriteString("\n\n")
	builder.WriteString(renderBody(rubric, submission, template))
	builder.WriteString("\n\n")
	builder.WriteString(scoreFormatInstructions)
	return builder.String()
}

func renderBody(rubric Rubric, submission, template string) string {
	listing := RubricListing(rubric)
	if strings.TrimSpace(template) != "" {
		return strings.NewReplacer("{rubric}", strings.TrimRight(listing, "\n"), "{submission}", submission).Replace(template)
	}

	var builder strings.Builder
	builder.WriteString("Using the following rubric:\n\n")
	builder.WriteString(listing)
	builder.WriteString("\nEvaluate the following submission:\n\n")
	builder.WriteString(submission)
	return builder.String()
}
