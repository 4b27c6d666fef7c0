package dto

import (
	"github.com/noah-isme/gradebot-go/internal/grading"
)

// Grading modes.
const (
	ModeRubric = "rubric"
	ModeScore  = "score"
)

// GradingOverrides adjusts the configured grading options for one request.
type GradingOverrides struct {
	Mode               string `json:"mode" form:"mode" validate:"omitempty,oneof=rubric score"`
	AggregationMethod  string `json:"aggregation_method" form:"aggregation_method"`
	NumberOfRepeats    *int   `json:"number_of_repeats" form:"number_of_repeats" validate:"omitempty,gte=1,lte=10"`
	RepeatEachProvider *bool  `json:"repeat_each_provider" form:"repeat_each_provider"`
	SummarizeFeedback  *bool  `json:"summarize_feedback" form:"summarize_feedback"`
}

// GradingRequest grades text against a stored rubric or inline criteria.
type GradingRequest struct {
	SubmissionID string             `json:"submission_id" validate:"required,max=255"`
	Text         string             `json:"text" validate:"required"`
	RubricID     uint               `json:"rubric_id" validate:"required_without=Criteria"`
	Criteria     []CriterionPayload `json:"criteria" validate:"omitempty,dive"`
	GradingOverrides
}

// GradingUploadRequest holds the form fields sent with an uploaded submission.
type GradingUploadRequest struct {
	SubmissionID string `form:"submission_id" validate:"max=255"`
	RubricID     uint   `form:"rubric_id" validate:"required"`
	GradingOverrides
}

// GradingResponse carries either a rubric grading result or a whole-response score.
type GradingResponse struct {
	RunID  string                 `json:"run_id"`
	Mode   string                 `json:"mode"`
	Result *grading.GradingResult `json:"result,omitempty"`
	Score  *grading.ScoreOutcome  `json:"score,omitempty"`
}
