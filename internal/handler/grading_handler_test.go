package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebot-go/internal/config"
	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/handler"
	"github.com/noah-isme/gradebot-go/internal/models"
	"github.com/noah-isme/gradebot-go/internal/repository"
	"github.com/noah-isme/gradebot-go/internal/router"
	"github.com/noah-isme/gradebot-go/internal/service"
	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

const gradedReply = "Criterion: Content\nGrade: 8\nFeedback: Good.\nCriterion: Clarity\nGrade: 4\nFeedback: Clear.\nOverall: Nice work."

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) GetResponse(context.Context, string) (string, error) {
	return f.reply, f.err
}

func (f fakeLLM) GenerateText(context.Context, string, ai.GenerateOptions) (string, error) {
	return "summary", f.err
}

func (f fakeLLM) ModelInfo() ai.ModelInfo {
	return ai.ModelInfo{Provider: "Fake", ModelName: "fake-1", Weight: 1}
}

type flatAnalyzer struct{}

func (flatAnalyzer) AnalyzeSentiment(string) textanalysis.Sentiment { return textanalysis.Sentiment{} }
func (flatAnalyzer) AnalyzeStyle(string) textanalysis.Style {
	return textanalysis.Style{WordCount: 4, Readability: 70}
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    map[string]any    `json:"meta"`
	Details map[string]string `json:"details"`
}

type testEnv struct {
	app *fiber.App
}

// stubAuth stands in for JWT validation, reading the identity from test headers.
func stubAuth(c *fiber.Ctx) error {
	if user := c.Get("X-Test-User"); user != "" {
		c.Locals("user_id", user)
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupHandlerEnv(t *testing.T, providers ...ai.Provider) testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Rubric{}, &models.RubricCriterion{}))

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	rubricService := service.NewRubricService(repository.NewRubricRepository(db), validate, logger)
	gradingService := service.NewGradingService(service.GradingServiceConfig{
		Rubrics:   rubricService,
		Providers: providers,
		Defaults:  grading.Options{Method: grading.SimpleAverage, NumRepeats: 1},
		Analyzer:  flatAnalyzer{},
		Validator: validate,
	}, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "gradebot"}, router.Dependencies{
		GradingHandler: handler.NewGradingHandler(gradingService, logger),
		RubricHandler:  handler.NewRubricHandler(rubricService, logger),
		JWTMiddleware:  stubAuth,
	})
	return testEnv{app: app}
}

func (e testEnv) do(t *testing.T, req *http.Request, role string) (int, envelope) {
	t.Helper()
	if role != "" {
		req.Header.Set("X-Test-User", "user-1")
		req.Header.Set("X-Test-Role", role)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func createRubric(t *testing.T, env testEnv) uint {
	t.Helper()
	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/rubrics", map[string]any{
		"name": "Essay",
		"criteria": []map[string]any{
			{"name": "Content", "max_points": 10},
			{"name": "Clarity", "max_points": 5},
		},
	}), "instructor")
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var created struct {
		ID    uint `json:"id"`
		OutOf int  `json:"out_of"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	require.Equal(t, 15, created.OutOf)
	return created.ID
}

type gradedPayload struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Result struct {
		SubmissionID string  `json:"submission_id"`
		Grade        float64 `json:"grade"`
		OutOf        int     `json:"out_of"`
		Status       string  `json:"status"`
		Method       string  `json:"method"`
	} `json:"result"`
	Score *struct {
		Grade  *float64 `json:"grade"`
		Status string   `json:"status"`
	} `json:"score"`
}

func TestGradingHandlerGradesAgainstStoredRubric(t *testing.T) {
	env := setupHandlerEnv(t, fakeLLM{reply: gradedReply})
	rubricID := createRubric(t, env)

	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/grading", map[string]any{
		"submission_id": "essay-1",
		"text":          "A short essay about tides.",
		"rubric_id":     rubricID,
	}), "grader")
	require.Equal(t, fiber.StatusOK, status, body.Message)
	require.True(t, body.Success)

	var payload gradedPayload
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.NotEmpty(t, payload.RunID)
	require.Equal(t, "rubric", payload.Mode)
	require.Equal(t, "essay-1", payload.Result.SubmissionID)
	require.Equal(t, 12.0, payload.Result.Grade)
	require.Equal(t, 15, payload.Result.OutOf)
	require.Equal(t, grading.StatusGraded, payload.Result.Status)
	require.Equal(t, "simple_average", payload.Result.Method)
	require.Nil(t, payload.Score)
}

func TestGradingHandlerInlineCriteriaScoreMode(t *testing.T) {
	env := setupHandlerEnv(t, fakeLLM{reply: "Grade: 9\nFeedback: Solid."})

	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/grading", map[string]any{
		"submission_id": "essay-2",
		"text":          "Another essay.",
		"criteria":      []map[string]any{{"name": "Overall", "max_points": 10}},
		"mode":          "score",
	}), "grader")
	require.Equal(t, fiber.StatusOK, status, body.Message)

	var payload gradedPayload
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.Equal(t, "score", payload.Mode)
	require.NotNil(t, payload.Score)
	require.NotNil(t, payload.Score.Grade)
	require.Equal(t, 9.0, *payload.Score.Grade)
}

func TestGradingHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		providers []ai.Provider
		payload   any
		role      string
		status    int
	}{
		{
			name:      "validation",
			providers: []ai.Provider{fakeLLM{reply: gradedReply}},
			payload:   map[string]any{"text": "essay", "rubric_id": 1},
			role:      "grader",
			status:    fiber.StatusBadRequest,
		},
		{
			name:      "unknown rubric",
			providers: []ai.Provider{fakeLLM{reply: gradedReply}},
			payload:   map[string]any{"submission_id": "s", "text": "essay", "rubric_id": 99},
			role:      "grader",
			status:    fiber.StatusNotFound,
		},
		{
			name:      "unsupported method",
			providers: []ai.Provider{fakeLLM{reply: gradedReply}},
			payload: map[string]any{
				"submission_id":      "s",
				"text":               "essay",
				"criteria":           []map[string]any{{"name": "Content", "max_points": 10}},
				"aggregation_method": "mode",
			},
			role:   "grader",
			status: fiber.StatusBadRequest,
		},
		{
			name:      "provider failure",
			providers: []ai.Provider{fakeLLM{err: &ai.ProviderError{Provider: "Fake", Model: "fake-1", Err: errors.New("timeout")}}},
			payload: map[string]any{
				"submission_id": "s",
				"text":          "essay",
				"criteria":      []map[string]any{{"name": "Content", "max_points": 10}},
			},
			role:   "grader",
			status: fiber.StatusBadGateway,
		},
		{
			name:      "no providers",
			providers: nil,
			payload: map[string]any{
				"submission_id": "s",
				"text":          "essay",
				"criteria":      []map[string]any{{"name": "Content", "max_points": 10}},
			},
			role:   "grader",
			status: fiber.StatusServiceUnavailable,
		},
		{
			name:      "forbidden role",
			providers: []ai.Provider{fakeLLM{reply: gradedReply}},
			payload:   map[string]any{"submission_id": "s", "text": "essay", "rubric_id": 1},
			role:      "student",
			status:    fiber.StatusForbidden,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupHandlerEnv(t, tc.providers...)
			status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/grading", tc.payload), tc.role)
			require.Equal(t, tc.status, status, body.Message)
			require.False(t, body.Success)
		})
	}
}

func TestGradingHandlerValidationDetails(t *testing.T) {
	env := setupHandlerEnv(t, fakeLLM{reply: gradedReply})

	status, body := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/grading", map[string]any{
		"text":      "essay",
		"rubric_id": 1,
	}), "grader")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "validation failed", body.Message)
	require.Equal(t, "required", body.Details["GradingRequest.SubmissionID"])
}

func TestGradingHandlerUpload(t *testing.T) {
	env := setupHandlerEnv(t, fakeLLM{reply: gradedReply})
	rubricID := createRubric(t, env)

	req := multipartRequest(t, "/api/v1/grading/upload", map[string]string{
		"rubric_id":         fmt.Sprint(rubricID),
		"number_of_repeats": "1",
	}, "essay-3.txt", []byte("Plain essay text about the moon."))
	status, body := env.do(t, req, "grader")
	require.Equal(t, fiber.StatusOK, status, body.Message)

	var payload gradedPayload
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.Equal(t, "essay-3.txt", payload.Result.SubmissionID)
	require.Equal(t, 12.0, payload.Result.Grade)
}

func TestGradingHandlerUploadRejectsBadInput(t *testing.T) {
	env := setupHandlerEnv(t, fakeLLM{reply: gradedReply})
	rubricID := createRubric(t, env)

	cases := map[string]*http.Request{
		"missing rubric": multipartRequest(t, "/api/v1/grading/upload", nil, "essay.txt", []byte("text")),
		"bad repeats": multipartRequest(t, "/api/v1/grading/upload", map[string]string{
			"rubric_id":         fmt.Sprint(rubricID),
			"number_of_repeats": "many",
		}, "essay.txt", []byte("text")),
		"unsupported file": multipartRequest(t, "/api/v1/grading/upload", map[string]string{
			"rubric_id": fmt.Sprint(rubricID),
		}, "essay.exe", []byte("MZ binary")),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := env.do(t, req, "grader")
			require.Equal(t, fiber.StatusBadRequest, status, body.Message)
		})
	}
}
