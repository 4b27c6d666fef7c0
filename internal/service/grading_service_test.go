package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebot-go/internal/dto"
	"github.com/noah-isme/gradebot-go/internal/grading"
	"github.com/noah-isme/gradebot-go/internal/loader"
	"github.com/noah-isme/gradebot-go/pkg/ai"
	"github.com/noah-isme/gradebot-go/pkg/textanalysis"
)

type stubLLM struct {
	info  ai.ModelInfo
	reply string
	err   error
}

func (s stubLLM) GetResponse(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func (s stubLLM) GenerateText(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	return "summary", s.err
}

func (s stubLLM) ModelInfo() ai.ModelInfo {
	return s.info
}

type stubRubricResolver struct {
	RubricService
	rubric grading.Rubric
	err    error
}

func (s stubRubricResolver) Resolve(ctx context.Context, id uint) (grading.Rubric, error) {
	return s.rubric, s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []GradingEvent
	err    error
}

func (p *recordingPublisher) PublishGradingCompleted(ctx context.Context, event GradingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fixedAnalyzer struct{}

func (fixedAnalyzer) AnalyzeSentiment(string) textanalysis.Sentiment { return textanalysis.Sentiment{} }
func (fixedAnalyzer) AnalyzeStyle(text string) textanalysis.Style {
	return textanalysis.Style{WordCount: 3, Readability: 80}
}

const twoCriteriaReply = "Criterion: Content\nGrade: 8\nFeedback: Good.\nCriterion: Clarity\nGrade: 4\nFeedback: Clear.\nOverall: Nice work."

func storedRubric() grading.Rubric {
	return grading.MustRubric(
		grading.Criterion{Name: "Content", MaxPoints: 10},
		grading.Criterion{Name: "Clarity", MaxPoints: 5},
	)
}

func newGradingService(providers []ai.Provider, publisher EventPublisher, rubrics RubricService) GradingService {
	return NewGradingService(GradingServiceConfig{
		Rubrics:   rubrics,
		Providers: providers,
		Defaults:  grading.Options{Method: grading.SimpleAverage},
		Analyzer:  fixedAnalyzer{},
		Publisher: publisher,
	}, zerolog.Nop())
}

func TestGradingServiceGradeWithStoredRubric(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := newGradingService(
		[]ai.Provider{stubLLM{info: ai.ModelInfo{ModelName: "gpt-4o"}, reply: twoCriteriaReply}},
		publisher,
		stubRubricResolver{rubric: storedRubric()},
	)

	resp, err := svc.Grade(context.Background(), dto.GradingRequest{SubmissionID: "s-1", Text: "An essay.", RubricID: 7})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RunID)
	require.Equal(t, dto.ModeRubric, resp.Mode)
	require.NotNil(t, resp.Result)
	require.Equal(t, float64(12), resp.Result.Grade)
	require.Equal(t, 15, resp.Result.OutOf)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	require.Equal(t, resp.RunID, event.RunID)
	require.Equal(t, "s-1", event.SubmissionID)
	require.Equal(t, grading.StatusGraded, event.Status)
	require.Equal(t, float64(12), *event.Grade)
	require.Equal(t, "simple_average", event.Method)
}

func TestGradingServiceInlineCriteriaAndOverrides(t *testing.T) {
	svc := newGradingService(
		[]ai.Provider{
			stubLLM{info: ai.ModelInfo{ModelName: "a"}, reply: "Criterion: Content\nGrade: 70\nFeedback: ok"},
			stubLLM{info: ai.ModelInfo{ModelName: "b"}, reply: "Criterion: Content\nGrade: 80\nFeedback: ok"},
			stubLLM{info: ai.ModelInfo{ModelName: "c"}, reply: "Criterion: Content\nGrade: 100\nFeedback: ok"},
		},
		nil,
		nil,
	)

	resp, err := svc.Grade(context.Background(), dto.GradingRequest{
		SubmissionID:     "s-2",
		Text:             "text",
		Criteria:         []dto.CriterionPayload{{Name: "Content", MaxPoints: 100}},
		GradingOverrides: dto.GradingOverrides{AggregationMethod: "median"},
	})
	require.NoError(t, err)
	require.Equal(t, float64(80), resp.Result.Grade)
	require.Equal(t, grading.Median, resp.Result.Method)
}

func TestGradingServiceErrors(t *testing.T) {
	publisher := &recordingPublisher{}
	providerErr := &ai.ProviderError{Provider: "OpenAI", Model: "gpt-4o", Err: errors.New("timeout")}
	svc := newGradingService(
		[]ai.Provider{stubLLM{info: ai.ModelInfo{ModelName: "gpt-4o"}, err: providerErr}},
		publisher,
		stubRubricResolver{err: ErrRubricNotFound},
	)
	ctx := context.Background()

	_, err := svc.Grade(ctx, dto.GradingRequest{SubmissionID: "s", Text: "t", RubricID: 3})
	require.True(t, errors.Is(err, ErrRubricNotFound))

	_, err = svc.Grade(ctx, dto.GradingRequest{
		SubmissionID:     "s",
		Text:             "t",
		Criteria:         []dto.CriterionPayload{{Name: "Content", MaxPoints: 1}},
		GradingOverrides: dto.GradingOverrides{AggregationMethod: "mode_7"},
	})
	require.True(t, errors.Is(err, grading.ErrUnsupportedMethod))

	_, err = svc.Grade(ctx, dto.GradingRequest{SubmissionID: "s", Text: "t", Criteria: []dto.CriterionPayload{{Name: "Content", MaxPoints: 1}}})
	var target *ai.ProviderError
	require.True(t, errors.As(err, &target))

	_, err = svc.Grade(ctx, dto.GradingRequest{SubmissionID: "s"})
	require.Error(t, err)

	require.Empty(t, publisher.events)
}

func TestGradingServicePublishFailureDoesNotFailRequest(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := newGradingService(
		[]ai.Provider{stubLLM{info: ai.ModelInfo{ModelName: "m"}, reply: "I cannot grade this."}},
		publisher,
		stubRubricResolver{rubric: storedRubric()},
	)

	resp, err := svc.Grade(context.Background(), dto.GradingRequest{SubmissionID: "s", Text: "t", RubricID: 1})
	require.NoError(t, err)
	require.Equal(t, grading.StatusUnparseable, resp.Result.Status)
	require.Equal(t, grading.StatusUnparseable, publisher.events[0].Status)
}

func TestGradingServiceScoreMode(t *testing.T) {
	svc := newGradingService(
		[]ai.Provider{stubLLM{info: ai.ModelInfo{ModelName: "m"}, reply: "Grade: 13.2\nFeedback: Solid."}},
		nil,
		stubRubricResolver{rubric: storedRubric()},
	)

	resp, err := svc.Grade(context.Background(), dto.GradingRequest{
		SubmissionID:     "s",
		Text:             "t",
		RubricID:         1,
		GradingOverrides: dto.GradingOverrides{Mode: dto.ModeScore},
	})
	require.NoError(t, err)
	require.Nil(t, resp.Result)
	require.NotNil(t, resp.Score)
	require.Equal(t, 13.0, *resp.Score.Grade)
	require.Equal(t, "Solid.", *resp.Score.Feedback)
}

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestGradingServiceGradeUpload(t *testing.T) {
	svc := newGradingService(
		[]ai.Provider{stubLLM{info: ai.ModelInfo{ModelName: "m"}, reply: twoCriteriaReply}},
		nil,
		stubRubricResolver{rubric: storedRubric()},
	)

	file := multipartFile(t, "essay.html", []byte("<p>My <b>essay</b></p>"))
	resp, err := svc.GradeUpload(context.Background(), file, dto.GradingUploadRequest{RubricID: 1})
	require.NoError(t, err)
	require.Equal(t, "essay.html", resp.Result.SubmissionID)
	require.Equal(t, float64(12), resp.Result.Grade)

	binary := multipartFile(t, "essay.txt", []byte{0x00, 0x01, 0xff, 0xfe, 0x00})
	_, err = svc.GradeUpload(context.Background(), binary, dto.GradingUploadRequest{RubricID: 1})
	require.True(t, errors.Is(err, loader.ErrUnsupportedSubmission))
}

func TestGradingPublisherRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "grading.completed")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewGradingPublisher(client, nil, "", zerolog.Nop())
	grade := 82.5
	require.NoError(t, publisher.PublishGradingCompleted(ctx, GradingEvent{RunID: "run-1", SubmissionID: "s", Status: grading.StatusGraded, Grade: &grade, OutOf: 100}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event GradingEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, "run-1", event.RunID)
	require.Equal(t, 82.5, *event.Grade)
	require.False(t, event.CompletedAt.IsZero())
}

func TestGradingPublisherReportsRedisFailure(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	publisher := NewGradingPublisher(client, nil, "grading.completed", zerolog.Nop())
	err = publisher.PublishGradingCompleted(context.Background(), GradingEvent{RunID: "run-2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis publish")
}
