package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebot-go/internal/observability"
)

// GradingEvent is published after every successful grading run.
type GradingEvent struct {
	RunID        string    `json:"run_id"`
	SubmissionID string    `json:"submission_id"`
	Mode         string    `json:"mode"`
	Method       string    `json:"method"`
	Status       string    `json:"status"`
	Grade        *float64  `json:"grade"`
	OutOf        int       `json:"out_of"`
	CompletedAt  time.Time `json:"completed_at"`
}

// EventPublisher fans grading events out to downstream consumers.
type EventPublisher interface {
	PublishGradingCompleted(ctx context.Context, event GradingEvent) error
}

type gradingPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewGradingPublisher publishes to Redis pub/sub and/or NATS. Either client may be nil.
func NewGradingPublisher(redisClient *redis.Client, natsConn *nats.Conn, channel string, logger zerolog.Logger) EventPublisher {
	if channel == "" {
		channel = "grading.completed"
	}
	return &gradingPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(channel, ":", "."),
		logger:       logger.With().Str("component", "grading_publisher").Logger(),
	}
}

func (p *gradingPublisher) PublishGradingCompleted(ctx context.Context, event GradingEvent) error {
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.EventPublishFailures().WithLabelValues("redis").Inc()
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.EventPublishFailures().WithLabelValues("nats").Inc()
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}

	if len(errs) == 0 {
		p.logger.Debug().Str("run_id", event.RunID).Msg("grading event published")
	}
	return errors.Join(errs...)
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that discards events.
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishGradingCompleted(context.Context, GradingEvent) error {
	return nil
}
