package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"solar_portal_backend/internal/intake"
	"solar_portal_backend/platform/config"
)

// intakeRetryMaxAttempts bounds how long a submission is replayed before
// asynq archives it for manual inspection.
const intakeRetryMaxAttempts = 12

// Client enqueues jobs from the API process.
type Client struct {
	client *asynq.Client
	queue  string
	now    func() time.Time
}

var _ intake.FailureRecorder = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	settings, err := loadQueueSettings(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(settings.redis), queue: settings.queue, now: time.Now}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// RecordIntakeFailure queues sub for the worker to store once the CRM is back.
func (c *Client) RecordIntakeFailure(ctx context.Context, sub intake.Submission, reason string) error {
	return c.EnqueueIntakeRetry(ctx, IntakeRetryPayload{Submission: sub, Reason: reason, FailedAt: c.now().UTC()})
}

func (c *Client) EnqueueIntakeRetry(ctx context.Context, payload IntakeRetryPayload) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler: client not configured")
	}
	task, err := NewIntakeRetryTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(intakeRetryMaxAttempts))
	return err
}
