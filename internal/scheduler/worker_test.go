package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"solar_portal_backend/internal/intake"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
)

type stubRetrier struct {
	err  error
	seen []intake.Submission
}

func (s *stubRetrier) Retry(_ context.Context, sub intake.Submission) error {
	s.seen = append(s.seen, sub)
	return s.err
}

func newTestWorker(r IntakeRetrier) *Worker {
	w := &Worker{intake: r, log: logger.Discard()}
	w.mux = w.routes()
	return w
}

func intakeTask(t *testing.T) *asynq.Task {
	t.Helper()
	email := "visitor@example.com"
	task, err := NewIntakeRetryTask(IntakeRetryPayload{
		Submission: intake.Submission{
			Name:       "Visitor",
			Email:      &email,
			Source:     "site_form",
			ReceivedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		Reason:   "connection refused",
		FailedAt: time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewIntakeRetryTask: %v", err)
	}
	return task
}

func TestHandleIntakeRetry(t *testing.T) {
	tests := []struct {
		name      string
		retryErr  error
		wantErr   bool
		skipRetry bool
	}{
		{name: "stored", retryErr: nil},
		{name: "crm still down", retryErr: errors.New("dial tcp: connection refused"), wantErr: true},
		{name: "invalid submission", retryErr: apperr.Validation("invalid email"), wantErr: true, skipRetry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrier := &stubRetrier{err: tt.retryErr}
			w := newTestWorker(retrier)

			err := w.mux.ProcessTask(context.Background(), intakeTask(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got := errors.Is(err, asynq.SkipRetry); got != tt.skipRetry {
				t.Fatalf("expected skipRetry=%v, got %v (err %v)", tt.skipRetry, got, err)
			}
			if len(retrier.seen) != 1 {
				t.Fatalf("expected one retry call, got %d", len(retrier.seen))
			}
			sub := retrier.seen[0]
			if sub.Name != "Visitor" || sub.Email == nil || *sub.Email != "visitor@example.com" {
				t.Fatalf("submission not carried through: %+v", sub)
			}
		})
	}
}

func TestHandleIntakeRetryRejectsCorruptPayload(t *testing.T) {
	retrier := &stubRetrier{}
	w := newTestWorker(retrier)

	err := w.mux.ProcessTask(context.Background(), asynq.NewTask(TaskIntakeRetry, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for corrupt payload, got %v", err)
	}
	if len(retrier.seen) != 0 {
		t.Fatalf("retrier must not run for a corrupt payload")
	}
}

func TestRedisClientOpt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		insecure    bool
		wantAddr    string
		wantDB      int
		wantTLS     bool
		wantSkipTLS bool
	}{
		{name: "plain", url: "redis://:pw@localhost:6379/2", wantAddr: "localhost:6379", wantDB: 2},
		{name: "tls", url: "rediss://cache.internal:6380", wantAddr: "cache.internal:6380", wantTLS: true},
		{name: "tls insecure", url: "rediss://cache.internal:6380", insecure: true, wantAddr: "cache.internal:6380", wantTLS: true, wantSkipTLS: true},
		{name: "insecure without tls scheme", url: "redis://localhost:6379", insecure: true, wantAddr: "localhost:6379", wantTLS: true, wantSkipTLS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := redisClientOpt(tt.url, tt.insecure)
			if err != nil {
				t.Fatalf("redisClientOpt: %v", err)
			}
			if opt.Addr != tt.wantAddr || opt.DB != tt.wantDB {
				t.Fatalf("unexpected options %+v", opt)
			}
			if (opt.TLSConfig != nil) != tt.wantTLS {
				t.Fatalf("expected tls=%v, got %+v", tt.wantTLS, opt.TLSConfig)
			}
			if opt.TLSConfig != nil && opt.TLSConfig.InsecureSkipVerify != tt.wantSkipTLS {
				t.Fatalf("expected InsecureSkipVerify=%v", tt.wantSkipTLS)
			}
		})
	}
}

func TestRedisClientOptRejectsBadURL(t *testing.T) {
	if _, err := redisClientOpt("http://not-redis", false); err == nil {
		t.Fatal("expected invalid scheme to be rejected")
	}
}

func TestEnqueueWithoutClientFails(t *testing.T) {
	var c *Client
	if err := c.EnqueueIntakeRetry(context.Background(), IntakeRetryPayload{}); err == nil {
		t.Fatal("expected error from unconfigured client")
	}
}

type queueConfig struct {
	url   string
	queue string
}

func (c queueConfig) GetRedisURL() string       { return c.url }
func (c queueConfig) GetRedisTLSInsecure() bool { return false }
func (c queueConfig) GetAsynqQueueName() string { return c.queue }
func (c queueConfig) GetAsynqConcurrency() int  { return 0 }

func TestLoadQueueSettings(t *testing.T) {
	if _, err := loadQueueSettings(queueConfig{}); !errors.Is(err, errNoRedis) {
		t.Fatalf("expected errNoRedis, got %v", err)
	}

	settings, err := loadQueueSettings(queueConfig{url: "redis://localhost:6379/1"})
	if err != nil {
		t.Fatalf("loadQueueSettings: %v", err)
	}
	if settings.queue != defaultQueue || settings.redis.DB != 1 {
		t.Fatalf("unexpected settings %+v", settings)
	}

	settings, err = loadQueueSettings(queueConfig{url: "redis://localhost:6379", queue: "intake"})
	if err != nil || settings.queue != "intake" {
		t.Fatalf("expected configured queue, got %+v (%v)", settings, err)
	}
}
