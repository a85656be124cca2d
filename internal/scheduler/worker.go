package scheduler

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"

	"solar_portal_backend/internal/intake"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/logger"
)

// IntakeRetrier stores a previously failed contact submission.
type IntakeRetrier interface {
	Retry(ctx context.Context, sub intake.Submission) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	intake IntakeRetrier
	log    *logger.Logger
}

const defaultConcurrency = 10

// NewWorker builds the asynq server that drains the intake retry queue.
func NewWorker(cfg config.SchedulerConfig, retrier IntakeRetrier, log *logger.Logger) (*Worker, error) {
	settings, err := loadQueueSettings(cfg)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	w := &Worker{intake: retrier, log: log}
	w.server = asynq.NewServer(settings.redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{settings.queue: 1},
		Logger:      asynqLogger{log},
	})
	w.mux = w.routes()
	return w, nil
}

// asynqLogger routes asynq's own logging through the service logger.
type asynqLogger struct{ log *logger.Logger }

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...), "component", "asynq")
	os.Exit(1)
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIntakeRetry, w.handleIntakeRetry)
	return mux
}

func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
		return err
	}
	return nil
}

func (w *Worker) handleIntakeRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseIntakeRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	err = w.intake.Retry(ctx, payload.Submission)
	switch {
	case err == nil:
		w.log.Info("intake submission stored on retry",
			"source", payload.Submission.Source,
			"firstFailure", payload.Reason,
		)
		return nil
	case apperr.Is(err, apperr.KindValidation):
		// replaying an invalid submission never succeeds
		w.log.Warn("intake retry rejected", "source", payload.Submission.Source, "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		return err
	}
}
