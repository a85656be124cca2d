package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"solar_portal_backend/internal/intake"
)

const TaskIntakeRetry = "leads.intake.retry"

// IntakeRetryPayload carries a contact submission that could not be stored.
type IntakeRetryPayload struct {
	Submission intake.Submission `json:"submission"`
	Reason     string            `json:"reason"`
	FailedAt   time.Time         `json:"failedAt"`
}

func NewIntakeRetryTask(payload IntakeRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntakeRetry, data), nil
}

func ParseIntakeRetryPayload(task *asynq.Task) (IntakeRetryPayload, error) {
	var payload IntakeRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return IntakeRetryPayload{}, err
	}
	return payload, nil
}
