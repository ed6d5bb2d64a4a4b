package analysis

import (
	"context"
	"time"
)

// Event announces a job reaching a terminal status.
type Event struct {
	JobID        string    `json:"job_id"`
	ResultID     string    `json:"result_id"`
	UserID       uint64    `json:"user_id"`
	ModelKey     string    `json:"model"`
	Status       JobStatus `json:"status"`
	OverallScore *int      `json:"overall_score,omitempty"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier publishes job events. Publishing is best effort.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) error { return nil }
