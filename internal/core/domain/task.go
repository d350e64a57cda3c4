package domain

import (
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of deferred, retryable, persisted work. Payloads are plain
// JSON so tasks survive process restarts; the task type resolves to a handler
// through a static registry. Delivery is at-least-once: handlers must be
// idempotent.
type Task struct {
	ID        string          `db:"id"         json:"id"`
	Type      string          `db:"task_type"  json:"task_type"`
	Payload   json.RawMessage `db:"payload"    json:"payload"`
	Status    TaskStatus      `db:"status"     json:"status"`
	Attempts  int             `db:"attempts"   json:"attempts"`
	LastError string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
