package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
)

var (
	// ErrNotFound is returned when a row doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleClaim is returned when an optimistic escalation update loses the
	// race: the claim's level no longer equals the value that was read.
	ErrStaleClaim = errors.New("claim escalation level changed concurrently")
)

// ClaimRepository reads claims and conditionally updates their escalation
// fields. The claim store itself is owned by the wider application.
type ClaimRepository interface {
	// GetByID retrieves a single claim.
	GetByID(ctx context.Context, id string) (*domain.Claim, error)

	// GetStagnant retrieves submitted claims with no follow-up within the last
	// minDays days that were submitted at least minDays days ago.
	GetStagnant(ctx context.Context, minDays int) ([]*domain.Claim, error)

	// GetUnpaidSubmitted retrieves submitted claims still marked unpaid.
	GetUnpaidSubmitted(ctx context.Context) ([]*domain.Claim, error)

	// UpdateEscalation advances a claim's escalation level with an optimistic
	// check: the update applies only while the stored level still equals
	// fromLevel. Returns ErrStaleClaim otherwise.
	UpdateEscalation(
		ctx context.Context,
		id string,
		fromLevel, toLevel domain.EscalationLevel,
		followUpAt time.Time,
	) error

	// UpdateAutomationStatus sets the claim's automation flag.
	UpdateAutomationStatus(ctx context.Context, id string, status string) error
}

// TaskRepository is the durable backing of the task queue.
type TaskRepository interface {
	// Create persists a new pending task.
	Create(ctx context.Context, t *domain.Task) error

	// GetByID retrieves a task.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// DequeueBatch returns up to limit oldest pending tasks (FIFO by creation
	// time) without changing their status.
	DequeueBatch(ctx context.Context, limit int) ([]*domain.Task, error)

	// ClaimNext atomically moves the oldest pending task to processing under a
	// row-level claim, so parallel workers never double-process. Returns
	// (nil, nil) when the queue is empty.
	ClaimNext(ctx context.Context) (*domain.Task, error)

	// MarkProcessing marks a task as being executed.
	MarkProcessing(ctx context.Context, id string) error

	// MarkCompleted marks a task terminal-successful.
	MarkCompleted(ctx context.Context, id string) error

	// Requeue returns a failed task to pending with its attempt count and last
	// error recorded.
	Requeue(ctx context.Context, id string, attempts int, lastError string) error

	// MarkFailed marks a task terminal-failed after retry exhaustion.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error

	// ReclaimStale returns tasks stuck in processing longer than lease back to
	// pending, reporting how many were reclaimed.
	ReclaimStale(ctx context.Context, lease time.Duration) (int, error)

	// CountByStatus returns task counts per status for observability.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}

// AuditRepository is the append-only escalation ledger.
type AuditRepository interface {
	// Append inserts an entry and returns its ID. Entries are never updated
	// or deleted.
	Append(ctx context.Context, e *domain.AuditEntry) (int64, error)

	// ListByClaim retrieves a claim's escalation history, newest first.
	ListByClaim(ctx context.Context, claimID string) ([]*domain.AuditEntry, error)

	// ListRecent retrieves the newest entries across all claims.
	ListRecent(ctx context.Context, limit int) ([]*domain.AuditEntry, error)

	// Statistics aggregates the ledger by level and outcome.
	Statistics(ctx context.Context) (*domain.AuditStatistics, error)
}

// AlertRepository stores operator-facing anomaly alerts.
type AlertRepository interface {
	// Create persists an alert.
	Create(ctx context.Context, a *domain.Alert) error

	// ExistsForResource reports whether an alert of the given type already
	// references the resource, so scans stay idempotent.
	ExistsForResource(ctx context.Context, alertType, resourceType, resourceID string) (bool, error)
}
