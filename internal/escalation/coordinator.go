// Package escalation drives the follow-up lifecycle for stagnant claims:
// scanning for carrier silence, deciding the next pressure level, enqueuing
// the durable task that realizes it, and advancing the claim's escalation
// state.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/escalation/policy"
	"github.com/vietddude/recourse/internal/infra/storage"
	"github.com/vietddude/recourse/internal/metrics"
	"github.com/vietddude/recourse/internal/queue"
)

// Counts summarizes one follow-up scan, broken down by the action taken.
type Counts struct {
	Scanned        int `json:"scanned"`
	StatusRequests int `json:"status_requests"`
	Warnings       int `json:"warnings"`
	FormalNotices  int `json:"formal_notices"`
	Escalated      int `json:"escalated"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
}

// TaskPayload is the JSON body of every escalation task.
type TaskPayload struct {
	ClaimID string                 `json:"claim_id"`
	Level   domain.EscalationLevel `json:"level"`
}

// Coordinator runs the follow-up scan. It owns the ordering guarantee: a
// claim's escalation level only advances after the task realizing that level
// is durably enqueued, so a crash between the two yields a duplicate task
// (idempotent) rather than a silently skipped escalation.
type Coordinator struct {
	claims     storage.ClaimRepository
	tasks      *queue.Queue
	thresholds policy.Thresholds
	log        *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewCoordinator(
	claims storage.ClaimRepository,
	tasks *queue.Queue,
	thresholds policy.Thresholds,
	log *slog.Logger,
) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		claims:     claims,
		tasks:      tasks,
		thresholds: thresholds,
		log:        log,
		now:        time.Now,
	}
}

// ProcessFollowUps scans stagnant submitted claims and escalates each one
// that crossed a silence threshold. One claim failing never aborts the scan;
// its error is counted and the scan moves on.
func (c *Coordinator) ProcessFollowUps(ctx context.Context) (Counts, error) {
	var counts Counts

	claims, err := c.claims.GetStagnant(ctx, c.thresholds.StatusRequest)
	if err != nil {
		return counts, fmt.Errorf("scan stagnant claims: %w", err)
	}
	counts.Scanned = len(claims)

	for _, claim := range claims {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		level, err := c.processClaim(ctx, claim)
		switch {
		case err != nil:
			counts.Errors++
			c.log.Error("escalate claim",
				"claim_id", claim.ID, "claim_reference", claim.Reference, "error", err)
		case level == domain.LevelStatusRequest:
			counts.StatusRequests++
			counts.Escalated++
		case level == domain.LevelWarning:
			counts.Warnings++
			counts.Escalated++
		case level == domain.LevelFormalNotice:
			counts.FormalNotices++
			counts.Escalated++
		default:
			counts.Skipped++
		}
	}

	c.log.Info("follow-up scan finished",
		"scanned", counts.Scanned,
		"status_requests", counts.StatusRequests,
		"warnings", counts.Warnings,
		"formal_notices", counts.FormalNotices,
		"skipped", counts.Skipped,
		"errors", counts.Errors)
	return counts, nil
}

// processClaim escalates one claim if due, returning the level reached or
// LevelNone when nothing fired.
func (c *Coordinator) processClaim(ctx context.Context, claim *domain.Claim) (domain.EscalationLevel, error) {
	days := c.daysSinceSubmission(claim)

	action, due := c.thresholds.NextAction(claim.EscalationLevel, days)
	if !due {
		return domain.LevelNone, nil
	}

	payload := TaskPayload{ClaimID: claim.ID, Level: action.Level}
	taskID, err := c.tasks.Enqueue(ctx, action.TaskType, payload)
	if err != nil {
		return domain.LevelNone, fmt.Errorf("enqueue %s: %w", action.TaskType, err)
	}

	err = c.claims.UpdateEscalation(ctx, claim.ID, claim.EscalationLevel, action.Level, c.now().UTC())
	if errors.Is(err, storage.ErrStaleClaim) {
		// Another scan won the race. The duplicate task is harmless: its
		// handler re-reads the claim and tolerates redelivery.
		c.log.Warn("claim escalated concurrently, duplicate task enqueued",
			"claim_id", claim.ID, "task_id", taskID)
		return domain.LevelNone, nil
	}
	if err != nil {
		return domain.LevelNone, fmt.Errorf("update escalation to %s: %w", action.Level, err)
	}

	metrics.EscalationActions.WithLabelValues(action.Level.String()).Inc()
	c.log.Info("claim escalated",
		"claim_id", claim.ID,
		"claim_reference", claim.Reference,
		"carrier", claim.Carrier,
		"from_level", claim.EscalationLevel.String(),
		"to_level", action.Level.String(),
		"days_since_submission", days,
		"task_id", taskID)
	return action.Level, nil
}

// daysSinceSubmission returns whole UTC days since the claim was submitted.
// The thresholds are anchored on submission, never on the last follow-up:
// following up does not reset the carrier's clock, so a claim 22 days old at
// level 1 still jumps straight to formal notice. Partial days round down, so
// a threshold fires only once fully elapsed.
func (c *Coordinator) daysSinceSubmission(claim *domain.Claim) int {
	elapsed := c.now().UTC().Sub(claim.SubmittedAt.UTC())
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}
