// Package audit wraps the escalation ledger with the engine's failure
// posture: writes fail loud because a missing ledger row breaks the legal
// evidence trail, reads fail open because observability must never block
// escalation work.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage"
)

type Log struct {
	repo storage.AuditRepository
	log  *slog.Logger
}

func NewLog(repo storage.AuditRepository, log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{repo: repo, log: log}
}

// LogPDFGeneration records a generated escalation document.
func (l *Log) LogPDFGeneration(
	ctx context.Context,
	claimID string,
	level domain.EscalationLevel,
	artifactRef string,
	details map[string]any,
) (int64, error) {
	return l.append(ctx, &domain.AuditEntry{
		ClaimID:         claimID,
		EscalationLevel: level,
		ActionType:      domain.AuditActionPDFGenerated,
		ArtifactRef:     artifactRef,
		Details:         details,
	})
}

// LogNotificationSent records an outbound notification and its outcome.
func (l *Log) LogNotificationSent(
	ctx context.Context,
	claimID string,
	level domain.EscalationLevel,
	recipient string,
	outcome domain.AuditOutcome,
	details map[string]any,
) (int64, error) {
	return l.append(ctx, &domain.AuditEntry{
		ClaimID:         claimID,
		EscalationLevel: level,
		ActionType:      domain.AuditActionNotificationSent,
		Recipient:       recipient,
		Outcome:         outcome,
		Details:         details,
	})
}

// LogCarrierResponse records an inbound carrier reaction to an escalation.
func (l *Log) LogCarrierResponse(
	ctx context.Context,
	claimID string,
	level domain.EscalationLevel,
	details map[string]any,
) (int64, error) {
	return l.append(ctx, &domain.AuditEntry{
		ClaimID:         claimID,
		EscalationLevel: level,
		ActionType:      domain.AuditActionCarrierResponse,
		Details:         details,
	})
}

func (l *Log) append(ctx context.Context, e *domain.AuditEntry) (int64, error) {
	id, err := l.repo.Append(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("append audit entry for claim %s: %w", e.ClaimID, err)
	}
	return id, nil
}

// History returns a claim's escalation trail, newest first. Returns an empty
// slice on storage failure.
func (l *Log) History(ctx context.Context, claimID string) []*domain.AuditEntry {
	entries, err := l.repo.ListByClaim(ctx, claimID)
	if err != nil {
		l.log.Error("list audit entries", "claim_id", claimID, "error", err)
		return []*domain.AuditEntry{}
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries
}

// Recent returns the newest entries across all claims. Returns an empty slice
// on storage failure.
func (l *Log) Recent(ctx context.Context, limit int) []*domain.AuditEntry {
	entries, err := l.repo.ListRecent(ctx, limit)
	if err != nil {
		l.log.Error("list recent audit entries", "error", err)
		return []*domain.AuditEntry{}
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries
}

// Statistics aggregates the ledger. Returns zeroed statistics on storage
// failure.
func (l *Log) Statistics(ctx context.Context) *domain.AuditStatistics {
	stats, err := l.repo.Statistics(ctx)
	if err != nil {
		l.log.Error("aggregate audit statistics", "error", err)
		return domain.EmptyAuditStatistics()
	}
	return stats
}
