package postgres

import (
	"context"
	"encoding/json"

	"github.com/vietddude/recourse/internal/core/domain"
)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// auditRow carries the JSON details column alongside the scanned entry.
type auditRow struct {
	domain.AuditEntry
	DetailsJSON []byte `db:"details"`
}

func (row *auditRow) entry() *domain.AuditEntry {
	e := row.AuditEntry
	if len(row.DetailsJSON) > 0 {
		// Malformed details are kept nil rather than failing the read.
		_ = json.Unmarshal(row.DetailsJSON, &e.Details)
	}
	return &e
}

const auditColumns = `
	id, claim_id, escalation_level, action_type,
	COALESCE(artifact_ref, '') AS artifact_ref,
	COALESCE(recipient, '') AS recipient,
	COALESCE(outcome, '') AS outcome,
	details, created_at
`

// Append is insert-only: the ledger has no update or delete path.
func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEntry) (int64, error) {
	var detailsJSON []byte
	if e.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			return 0, err
		}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO escalation_log
			(claim_id, escalation_level, action_type, artifact_ref, recipient, outcome, details, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NOW())
		RETURNING id
	`, e.ClaimID, e.EscalationLevel, e.ActionType, e.ArtifactRef, e.Recipient, e.Outcome, detailsJSON).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *AuditRepo) ListByClaim(ctx context.Context, claimID string) ([]*domain.AuditEntry, error) {
	var rows []*auditRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+auditColumns+`
		FROM escalation_log
		WHERE claim_id = $1
		ORDER BY created_at DESC
	`, claimID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows), nil
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	var rows []*auditRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+auditColumns+`
		FROM escalation_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows), nil
}

func (r *AuditRepo) Statistics(ctx context.Context) (*domain.AuditStatistics, error) {
	stats := domain.EmptyAuditStatistics()

	if err := r.db.GetContext(ctx, &stats.Total,
		`SELECT COUNT(*) FROM escalation_log`); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT escalation_level, COUNT(*) FROM escalation_log GROUP BY escalation_level
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var level domain.EscalationLevel
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.ByLevel[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outcomeRows, err := r.db.QueryxContext(ctx, `
		SELECT outcome, COUNT(*) FROM escalation_log
		WHERE action_type = $1 AND outcome IS NOT NULL
		GROUP BY outcome
	`, domain.AuditActionNotificationSent)
	if err != nil {
		return nil, err
	}
	defer outcomeRows.Close()
	for outcomeRows.Next() {
		var outcome domain.AuditOutcome
		var count int
		if err := outcomeRows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats.ByOutcome[outcome] = count
	}
	if err := outcomeRows.Err(); err != nil {
		return nil, err
	}

	sent := stats.ByOutcome[domain.AuditOutcomeSent]
	failed := stats.ByOutcome[domain.AuditOutcomeFailed]
	if sent+failed > 0 {
		stats.SuccessRate = float64(sent) / float64(sent+failed) * 100
	}
	return stats, nil
}

func collectEntries(rows []*auditRow) []*domain.AuditEntry {
	entries := make([]*domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries
}
