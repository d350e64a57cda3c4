package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage"
)

type ClaimRepo struct {
	db *DB
}

func NewClaimRepo(db *DB) *ClaimRepo {
	return &ClaimRepo{db: db}
}

const claimColumns = `
	id, claim_reference, carrier, tracking_number, amount,
	COALESCE(country, 'FR') AS country, status, payment_status,
	escalation_level, COALESCE(automation_status, '') AS automation_status,
	submitted_at, last_follow_up_at
`

func (r *ClaimRepo) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	var c domain.Claim
	err := r.db.GetContext(ctx, &c, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClaimRepo) GetStagnant(ctx context.Context, minDays int) ([]*domain.Claim, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minDays)

	var claims []*domain.Claim
	err := r.db.SelectContext(ctx, &claims, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE status = $1
		  AND (last_follow_up_at IS NULL OR last_follow_up_at < $2)
		  AND submitted_at < $2
		ORDER BY submitted_at ASC
	`, domain.ClaimStatusSubmitted, cutoff)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *ClaimRepo) GetUnpaidSubmitted(ctx context.Context) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := r.db.SelectContext(ctx, &claims, `
		SELECT `+claimColumns+`
		FROM claims
		WHERE status = $1 AND payment_status = $2
		ORDER BY submitted_at ASC
	`, domain.ClaimStatusSubmitted, domain.PaymentStatusUnpaid)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// UpdateEscalation only applies while the stored level still equals fromLevel,
// keeping levels monotonic under concurrent workers.
func (r *ClaimRepo) UpdateEscalation(
	ctx context.Context,
	id string,
	fromLevel, toLevel domain.EscalationLevel,
	followUpAt time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE claims
		SET escalation_level = $1, last_follow_up_at = $2
		WHERE id = $3 AND escalation_level = $4
	`, toLevel, followUpAt, id, fromLevel)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrStaleClaim
	}
	return nil
}

func (r *ClaimRepo) UpdateAutomationStatus(ctx context.Context, id string, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE claims SET automation_status = $1 WHERE id = $2`, status, id)
	return err
}
