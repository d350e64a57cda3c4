package postgres

import (
	"context"

	"github.com/vietddude/recourse/internal/core/domain"
)

type AlertRepo struct {
	db *DB
}

func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO system_alerts
			(alert_type, severity, message, related_resource_type, related_resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, a.Type, a.Severity, a.Message, a.RelatedResourceType, a.RelatedResourceID).Scan(&a.ID)
}

func (r *AlertRepo) ExistsForResource(
	ctx context.Context,
	alertType, resourceType, resourceID string,
) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM system_alerts
			WHERE alert_type = $1 AND related_resource_type = $2 AND related_resource_id = $3
		)
	`, alertType, resourceType, resourceID)
	return exists, err
}
