package domain

import "time"

const (
	AlertTypeBypassDetected = "bypass_detected"

	AlertSeverityHigh   = "high"
	AlertSeverityMedium = "medium"
	AlertSeverityLow    = "low"
)

// Alert is an operator-facing anomaly row, e.g. a carrier that settled
// directly with the end customer while the claim is still tracked as open.
type Alert struct {
	ID                  int64     `db:"id"                    json:"id"`
	Type                string    `db:"alert_type"            json:"alert_type"`
	Severity            string    `db:"severity"              json:"severity"`
	Message             string    `db:"message"               json:"message"`
	RelatedResourceType string    `db:"related_resource_type" json:"related_resource_type"`
	RelatedResourceID   string    `db:"related_resource_id"   json:"related_resource_id"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
}
