package domain

import "time"

type AuditAction string

const (
	AuditActionPDFGenerated     AuditAction = "pdf_generated"
	AuditActionNotificationSent AuditAction = "notification_sent"
	AuditActionCarrierResponse  AuditAction = "carrier_response"
)

type AuditOutcome string

const (
	AuditOutcomeSent   AuditOutcome = "sent"
	AuditOutcomeFailed AuditOutcome = "failed"
)

// AuditEntry is one row of the escalation ledger. Entries are append-only:
// they constitute the evidentiary trail of legal correspondence and are never
// updated or deleted.
type AuditEntry struct {
	ID              int64           `db:"id"               json:"id"`
	ClaimID         string          `db:"claim_id"         json:"claim_id"`
	EscalationLevel EscalationLevel `db:"escalation_level" json:"escalation_level"`
	ActionType      AuditAction     `db:"action_type"      json:"action_type"`
	ArtifactRef     string          `db:"artifact_ref"     json:"artifact_ref,omitempty"`
	Recipient       string          `db:"recipient"        json:"recipient,omitempty"`
	Outcome         AuditOutcome    `db:"outcome"          json:"outcome,omitempty"`
	Details         map[string]any  `db:"-"                json:"details,omitempty"`
	CreatedAt       time.Time       `db:"created_at"       json:"created_at"`
}

// AuditStatistics aggregates the ledger for operators.
type AuditStatistics struct {
	Total       int                     `json:"total"`
	ByLevel     map[EscalationLevel]int `json:"by_level"`
	ByOutcome   map[AuditOutcome]int    `json:"by_outcome"`
	SuccessRate float64                 `json:"success_rate"`
}

// EmptyAuditStatistics is what read paths return when storage is unreachable;
// observability reads fail open rather than propagate.
func EmptyAuditStatistics() *AuditStatistics {
	return &AuditStatistics{
		ByLevel:   make(map[EscalationLevel]int),
		ByOutcome: make(map[AuditOutcome]int),
	}
}
