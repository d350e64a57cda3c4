package domain

import "time"

type ClaimStatus string

const (
	ClaimStatusDraft     ClaimStatus = "draft"
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusResolved  ClaimStatus = "resolved"
	ClaimStatusRejected  ClaimStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// EscalationLevel is the ordinal stage of outreach pressure applied to a
// carrier. Levels only ever move upward for a given claim.
type EscalationLevel int

const (
	LevelNone          EscalationLevel = 0
	LevelStatusRequest EscalationLevel = 1
	LevelWarning       EscalationLevel = 2
	LevelFormalNotice  EscalationLevel = 3
)

func (l EscalationLevel) String() string {
	switch l {
	case LevelStatusRequest:
		return "status_request"
	case LevelWarning:
		return "warning"
	case LevelFormalNotice:
		return "formal_notice"
	default:
		return "none"
	}
}

// AutomationStatusActionRequired flags a claim that reached formal notice and
// now needs a human decision (court filing, write-off).
const AutomationStatusActionRequired = "action_required"

// Claim is a compensation dispute filed against a carrier. The claim store is
// owned elsewhere; this engine reads claims and updates only the escalation
// fields.
type Claim struct {
	ID               string          `db:"id"                json:"id"`
	Reference        string          `db:"claim_reference"   json:"claim_reference"`
	Carrier          string          `db:"carrier"           json:"carrier"`
	TrackingNumber   string          `db:"tracking_number"   json:"tracking_number"`
	Amount           float64         `db:"amount"            json:"amount"`
	Country          string          `db:"country"           json:"country"`
	Status           ClaimStatus     `db:"status"            json:"status"`
	PaymentStatus    PaymentStatus   `db:"payment_status"    json:"payment_status"`
	EscalationLevel  EscalationLevel `db:"escalation_level"  json:"escalation_level"`
	AutomationStatus string          `db:"automation_status" json:"automation_status"`
	SubmittedAt      time.Time       `db:"submitted_at"      json:"submitted_at"`
	LastFollowUpAt   *time.Time      `db:"last_follow_up_at" json:"last_follow_up_at,omitempty"`
}
