package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/carrier"
	"github.com/vietddude/recourse/internal/infra/storage"
	"github.com/vietddude/recourse/internal/metrics"
)

// CompensationSource answers whether a carrier settled a parcel directly with
// the end customer, bypassing the claim.
type CompensationSource interface {
	CompensationIssued(ctx context.Context, carrierName, trackingNumber string, overrides carrier.Credentials) (bool, error)
}

// BypassDetector scans unpaid submitted claims for carrier-side direct
// compensation. A detected bypass raises exactly one operator alert per claim;
// it never mutates the claim itself, since whether a bypass settles the claim
// is a human call.
type BypassDetector struct {
	claims storage.ClaimRepository
	alerts storage.AlertRepository
	source CompensationSource
	log    *slog.Logger
	now    func() time.Time
}

func NewBypassDetector(
	claims storage.ClaimRepository,
	alerts storage.AlertRepository,
	source CompensationSource,
	log *slog.Logger,
) *BypassDetector {
	if log == nil {
		log = slog.Default()
	}
	return &BypassDetector{
		claims: claims,
		alerts: alerts,
		source: source,
		log:    log,
		now:    time.Now,
	}
}

// BypassCounts summarizes one detection scan.
type BypassCounts struct {
	Scanned  int `json:"scanned"`
	Detected int `json:"detected"`
	Errors   int `json:"errors"`
}

// DetectPotentialBypass scans unpaid submitted claims. Compensation-source
// failures for one claim are counted and skipped, never fatal to the scan.
func (d *BypassDetector) DetectPotentialBypass(ctx context.Context) (BypassCounts, error) {
	var counts BypassCounts

	claims, err := d.claims.GetUnpaidSubmitted(ctx)
	if err != nil {
		return counts, fmt.Errorf("scan unpaid claims: %w", err)
	}
	counts.Scanned = len(claims)

	for _, claim := range claims {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		detected, err := d.checkClaim(ctx, claim)
		if err != nil {
			counts.Errors++
			d.log.Error("bypass check",
				"claim_id", claim.ID, "tracking_number", claim.TrackingNumber, "error", err)
			continue
		}
		if detected {
			counts.Detected++
		}
	}

	d.log.Info("bypass scan finished",
		"scanned", counts.Scanned, "detected", counts.Detected, "errors", counts.Errors)
	return counts, nil
}

func (d *BypassDetector) checkClaim(ctx context.Context, claim *domain.Claim) (bool, error) {
	issued, err := d.source.CompensationIssued(ctx, claim.Carrier, claim.TrackingNumber, nil)
	if err != nil {
		return false, fmt.Errorf("compensation lookup: %w", err)
	}
	if !issued {
		return false, nil
	}

	exists, err := d.alerts.ExistsForResource(ctx, domain.AlertTypeBypassDetected, "claim", claim.ID)
	if err != nil {
		return false, fmt.Errorf("check existing alert: %w", err)
	}
	if exists {
		return false, nil
	}

	alert := &domain.Alert{
		Type:     domain.AlertTypeBypassDetected,
		Severity: domain.AlertSeverityHigh,
		Message: fmt.Sprintf("carrier %s appears to have compensated tracking %s directly; claim %s is still marked unpaid",
			claim.Carrier, claim.TrackingNumber, claim.Reference),
		RelatedResourceType: "claim",
		RelatedResourceID:   claim.ID,
		CreatedAt:           d.now().UTC(),
	}
	if err := d.alerts.Create(ctx, alert); err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}

	metrics.BypassAlerts.Inc()
	d.log.Warn("potential bypass detected",
		"claim_id", claim.ID,
		"claim_reference", claim.Reference,
		"carrier", claim.Carrier,
		"tracking_number", claim.TrackingNumber,
		"alert_id", alert.ID)
	return true, nil
}
