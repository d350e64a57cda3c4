package carrier

import (
	"context"
	"log/slog"

	"github.com/vietddude/recourse/internal/core/domain"
)

// Tier is one link of a connector's fallback chain.
type Tier struct {
	Name  string
	Fetch func(ctx context.Context) (*domain.TrackingResult, error)
}

// RunTiers tries each tier in order and returns the first successful result.
// A tier error (auth failure, structural API error, exhausted retries) falls
// through to the next tier; if every tier fails, the last error is folded
// into a failure-shaped result so callers never see a raw error.
func RunTiers(
	ctx context.Context,
	log *slog.Logger,
	carrierName, trackingNumber string,
	tiers ...Tier,
) *domain.TrackingResult {
	var lastErr error

	for _, tier := range tiers {
		result, err := tier.Fetch(ctx)
		if err != nil {
			lastErr = err
			log.Warn("tracking tier failed",
				"carrier", carrierName,
				"tier", tier.Name,
				"tracking_number", trackingNumber,
				"error", err)
			continue
		}
		if result != nil && result.Success {
			log.Debug("tracking tier succeeded",
				"carrier", carrierName,
				"tier", tier.Name,
				"tracking_number", trackingNumber,
				"status", result.Status)
			return result
		}
	}

	msg := "all tracking tiers failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return domain.FailedTracking(carrierName, trackingNumber, msg)
}
