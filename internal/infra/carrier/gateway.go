package carrier

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/metrics"
)

// ResultCache stores tracking results with a TTL so repeated scans don't
// hammer carrier endpoints. Implementations must fail open: a cache outage
// is a miss, never an error.
type ResultCache interface {
	Get(ctx context.Context, carrierName, trackingNumber string) (*domain.TrackingResult, bool)
	Set(ctx context.Context, result *domain.TrackingResult)
}

// Gateway is the single entry point for carrier lookups. It resolves the
// connector, consults the cache, and records call metrics. Like the
// connectors underneath it, it never propagates a raw error for tracking
// lookups.
type Gateway struct {
	registry *Registry
	cache    ResultCache
	log      *slog.Logger
}

// NewGateway creates a gateway. cache may be nil.
func NewGateway(registry *Registry, cache ResultCache, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{registry: registry, cache: cache, log: log}
}

// TrackingDetails returns the normalized tracking state for a parcel.
func (g *Gateway) TrackingDetails(
	ctx context.Context,
	carrierName, trackingNumber string,
	overrides Credentials,
) *domain.TrackingResult {
	if g.cache != nil {
		if cached, ok := g.cache.Get(ctx, carrierName, trackingNumber); ok {
			metrics.CarrierCalls.WithLabelValues(carrierName, "cache").Inc()
			return cached
		}
	}

	conn := g.registry.Resolve(carrierName, overrides)

	start := time.Now()
	result := conn.TrackingDetails(ctx, trackingNumber)
	metrics.CarrierCallLatency.WithLabelValues(conn.Name()).Observe(time.Since(start).Seconds())

	outcome := "failure"
	if result.Success {
		outcome = "success"
		if result.IsMock() {
			outcome = "synthetic"
		}
	}
	metrics.CarrierCalls.WithLabelValues(conn.Name(), outcome).Inc()

	// Synthetic results are not worth caching; a later call may find a real
	// tier back up.
	if g.cache != nil && result.Success && !result.IsMock() {
		g.cache.Set(ctx, result)
	}
	return result
}

// ProofOfDelivery retrieves the POD document for a delivered parcel.
func (g *Gateway) ProofOfDelivery(
	ctx context.Context,
	carrierName, trackingNumber string,
	overrides Credentials,
) ([]byte, error) {
	conn := g.registry.Resolve(carrierName, overrides)
	return conn.ProofOfDelivery(ctx, trackingNumber)
}

// CompensationIssued consults the connector's compensation signal. Connectors
// without one report false; the detection strategy is per-carrier, not
// hard-coded here.
func (g *Gateway) CompensationIssued(
	ctx context.Context,
	carrierName, trackingNumber string,
	overrides Credentials,
) (bool, error) {
	conn := g.registry.Resolve(carrierName, overrides)
	checker, ok := conn.(CompensationChecker)
	if !ok {
		return false, nil
	}
	return checker.CompensationIssued(ctx, trackingNumber)
}
