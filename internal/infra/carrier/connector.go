package carrier

import (
	"context"
	"strings"

	"github.com/vietddude/recourse/internal/core/domain"
)

// Connector is the capability boundary between the engine and one carrier's
// tracking back-end. Implementations run a three-tier fallback chain
// (official API, public tracking page, synthetic result) and therefore never
// surface a transport error: TrackingDetails always returns a result with
// Success and, on failure, Error populated.
type Connector interface {
	// Name returns the carrier's display name.
	Name() string

	// TrackingDetails fetches and normalizes the parcel's tracking state.
	TrackingDetails(ctx context.Context, trackingNumber string) *domain.TrackingResult

	// ProofOfDelivery retrieves the POD document (PDF or image). Returns
	// (nil, nil) when the parcel is not delivered or no document exists.
	ProofOfDelivery(ctx context.Context, trackingNumber string) ([]byte, error)
}

// CompensationChecker is an optional connector capability: whether the
// carrier has already settled this parcel directly with the end customer.
// The bypass detector only consults connectors that implement it.
type CompensationChecker interface {
	CompensationIssued(ctx context.Context, trackingNumber string) (bool, error)
}

// Credentials is a flat map of upper-snake-case keys (e.g.
// COLISSIMO_API_KEY) to secrets.
type Credentials map[string]string

// Get returns the credential for key, or "" when absent.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[strings.ToUpper(key)]
}

// MergeCredentials layers per-caller overrides on top of global defaults;
// overrides win.
func MergeCredentials(global, overrides Credentials) Credentials {
	merged := make(Credentials, len(global)+len(overrides))
	for k, v := range global {
		merged[strings.ToUpper(k)] = v
	}
	for k, v := range overrides {
		merged[strings.ToUpper(k)] = v
	}
	return merged
}
