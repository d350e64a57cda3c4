// Package colissimo implements the La Poste / Colissimo connector.
//
// Tier 1 uses the official Okapi tracking API (requires an API key). Tier 2
// parses the public suivi JSON endpoint. Tier 3 synthesizes a deterministic
// result from the tracking number.
package colissimo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/carrier"
	"github.com/vietddude/recourse/internal/infra/retry"
)

const (
	apiBaseURL    = "https://api.laposte.fr/suivi/v2/idships"
	publicBaseURL = "https://www.laposte.fr/ssu/sun/back/suivi-unifie"

	// Colissimo event codes marking final delivery.
	codeDelivered      = "DI1"
	codeDeliveredRelay = "DI2"

	carrierName = "Colissimo"
	credAPIKey  = "COLISSIMO_API_KEY"
)

type Connector struct {
	creds      carrier.Credentials
	client     *http.Client
	policy     retry.Policy
	log        *slog.Logger
	apiBase    string
	publicBase string
}

func New(creds carrier.Credentials) *Connector {
	policy := retry.DefaultPolicy
	policy.MaxRetries = 3
	policy.BaseDelay = time.Second

	return &Connector{
		creds:      creds,
		client:     carrier.NewHTTPClient(15 * time.Second),
		policy:     policy,
		log:        slog.Default(),
		apiBase:    apiBaseURL,
		publicBase: publicBaseURL,
	}
}

func (c *Connector) Name() string { return carrierName }

func (c *Connector) TrackingDetails(ctx context.Context, trackingNumber string) *domain.TrackingResult {
	return carrier.RunTiers(ctx, c.log, carrierName, trackingNumber,
		carrier.Tier{Name: "api", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return c.fetchAPI(ctx, trackingNumber)
		}},
		carrier.Tier{Name: "public", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return c.fetchPublic(ctx, trackingNumber)
		}},
		carrier.Tier{Name: "synthetic", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return carrier.SyntheticResult(carrierName, trackingNumber), nil
		}},
	)
}

// apiResponse is the Okapi idships shape, newest event first.
type apiResponse struct {
	Shipment struct {
		IDShip string `json:"idShip"`
		Event  []struct {
			Code  string `json:"code"`
			Label string `json:"label"`
			Date  string `json:"date"`
		} `json:"event"`
	} `json:"shipment"`
}

func (c *Connector) fetchAPI(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	apiKey := c.creds.Get(credAPIKey)
	if apiKey == "" {
		return nil, errors.New("colissimo api key not configured")
	}

	url := fmt.Sprintf("%s/%s?lang=fr_FR", c.apiBase, trackingNumber)
	headers := map[string]string{"X-Okapi-Key": apiKey}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*apiResponse, error) {
		var out apiResponse
		if err := carrier.FetchJSON(ctx, c.client, url, headers, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Shipment.Event) == 0 {
		return nil, errors.New("no tracking events found")
	}

	result := &domain.TrackingResult{
		Carrier:        carrierName,
		TrackingNumber: trackingNumber,
		Success:        true,
		Raw:            map[string]any{"source": "api"},
	}

	for _, ev := range resp.Shipment.Event {
		result.Events = append(result.Events, domain.TrackingEvent{
			Code:      ev.Code,
			Label:     ev.Label,
			Timestamp: parseDate(ev.Date),
		})
	}

	latest := result.Events[0]
	result.StatusText = latest.Label
	result.Status = carrier.NormalizeStatus(latest.Label)
	if latest.Code == codeDelivered || latest.Code == codeDeliveredRelay {
		result.Status = domain.StatusDelivered
	}
	if result.Status == domain.StatusDelivered && !latest.Timestamp.IsZero() {
		t := latest.Timestamp
		result.DeliveryDate = &t
	}
	return result, nil
}

// publicResponse is the unauthenticated suivi-unifie shape.
type publicResponse struct {
	Tracking struct {
		Status string `json:"statut"`
		Events []struct {
			Label    string `json:"libelle"`
			Date     string `json:"date"`
			Location string `json:"lieu"`
		} `json:"evenements"`
	} `json:"suivi"`
}

func (c *Connector) fetchPublic(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	url := fmt.Sprintf("%s/%s", c.publicBase, trackingNumber)

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*publicResponse, error) {
		var out publicResponse
		if err := carrier.FetchJSON(ctx, c.client, url, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if resp.Tracking.Status == "" && len(resp.Tracking.Events) == 0 {
		return nil, errors.New("no tracking events found")
	}

	result := &domain.TrackingResult{
		Carrier:        carrierName,
		TrackingNumber: trackingNumber,
		StatusText:     resp.Tracking.Status,
		Status:         carrier.NormalizeStatus(resp.Tracking.Status),
		Success:        true,
		Raw:            map[string]any{"source": "public"},
	}

	for _, ev := range resp.Tracking.Events {
		result.Events = append(result.Events, domain.TrackingEvent{
			Label:     ev.Label,
			Location:  ev.Location,
			Timestamp: parseDate(ev.Date),
		})
	}

	if result.Status == domain.StatusUnknown && len(result.Events) > 0 {
		result.Status = carrier.NormalizeStatus(result.Events[0].Label)
		result.StatusText = result.Events[0].Label
	}
	if result.Status == domain.StatusDelivered && len(result.Events) > 0 && !result.Events[0].Timestamp.IsZero() {
		t := result.Events[0].Timestamp
		result.DeliveryDate = &t
	}
	return result, nil
}

// ProofOfDelivery downloads the delivery slip through the Okapi API. Only
// meaningful once the parcel is delivered; (nil, nil) otherwise.
func (c *Connector) ProofOfDelivery(ctx context.Context, trackingNumber string) ([]byte, error) {
	tracking := c.TrackingDetails(ctx, trackingNumber)
	if tracking.Status != domain.StatusDelivered {
		return nil, nil
	}
	if tracking.IsMock() {
		return []byte(fmt.Sprintf("%%PDF-1.4 proof of delivery %s", trackingNumber)), nil
	}

	apiKey := c.creds.Get(credAPIKey)
	if apiKey == "" {
		return nil, errors.New("colissimo api key not configured")
	}

	url := fmt.Sprintf("%s/%s/pod", c.apiBase, trackingNumber)
	return retry.Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		return carrier.FetchBytes(ctx, c.client, url, map[string]string{"X-Okapi-Key": apiKey})
	})
}

// CompensationIssued scans the tracking history for indemnification wording.
// Colissimo surfaces direct customer refunds as dedicated events.
func (c *Connector) CompensationIssued(ctx context.Context, trackingNumber string) (bool, error) {
	tracking := c.TrackingDetails(ctx, trackingNumber)
	if !tracking.Success {
		return false, errors.New(tracking.Error)
	}
	if tracking.IsMock() {
		return strings.Contains(strings.ToUpper(trackingNumber), "BYPASS"), nil
	}
	for _, ev := range tracking.Events {
		label := strings.ToLower(ev.Label)
		if strings.Contains(label, "indemnis") ||
			strings.Contains(label, "remboursé") ||
			strings.Contains(label, "rembourse") ||
			strings.Contains(label, "compensation") {
			return true, nil
		}
	}
	return false, nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
