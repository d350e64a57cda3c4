package chronopost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/carrier"
)

func testConnector(creds carrier.Credentials, wsBase, publicBase string) *Connector {
	c := New(creds)
	c.policy.MaxRetries = 0
	c.policy.BaseDelay = time.Millisecond
	if wsBase != "" {
		c.wsBase = wsBase
	}
	if publicBase != "" {
		c.publicBase = publicBase
	}
	return c
}

const wsDeliveredBody = `<?xml version="1.0" encoding="UTF-8"?>
<response>
  <return>
    <errorCode>0</errorCode>
    <listEventInfoComp>
      <events>
        <code>PC</code>
        <eventLabel>Colis pris en charge</eventLabel>
        <eventDate>2026-08-18T08:00:00</eventDate>
        <officeLabel>Lyon Hub</officeLabel>
      </events>
      <events>
        <code>DI</code>
        <eventLabel>Colis remis au destinataire</eventLabel>
        <eventDate>2026-08-20T10:30:00</eventDate>
        <officeLabel>Paris 11</officeLabel>
      </events>
    </listEventInfoComp>
  </return>
</response>`

func TestTrackingDetailsWSTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("accountNumber") != "12345" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(wsDeliveredBody))
	}))
	defer srv.Close()

	conn := testConnector(carrier.Credentials{
		"CHRONOPOST_ACCOUNT":  "12345",
		"CHRONOPOST_PASSWORD": "secret",
	}, srv.URL, "")

	result := conn.TrackingDetails(context.Background(), "XX123456789FR")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Status != domain.StatusDelivered {
		t.Errorf("status = %s, want %s (DI event code)", result.Status, domain.StatusDelivered)
	}
	if len(result.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(result.Events))
	}
	if result.Events[0].Code != "DI" {
		t.Errorf("newest event code = %s, want DI", result.Events[0].Code)
	}
	if result.DeliveryDate == nil {
		t.Error("delivered result should carry a delivery date")
	}
}

func TestTrackingDetailsWSErrorCodeFallsThrough(t *testing.T) {
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><return><errorCode>3</errorCode></return></response>`))
	}))
	defer ws.Close()

	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shipment":{"statut":"En cours d'acheminement","events":[
			{"code":"T1","libelle":"Tri effectué","date":"2026-08-25T07:00:00","lieu":"Roissy"}
		]}}`))
	}))
	defer public.Close()

	conn := testConnector(carrier.Credentials{
		"CHRONOPOST_ACCOUNT":  "12345",
		"CHRONOPOST_PASSWORD": "secret",
	}, ws.URL, public.URL)

	result := conn.TrackingDetails(context.Background(), "XX987654321FR")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Raw["source"] != "public" {
		t.Errorf("source = %v, want public", result.Raw["source"])
	}
	if result.Status != domain.StatusInTransit {
		t.Errorf("status = %s, want %s", result.Status, domain.StatusInTransit)
	}
}

func TestTrackingDetailsPublicDeliveredCode(t *testing.T) {
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shipment":{"statut":"","events":[
			{"code":"LI","libelle":"Remis en point relais","date":"2026-08-24T14:00:00"}
		]}}`))
	}))
	defer public.Close()

	conn := testConnector(nil, "http://127.0.0.1:0", public.URL)

	result := conn.TrackingDetails(context.Background(), "XX555FR")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Status != domain.StatusDelivered {
		t.Errorf("status = %s, want %s (LI event code)", result.Status, domain.StatusDelivered)
	}
}

func TestTrackingDetailsSyntheticFallback(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	conn := testConnector(nil, down.URL, down.URL)

	result := conn.TrackingDetails(context.Background(), "XXRELAY01FR")
	if !result.Success {
		t.Fatalf("synthetic tier should always succeed, got %q", result.Error)
	}
	if !result.IsMock() {
		t.Error("synthetic result must be flagged mock")
	}
	if result.Status != domain.StatusAvailableAtPoint {
		t.Errorf("status = %s, want %s for RELAY pattern", result.Status, domain.StatusAvailableAtPoint)
	}
}

func TestCompensationIssuedSettlementEvent(t *testing.T) {
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shipment":{"statut":"Livré","events":[
			{"code":"RB","libelle":"Dédommagement accordé à l'expéditeur","date":"2026-08-22T10:00:00"},
			{"code":"DI","libelle":"Colis remis au destinataire","date":"2026-08-20T10:00:00"}
		]}}`))
	}))
	defer public.Close()

	conn := testConnector(nil, "http://127.0.0.1:0", public.URL)

	got, err := conn.CompensationIssued(context.Background(), "XX777FR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("settlement event should flag compensation")
	}
}
