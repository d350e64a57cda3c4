package domain

import "time"

// TrackingStatus is the closed set every carrier-specific status vocabulary
// normalizes onto. Unrecognized vendor text maps to StatusUnknown, never to an
// error.
type TrackingStatus string

const (
	StatusDelivered        TrackingStatus = "DELIVERED"
	StatusInTransit        TrackingStatus = "IN_TRANSIT"
	StatusException        TrackingStatus = "EXCEPTION"
	StatusAvailableAtPoint TrackingStatus = "AVAILABLE_AT_POINT"
	StatusUnknown          TrackingStatus = "UNKNOWN"
)

// TrackingEvent is a single scan in a parcel's history, oldest context kept in
// Raw on the enclosing result.
type TrackingEvent struct {
	Code      string    `json:"code,omitempty"`
	Label     string    `json:"label"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TrackingResult is a normalized shipment-status record. Connectors always
// return one, even on failure: Success=false and Error set, never a raw
// transport error. Raw["mock"]=true marks the synthetic fallback tier.
type TrackingResult struct {
	Carrier        string          `json:"carrier"`
	TrackingNumber string          `json:"tracking_number"`
	Status         TrackingStatus  `json:"status"`
	StatusText     string          `json:"status_text,omitempty"`
	DeliveryDate   *time.Time      `json:"delivery_date,omitempty"`
	Events         []TrackingEvent `json:"events,omitempty"`
	Raw            map[string]any  `json:"raw,omitempty"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
}

// IsMock reports whether the result came from the synthetic fallback tier and
// must not be treated as authoritative.
func (r *TrackingResult) IsMock() bool {
	if r == nil || r.Raw == nil {
		return false
	}
	mock, _ := r.Raw["mock"].(bool)
	return mock
}

// FailedTracking builds the failure-shaped result connectors return when all
// tiers are exhausted.
func FailedTracking(carrier, trackingNumber, errMsg string) *TrackingResult {
	return &TrackingResult{
		Carrier:        carrier,
		TrackingNumber: trackingNumber,
		Status:         StatusUnknown,
		Success:        false,
		Error:          errMsg,
	}
}
