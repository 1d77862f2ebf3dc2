package carriers

import (
	"context"
	"time"
)

// Normalized status vocabulary. Fetchers reduce the long tail of
// carrier-specific phrasing into these short strings where they can;
// unrecognized but plausible status text passes through as-is.
const (
	StatusDelivered      = "Delivered"
	StatusOutForDelivery = "Out for Delivery"
	StatusInTransit      = "In Transit"
	StatusPickedUp       = "Picked Up"
	StatusPending        = "Pending"
	StatusDispatched     = "Dispatched"
	StatusRTO            = "RTO"
	StatusReturned       = "Returned"
	StatusCancelled      = "Cancelled"
	StatusError          = "Error"
	StatusNotFound       = "Status not found"
	StatusNotSupported   = "Carrier not supported"
)

// TrackingResult is the outcome of resolving one shipment. A retry sequence
// produces a single replacement result, never an accumulation.
type TrackingResult struct {
	TrackingNumber string    `json:"trackingNumber"`
	Status         string    `json:"status"`
	Success        bool      `json:"success"`
	Source         string    `json:"source,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempts       int       `json:"attempts,omitempty"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// Fetcher knows how to produce a tracking status for one specific carrier.
// Fetch never returns an error: all carrier- and site-level failures are
// converted into result values so batch processing cannot abort on them.
type Fetcher interface {
	// Name identifies the carrier this fetcher handles.
	Name() string

	// Fetch resolves the status for one tracking number.
	Fetch(ctx context.Context, trackingNumber string) TrackingResult
}

// errorResult builds the terminal result for a tracking attempt that failed
// with a transport or navigation error after exhausting its retry budget.
func errorResult(trackingNumber, source string, attempts int, err error) TrackingResult {
	return TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         StatusError,
		Success:        false,
		Source:         source,
		Error:          err.Error(),
		Attempts:       attempts,
		CheckedAt:      time.Now(),
	}
}

// notFoundResult builds the terminal result for a tracking attempt whose
// sources all loaded but yielded no recognizable status.
func notFoundResult(trackingNumber, source string, attempts int) TrackingResult {
	return TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         StatusNotFound,
		Success:        false,
		Source:         source,
		Attempts:       attempts,
		CheckedAt:      time.Now(),
	}
}
