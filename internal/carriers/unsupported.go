package carriers

import (
	"context"
	"time"
)

// UnsupportedFetcher is the total-function escape hatch: the resolver returns
// it for carriers it cannot identify, so resolution always yields a fetcher
// and unknown carriers degrade into a result value instead of an error.
type UnsupportedFetcher struct{}

func (UnsupportedFetcher) Name() string {
	return "unsupported"
}

func (UnsupportedFetcher) Fetch(_ context.Context, trackingNumber string) TrackingResult {
	return TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         StatusNotSupported,
		Success:        false,
		Source:         "resolver",
		CheckedAt:      time.Now(),
	}
}
