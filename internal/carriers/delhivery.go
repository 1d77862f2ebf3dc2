package carriers

import (
	"log/slog"
	"time"

	"shipment-tracking/internal/session"
)

var delhiveryStatusKeywords = []string{
	"Pick up Pending",
	"Picked up",
	"In Transit",
	"Out for Delivery",
	"Delivered",
	"Dispatched",
	"Pending",
	"Failed",
	"Returned",
	"RTO",
	"Cancelled",
}

// NewDelhiveryFetcher tracks Delhivery shipments on the carrier's own
// tracking page, which renders the current status as a standalone line after
// a short client-side render delay.
func NewDelhiveryFetcher(pool *session.Pool, normalizer *Normalizer, logger *slog.Logger) Fetcher {
	return &browserFetcher{
		name: "delhivery",
		pool: pool,
		sources: []trackingSource{
			{
				name: "delhivery",
				url: func(tn string) string {
					return "https://www.delhivery.com/track-v2/package/" + tn
				},
				waitKeywords: delhiveryStatusKeywords,
				waitTimeout:  10 * time.Second,
				settle:       3 * time.Second,
				strategies: []Strategy{
					LinePrefix(delhiveryStatusKeywords),
					KeywordScan(delhiveryStatusKeywords),
				},
			},
		},
		retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     FixedBackoff(time.Second),
		},
		normalizer: normalizer,
		logger:     logger,
	}
}
