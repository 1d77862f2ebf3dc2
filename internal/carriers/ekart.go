package carriers

import (
	"log/slog"
	"time"

	"shipment-tracking/internal/session"
)

// ekartStatusKeywords is the full keyword vocabulary observed on Ekart and
// aggregator pages, canonical casing preserved.
var ekartStatusKeywords = []string{
	"Delivered", "Out for Delivery", "In Transit", "In-Transit",
	"Reached", "Arrived", "Dispatched", "Picked Up", "Shipped",
	"Shipment Received", "Shipment Created", "Pending", "Undelivered",
	"RTO", "Return", "Cancelled", "Exception", "In Process",
	"Processing", "Booked", "Consignment Delivered", "In Transit to Destination",
	"Out for Pickup", "Pickup Generated", "In Transit to HUB", "Reached HUB",
	"Out for Delivery - Attempted",
}

// NewEkartFetcher tracks Ekart (Flipkart logistics) shipments. The carrier's
// own site is the primary source; trackcourier.io is the fallback when the
// primary renders nothing usable.
func NewEkartFetcher(pool *session.Pool, normalizer *Normalizer, logger *slog.Logger) Fetcher {
	strategies := []Strategy{
		LabelAdjacent(),
		TableRowScan(),
		StatusLine(),
		KeywordScan(ekartStatusKeywords),
		TitleKeyword(ekartStatusKeywords),
	}

	return &browserFetcher{
		name: "ekart",
		pool: pool,
		sources: []trackingSource{
			{
				name: "ekart",
				url: func(tn string) string {
					return "https://ekartlogistics.com/ekartlogistics-web/shipmenttrack/" + tn
				},
				waitKeywords: append([]string{"Tracking Details"}, ekartStatusKeywords...),
				waitTimeout:  15 * time.Second,
				settle:       3 * time.Second,
				strategies:   strategies,
			},
			{
				name: "trackcourier",
				url: func(tn string) string {
					return "https://trackcourier.io/track-and-trace/ekart-logistics-courier/" + tn
				},
				waitKeywords: ekartStatusKeywords,
				waitTimeout:  15 * time.Second,
				strategies:   strategies,
			},
		},
		retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     ExponentialBackoff(time.Second, 10*time.Second),
		},
		normalizer: normalizer,
		logger:     logger,
	}
}
