package carriers

import (
	"log/slog"
	"time"

	"shipment-tracking/internal/session"
)

var blueDartStatusKeywords = []string{
	"Delivered", "Out for Delivery", "In Transit", "Picked Up", "Pending",
}

// NewBlueDartFetcher tracks Blue Dart shipments via the trackcourier.io
// aggregator, whose page puts the status two lines under the carrier heading.
func NewBlueDartFetcher(pool *session.Pool, normalizer *Normalizer, logger *slog.Logger) Fetcher {
	return &browserFetcher{
		name: "bluedart",
		pool: pool,
		sources: []trackingSource{
			{
				name: "trackcourier",
				url: func(tn string) string {
					return "https://trackcourier.io/track-and-trace/blue-dart-courier/" + tn
				},
				waitKeywords: append([]string{"Blue Dart Courier"}, blueDartStatusKeywords...),
				waitTimeout:  5 * time.Second,
				strategies: []Strategy{
					MarkerOffset("Blue Dart Courier", 2, blueDartStatusKeywords),
					KeywordScan(blueDartStatusKeywords),
				},
			},
		},
		retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     FixedBackoff(2 * time.Second),
		},
		normalizer: normalizer,
		logger:     logger,
	}
}
