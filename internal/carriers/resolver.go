package carriers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"shipment-tracking/internal/session"
)

// resolutionRule binds one carrier to the signals that identify it. Upstream
// carrier labels are often missing or mislabeled, so each rule also carries
// URL and tracking-number heuristics that recover otherwise-lost identity.
type resolutionRule struct {
	carrier string
	// labelTokens are matched against the reduced label (lowercased, all
	// non-letter characters stripped).
	labelTokens []string
	// urlHints are matched against the lowercased tracking URL.
	urlHints []string
	// numberPrefixes are matched against the lowercased tracking number.
	numberPrefixes []string
}

// resolutionRules in declaration order. Ekart goes last in the label pass
// because its "kart" token is the loosest.
var resolutionRules = []resolutionRule{
	{
		carrier:     "dtdc",
		labelTokens: []string{"dtdc"},
		urlHints:    []string{"dtdc"},
	},
	{
		carrier:     "bluedart",
		labelTokens: []string{"bluedart"},
		urlHints:    []string{"blue-dart", "bluedart"},
	},
	{
		carrier:     "delhivery",
		labelTokens: []string{"delhivery"},
		urlHints:    []string{"delhivery"},
	},
	{
		carrier:        "ekart",
		labelTokens:    []string{"ekart", "flipkart", "kart"},
		urlHints:       []string{"ekartlogistics", "ekart", "flipkart"},
		numberPrefixes: []string{"lua"},
	},
}

var nonLetterPattern = regexp.MustCompile(`[^a-z]`)

// RegistryOptions configures fetcher construction.
type RegistryOptions struct {
	// UserAgent for plain-HTTP fetchers.
	UserAgent string
	// TransitKeywords feed the status normalizer; empty means defaults.
	TransitKeywords []string
	// HTTPClient for plain-HTTP fetchers; nil means a sensible default.
	HTTPClient *http.Client
}

// Registry holds the fetchers for all supported carriers and resolves
// shipments to them.
type Registry struct {
	fetchers    map[string]Fetcher
	unsupported Fetcher
	logger      *slog.Logger
}

// NewRegistry wires one fetcher per supported carrier against the shared
// session pool.
func NewRegistry(pool *session.Pool, opts RegistryOptions, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := NewNormalizer(opts.TransitKeywords)

	return &Registry{
		fetchers: map[string]Fetcher{
			"dtdc":      NewDTDCFetcher(opts.HTTPClient, opts.UserAgent, normalizer, logger),
			"bluedart":  NewBlueDartFetcher(pool, normalizer, logger),
			"delhivery": NewDelhiveryFetcher(pool, normalizer, logger),
			"ekart":     NewEkartFetcher(pool, normalizer, logger),
		},
		unsupported: UnsupportedFetcher{},
		logger:      logger,
	}
}

// Resolve maps a shipment's carrier label, tracking number and tracking URL
// to a fetcher. It is deterministic and total: unknown carriers get the
// not-supported fetcher. Signals cascade — every rule's label is checked
// before any URL hint, and every URL hint before any number prefix — so a
// stronger signal on any carrier beats a weaker one on another.
func (r *Registry) Resolve(carrierLabel, trackingNumber, trackingURL string) Fetcher {
	lower := strings.ToLower(strings.TrimSpace(carrierLabel))
	reduced := nonLetterPattern.ReplaceAllString(lower, "")

	if reduced != "" {
		for _, rule := range resolutionRules {
			for _, token := range rule.labelTokens {
				if strings.Contains(reduced, token) {
					return r.fetchers[rule.carrier]
				}
			}
		}
	}

	if urlLower := strings.ToLower(strings.TrimSpace(trackingURL)); urlLower != "" {
		for _, rule := range resolutionRules {
			for _, hint := range rule.urlHints {
				if strings.Contains(urlLower, hint) {
					return r.fetchers[rule.carrier]
				}
			}
		}
	}

	if tnLower := strings.ToLower(strings.TrimSpace(trackingNumber)); tnLower != "" {
		for _, rule := range resolutionRules {
			for _, prefix := range rule.numberPrefixes {
				if strings.HasPrefix(tnLower, prefix) {
					return r.fetchers[rule.carrier]
				}
			}
		}
	}

	r.logger.Debug("Carrier not supported",
		"carrier_label", carrierLabel,
		"tracking_url", trackingURL)
	return r.unsupported
}

// ResolveOne is the single-shipment entry point for ad hoc lookups.
func (r *Registry) ResolveOne(ctx context.Context, carrierLabel, trackingNumber, trackingURL string) TrackingResult {
	fetcher := r.Resolve(carrierLabel, trackingNumber, trackingURL)
	return fetcher.Fetch(ctx, trackingNumber)
}

// Supported returns the list of carriers with a dedicated fetcher.
func (r *Registry) Supported() []string {
	carriers := make([]string, 0, len(resolutionRules))
	for _, rule := range resolutionRules {
		carriers = append(carriers, rule.carrier)
	}
	return carriers
}
