package carriers

import "strings"

// defaultTransitKeywords rewrite hub-movement phrasing to "In Transit".
// Carriers word these inconsistently across site versions, so the live list
// comes from configuration; these are the fallback defaults.
var defaultTransitKeywords = []string{
	"dispatched",
	"shipment received",
	"received at",
	"mother hub",
}

// Normalizer post-processes raw scraped status text into the shared
// vocabulary.
type Normalizer struct {
	transitKeywords []string
}

// NewNormalizer builds a normalizer with the given transit keyword list,
// falling back to defaults when the list is empty.
func NewNormalizer(transitKeywords []string) *Normalizer {
	if len(transitKeywords) == 0 {
		transitKeywords = defaultTransitKeywords
	}
	return &Normalizer{transitKeywords: transitKeywords}
}

// Normalize collapses hub-movement phrasing into "In Transit". Text that
// mentions delivery is left alone: "Dispatched for delivery" must not lose
// its delivery signal.
func (n *Normalizer) Normalize(raw string) string {
	status := strings.TrimSpace(raw)
	if status == "" {
		return status
	}

	lower := strings.ToLower(status)
	if strings.Contains(lower, "deliver") {
		return status
	}
	for _, kw := range n.transitKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return StatusInTransit
		}
	}
	return status
}
