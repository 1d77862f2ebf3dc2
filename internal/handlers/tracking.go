package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"shipment-tracking/internal/carriers"
)

// ResultInvalidator drops a cached tracking result so the next lookup
// fetches fresh.
type ResultInvalidator interface {
	Invalidate(trackingNumber string)
}

// TrackingHandler handles ad hoc single-shipment lookups
type TrackingHandler struct {
	registry *carriers.Registry
	cache    ResultInvalidator
}

// NewTrackingHandler creates a new tracking handler. cache may be nil when
// result caching is disabled.
func NewTrackingHandler(registry *carriers.Registry, cache ResultInvalidator) *TrackingHandler {
	return &TrackingHandler{registry: registry, cache: cache}
}

// TrackRequest is the body of POST /api/track
type TrackRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
	TrackingURL    string `json:"trackingUrl"`
	ForceRefresh   bool   `json:"forceRefresh,omitempty"`
}

// Track handles POST /api/track
func (h *TrackingHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Invalid JSON in Track: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TrackingNumber) == "" {
		http.Error(w, "trackingNumber is required", http.StatusBadRequest)
		return
	}

	if req.ForceRefresh && h.cache != nil {
		h.cache.Invalidate(req.TrackingNumber)
	}

	result := h.registry.ResolveOne(r.Context(), req.Carrier, req.TrackingNumber, req.TrackingURL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// GetCarriers handles GET /api/carriers
func (h *TrackingHandler) GetCarriers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string][]string{
		"carriers": h.registry.Supported(),
	})
}
