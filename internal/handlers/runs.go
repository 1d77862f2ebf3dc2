package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"shipment-tracking/internal/database"

	"github.com/go-chi/chi/v5"
)

// RunHandler serves persisted run history
type RunHandler struct {
	db *database.DB
}

// NewRunHandler creates a new run handler
func NewRunHandler(db *database.DB) *RunHandler {
	return &RunHandler{db: db}
}

// RunDetail is a run together with its per-shipment results
type RunDetail struct {
	Run     database.Run         `json:"run"`
	Results []database.RunResult `json:"results"`
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.db.Runs.List(limit)
	if err != nil {
		log.Printf("ERROR: Failed to list runs: %v", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(runs)
}

// GetRun handles GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}

	run, err := h.db.Runs.GetByID(id)
	if err != nil {
		if err.Error() == "run not found" {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		log.Printf("ERROR: Failed to get run: %v", err)
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}

	results, err := h.db.Results.GetByRunID(id)
	if err != nil {
		log.Printf("ERROR: Failed to get run results: %v", err)
		http.Error(w, "Failed to get run results", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []database.RunResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(RunDetail{Run: *run, Results: results})
}
