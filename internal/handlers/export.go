package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"shipment-tracking/internal/report"
)

// ExportHandler renders report rows as a downloadable CSV
type ExportHandler struct{}

// NewExportHandler creates a new export handler
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// ExportRequest is the body of POST /api/export-csv
type ExportRequest struct {
	Rows     []report.Row `json:"rows"`
	Filename string       `json:"filename,omitempty"`
}

// ExportCSV handles POST /api/export-csv
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Invalid JSON in ExportCSV: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = fmt.Sprintf("tracking-report-%s.csv", time.Now().Format("2006-01-02"))
	}
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if err := report.WriteCSV(w, req.Rows); err != nil {
		log.Printf("ERROR: Failed to write CSV: %v", err)
	}
}
