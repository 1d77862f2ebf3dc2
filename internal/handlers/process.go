package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/database"
	"shipment-tracking/internal/orders"
	"shipment-tracking/internal/report"
	"shipment-tracking/internal/workers"
)

// ProcessHandler runs order batches and streams their progress
type ProcessHandler struct {
	source     orders.Source
	processor  *workers.Processor
	db         *database.DB
	sender     report.Sender
	recipients []string
	hub        *ProgressHub
}

// NewProcessHandler creates a new process handler. sender may be a NopSender
// when email alerts are not configured.
func NewProcessHandler(source orders.Source, processor *workers.Processor, db *database.DB, sender report.Sender, recipients []string, hub *ProgressHub) *ProcessHandler {
	if sender == nil {
		sender = report.NopSender{}
	}
	return &ProcessHandler{
		source:     source,
		processor:  processor,
		db:         db,
		sender:     sender,
		recipients: recipients,
		hub:        hub,
	}
}

// ProcessRequest is the body of POST /api/process-orders
type ProcessRequest struct {
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
	// FulfillmentStatus narrows the order fetch: "fulfilled", "unfulfilled"
	// or empty for all orders.
	FulfillmentStatus string `json:"fulfillmentStatus,omitempty"`
}

// ProcessResponse acknowledges a started run
type ProcessResponse struct {
	SessionID string `json:"sessionId"`
	RunID     int    `json:"runId,omitempty"`
}

// RunResultPayload is the final event of a processing session
type RunResultPayload struct {
	RunID int          `json:"runId,omitempty"`
	Rows  []report.Row `json:"rows"`
}

// ProcessOrders handles POST /api/process-orders. The run executes in the
// background; clients follow it on the session's SSE stream.
func (h *ProcessHandler) ProcessOrders(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Invalid JSON in ProcessOrders: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FromDate) == "" || strings.TrimSpace(req.ToDate) == "" {
		http.Error(w, "fromDate and toDate are required", http.StatusBadRequest)
		return
	}

	sessionID := newSessionID()
	h.hub.Open(sessionID)

	response := ProcessResponse{SessionID: sessionID}

	run := &database.Run{FromDate: req.FromDate, ToDate: req.ToDate}
	if h.db != nil {
		if err := h.db.Runs.Create(run); err != nil {
			log.Printf("ERROR: Failed to create run: %v", err)
			http.Error(w, "Failed to create run", http.StatusInternalServerError)
			return
		}
		response.RunID = run.ID
	}

	go h.run(context.Background(), sessionID, run, orders.Query{
		FromDate:          req.FromDate,
		ToDate:            req.ToDate,
		FulfillmentStatus: mapFulfillmentStatus(req.FulfillmentStatus),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// run executes one processing session end to end
func (h *ProcessHandler) run(ctx context.Context, sessionID string, run *database.Run, query orders.Query) {
	defer h.hub.End(sessionID)

	orderList, err := h.source.FetchOrders(ctx, query)
	if err != nil {
		log.Printf("ERROR: Failed to fetch orders: %v", err)
		h.hub.Publish(sessionID, "progress", workers.Progress{
			Stage:   workers.StageError,
			Message: fmt.Sprintf("Failed to fetch orders: %v", err),
		})
		h.completeRun(run, "error", 0, 0, 0)
		return
	}

	rows := report.BuildRows(orderList)
	shipments, indices := report.TrackableShipments(rows)

	results := h.processor.ProcessShipments(ctx, shipments, func(event workers.Progress) {
		h.hub.Publish(sessionID, "progress", event)
	})

	successCount := 0
	for i, result := range results {
		rows[indices[i]].TrackingStatus = result.Status
		if result.Success {
			successCount++
		}
	}

	h.sendAlerts(ctx, rows)
	h.saveResults(run, rows, indices, results)
	h.completeRun(run, "complete", len(shipments), successCount, len(shipments)-successCount)

	h.hub.Publish(sessionID, "result", RunResultPayload{RunID: run.ID, Rows: rows})
}

// sendAlerts mails the unfulfilled and not-delivered groups, when any
func (h *ProcessHandler) sendAlerts(ctx context.Context, rows []report.Row) {
	if len(h.recipients) == 0 {
		return
	}

	unfulfilled, notDelivered := report.Classify(rows)
	if len(unfulfilled) > 0 {
		body := report.BuildAlertEmail("Unfulfilled Orders", unfulfilled)
		if err := h.sender.Send(ctx, h.recipients, "Unfulfilled Orders Alert", body); err != nil {
			log.Printf("WARN: Failed to send unfulfilled alert: %v", err)
		}
	}
	if len(notDelivered) > 0 {
		body := report.BuildAlertEmail("Not Delivered Shipments", notDelivered)
		if err := h.sender.Send(ctx, h.recipients, "Not Delivered Alert", body); err != nil {
			log.Printf("WARN: Failed to send not-delivered alert: %v", err)
		}
	}
}

func (h *ProcessHandler) saveResults(run *database.Run, rows []report.Row, indices []int, results []carriers.TrackingResult) {
	if h.db == nil || run.ID == 0 {
		return
	}

	runResults := make([]database.RunResult, len(results))
	for i, result := range results {
		row := rows[indices[i]]
		checkedAt := result.CheckedAt
		runResults[i] = database.RunResult{
			OrderID:        row.OrderID,
			CustomerName:   row.CustomerName,
			Carrier:        row.Carrier,
			TrackingNumber: result.TrackingNumber,
			TrackingStatus: result.Status,
			Success:        result.Success,
			Error:          result.Error,
			Source:         result.Source,
			Attempts:       result.Attempts,
			CheckedAt:      &checkedAt,
		}
	}

	if err := h.db.Results.SaveBatch(run.ID, runResults); err != nil {
		log.Printf("WARN: Failed to save run results: %v", err)
	}
}

func (h *ProcessHandler) completeRun(run *database.Run, status string, total, successCount, errorCount int) {
	if h.db == nil || run.ID == 0 {
		return
	}
	if err := h.db.Runs.Complete(run.ID, status, total, successCount, errorCount); err != nil {
		log.Printf("WARN: Failed to complete run: %v", err)
	}
}

// mapFulfillmentStatus translates the API's fulfillment filter into the
// order platform's vocabulary. Unknown values pass through untouched.
func mapFulfillmentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "fulfilled":
		return "shipped"
	case "unfulfilled":
		return "unshipped"
	default:
		return strings.TrimSpace(status)
	}
}

// newSessionID returns a random 16-byte hex session identifier
func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
