package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/orders"
	"shipment-tracking/internal/report"
	"shipment-tracking/internal/workers"
)

// stubSource serves a fixed order list and remembers the last query.
type stubSource struct {
	orders []orders.Order
	err    error

	mu        sync.Mutex
	lastQuery orders.Query
}

func (s *stubSource) FetchOrders(ctx context.Context, query orders.Query) ([]orders.Order, error) {
	s.mu.Lock()
	s.lastQuery = query
	s.mu.Unlock()
	return s.orders, s.err
}

func (s *stubSource) query() orders.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// stubResolver returns a fixed status for every shipment.
type stubResolver struct{}

func (stubResolver) ResolveOne(ctx context.Context, carrierLabel, trackingNumber, trackingURL string) carriers.TrackingResult {
	return carriers.TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         carriers.StatusDelivered,
		Success:        true,
		Source:         "stub",
		CheckedAt:      time.Now(),
	}
}

// recordingSender captures alert emails.
type recordingSender struct {
	mu       sync.Mutex
	subjects []string
}

func (s *recordingSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
	return nil
}

func fulfilledOrder(name, trackingNumber string) orders.Order {
	return orders.Order{
		Name:      name,
		CreatedAt: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Customer:  &orders.Customer{FirstName: "Test", LastName: "Customer"},
		Fulfillments: []orders.Fulfillment{{
			TrackingNumber:  trackingNumber,
			TrackingCompany: "Ekart",
		}},
	}
}

func newTestProcessHandler(source orders.Source, sender report.Sender, recipients []string) (*ProcessHandler, *ProgressHub) {
	hub := NewProgressHub()
	processor := workers.NewProcessor(stubResolver{}, nil, 5, nil)
	return NewProcessHandler(source, processor, nil, sender, recipients, hub), hub
}

func TestProcessOrdersValidation(t *testing.T) {
	h, _ := newTestProcessHandler(&stubSource{}, nil, nil)

	rec := httptest.NewRecorder()
	h.ProcessOrders(rec, httptest.NewRequest("POST", "/api/process-orders", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ProcessOrders(rec, httptest.NewRequest("POST", "/api/process-orders",
		strings.NewReader(`{"fromDate":"2024-01-01"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing toDate, got %d", rec.Code)
	}
}

func TestProcessOrdersRunsToCompletion(t *testing.T) {
	source := &stubSource{orders: []orders.Order{
		fulfilledOrder("#1001", "LUA1"),
		fulfilledOrder("#1002", "LUA2"),
		{Name: "#1003", Customer: &orders.Customer{FirstName: "No", LastName: "Shipment"}},
	}}
	sender := &recordingSender{}
	h, hub := newTestProcessHandler(source, sender, []string{"ops@example.com"})

	rec := httptest.NewRecorder()
	h.ProcessOrders(rec, httptest.NewRequest("POST", "/api/process-orders",
		strings.NewReader(`{"fromDate":"2024-01-01","toDate":"2024-01-31"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ProcessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("Expected a session ID")
	}

	events := collectEvents(t, hub, resp.SessionID)

	var progress []workers.Progress
	var result *RunResultPayload
	for _, event := range events {
		switch event.Name {
		case "progress":
			progress = append(progress, event.Data.(workers.Progress))
		case "result":
			payload := event.Data.(RunResultPayload)
			result = &payload
		}
	}

	if len(progress) < 2 {
		t.Fatalf("Expected at least fetching and complete events, got %+v", progress)
	}
	if progress[0].Stage != workers.StageFetching {
		t.Errorf("Expected first event to be fetching, got %+v", progress[0])
	}
	last := progress[len(progress)-1]
	if last.Stage != workers.StageComplete || last.Percentage != 100 {
		t.Errorf("Expected final complete event at 100, got %+v", last)
	}

	if result == nil {
		t.Fatal("Expected a result event")
	}
	if len(result.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].TrackingStatus != carriers.StatusDelivered {
		t.Errorf("Expected tracked row status written back, got %+v", result.Rows[0])
	}
	if result.Rows[2].TrackingStatus != report.StatusUnfulfilled {
		t.Errorf("Expected unfulfilled placeholder, got %+v", result.Rows[2])
	}

	// One order is unfulfilled, so exactly one alert goes out.
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.subjects) != 1 || !strings.Contains(sender.subjects[0], "Unfulfilled") {
		t.Errorf("Expected one unfulfilled alert, got %v", sender.subjects)
	}
}

func TestProcessOrdersFulfillmentFilter(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"fulfilled maps to shipped", "fulfilled", "shipped"},
		{"unfulfilled maps to unshipped", "unfulfilled", "unshipped"},
		{"absent filter fetches all", "", ""},
		{"platform values pass through", "partial", "partial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &stubSource{}
			h, hub := newTestProcessHandler(source, nil, nil)

			body := `{"fromDate":"2024-01-01","toDate":"2024-01-31"`
			if tt.requested != "" {
				body += `,"fulfillmentStatus":"` + tt.requested + `"`
			}
			body += `}`

			rec := httptest.NewRecorder()
			h.ProcessOrders(rec, httptest.NewRequest("POST", "/api/process-orders", strings.NewReader(body)))
			if rec.Code != http.StatusAccepted {
				t.Fatalf("Expected 202, got %d", rec.Code)
			}

			var resp ProcessResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			collectEvents(t, hub, resp.SessionID)

			query := source.query()
			if query.FulfillmentStatus != tt.want {
				t.Errorf("Expected fulfillment status %q, got %q", tt.want, query.FulfillmentStatus)
			}
			if query.FromDate != "2024-01-01" || query.ToDate != "2024-01-31" {
				t.Errorf("Expected date range to pass through, got %+v", query)
			}
		})
	}
}

func TestProcessOrdersSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("store unreachable")}
	h, hub := newTestProcessHandler(source, nil, nil)

	rec := httptest.NewRecorder()
	h.ProcessOrders(rec, httptest.NewRequest("POST", "/api/process-orders",
		strings.NewReader(`{"fromDate":"2024-01-01","toDate":"2024-01-31"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}

	var resp ProcessResponse
	json.NewDecoder(rec.Body).Decode(&resp)

	events := collectEvents(t, hub, resp.SessionID)
	if len(events) == 0 {
		t.Fatal("Expected an error event")
	}
	progress, ok := events[len(events)-1].Data.(workers.Progress)
	if !ok || progress.Stage != workers.StageError {
		t.Errorf("Expected final error event, got %+v", events[len(events)-1])
	}
	if !strings.Contains(progress.Message, "store unreachable") {
		t.Errorf("Expected cause in message, got %q", progress.Message)
	}
}

// collectEvents drains a session's event stream until the hub ends it.
func collectEvents(t *testing.T, hub *ProgressHub, sessionID string) []Event {
	t.Helper()
	ch, cancel, ok := hub.Subscribe(sessionID)
	if !ok {
		t.Fatalf("Unknown session %s", sessionID)
	}
	defer cancel()

	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, open := <-ch:
			if !open {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatalf("Timed out waiting for session end; got %+v", events)
		}
	}
}

func TestStreamProgressReplaysAndCloses(t *testing.T) {
	hub := NewProgressHub()
	hub.Open("s1")
	hub.Publish("s1", "progress", workers.Progress{Stage: workers.StageFetching, Total: 2})
	hub.Publish("s1", "progress", workers.Progress{Stage: workers.StageComplete, Processed: 2, Total: 2, Percentage: 100})
	hub.End("s1")

	h := &ProcessHandler{hub: hub}
	router := chi.NewRouter()
	router.Get("/api/process-orders/stream/{sessionID}", h.StreamProgress)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/process-orders/stream/s1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected SSE content type, got %q", ct)
	}

	var eventNames []string
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventNames = append(eventNames, strings.TrimPrefix(line, "event: "))
		}
	}
	want := []string{"progress", "progress", "done"}
	if len(eventNames) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, eventNames)
	}
	for i := range want {
		if eventNames[i] != want[i] {
			t.Errorf("Event %d: expected %q, got %q", i, want[i], eventNames[i])
		}
	}
}

func TestStreamProgressUnknownSession(t *testing.T) {
	h := &ProcessHandler{hub: NewProgressHub()}
	router := chi.NewRouter()
	router.Get("/api/process-orders/stream/{sessionID}", h.StreamProgress)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/process-orders/stream/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestTrackValidation(t *testing.T) {
	h := NewTrackingHandler(carriers.NewRegistry(nil, carriers.RegistryOptions{}, nil), nil)

	rec := httptest.NewRecorder()
	h.Track(rec, httptest.NewRequest("POST", "/api/track", strings.NewReader(`{"carrier":"dtdc"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without tracking number, got %d", rec.Code)
	}
}

func TestTrackUnsupportedCarrier(t *testing.T) {
	h := NewTrackingHandler(carriers.NewRegistry(nil, carriers.RegistryOptions{}, nil), nil)

	rec := httptest.NewRecorder()
	h.Track(rec, httptest.NewRequest("POST", "/api/track",
		strings.NewReader(`{"trackingNumber":"PP1","carrier":"Pigeon Post"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var result carriers.TrackingResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != carriers.StatusNotSupported || result.Success {
		t.Errorf("Expected not-supported result, got %+v", result)
	}
}

// recordingInvalidator captures cache invalidations.
type recordingInvalidator struct {
	invalidated []string
}

func (i *recordingInvalidator) Invalidate(trackingNumber string) {
	i.invalidated = append(i.invalidated, trackingNumber)
}

func TestTrackForceRefreshInvalidatesCache(t *testing.T) {
	invalidator := &recordingInvalidator{}
	h := NewTrackingHandler(carriers.NewRegistry(nil, carriers.RegistryOptions{}, nil), invalidator)

	rec := httptest.NewRecorder()
	h.Track(rec, httptest.NewRequest("POST", "/api/track",
		strings.NewReader(`{"trackingNumber":"LUA1","carrier":"Pigeon Post"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(invalidator.invalidated) != 0 {
		t.Errorf("Expected no invalidation without forceRefresh, got %v", invalidator.invalidated)
	}

	rec = httptest.NewRecorder()
	h.Track(rec, httptest.NewRequest("POST", "/api/track",
		strings.NewReader(`{"trackingNumber":"LUA1","carrier":"Pigeon Post","forceRefresh":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(invalidator.invalidated) != 1 || invalidator.invalidated[0] != "LUA1" {
		t.Errorf("Expected LUA1 invalidated on forceRefresh, got %v", invalidator.invalidated)
	}
}

func TestGetCarriers(t *testing.T) {
	h := NewTrackingHandler(carriers.NewRegistry(nil, carriers.RegistryOptions{}, nil), nil)

	rec := httptest.NewRecorder()
	h.GetCarriers(rec, httptest.NewRequest("GET", "/api/carriers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var payload map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(payload["carriers"]) != 4 {
		t.Errorf("Expected 4 carriers, got %v", payload["carriers"])
	}
}

func TestExportCSV(t *testing.T) {
	h := NewExportHandler()

	body := ExportRequest{
		Filename: "my-report",
		Rows: []report.Row{{
			OrderID:      "#1001",
			OrderedItems: `Satchel (x1), "Tote" (x2)`,
			Carrier:      "Ekart",
		}},
	}
	raw, _ := json.Marshal(body)

	rec := httptest.NewRecorder()
	h.ExportCSV(rec, httptest.NewRequest("POST", "/api/export-csv", bytes.NewReader(raw)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "my-report.csv") {
		t.Errorf("Expected filename in disposition, got %q", cd)
	}
	if !strings.Contains(rec.Body.String(), `"Satchel (x1), ""Tote"" (x2)"`) {
		t.Errorf("Expected quoted CSV field, got: %s", rec.Body.String())
	}
}

func TestExportCSVInvalidJSON(t *testing.T) {
	h := NewExportHandler()
	rec := httptest.NewRecorder()
	h.ExportCSV(rec, httptest.NewRequest("POST", "/api/export-csv", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy, got %+v", resp)
	}
}

func TestProgressHubLateSubscriberReplays(t *testing.T) {
	hub := NewProgressHub()
	hub.Open("s2")
	hub.Publish("s2", "progress", 1)
	hub.Publish("s2", "progress", 2)

	ch, cancel, ok := hub.Subscribe("s2")
	if !ok {
		t.Fatal("Expected session to exist")
	}
	defer cancel()

	first := <-ch
	second := <-ch
	if first.Data.(int) != 1 || second.Data.(int) != 2 {
		t.Errorf("Expected history replay in order, got %v then %v", first.Data, second.Data)
	}

	hub.Publish("s2", "progress", 3)
	third := <-ch
	if third.Data.(int) != 3 {
		t.Errorf("Expected live event after replay, got %v", third.Data)
	}

	hub.End("s2")
	if _, open := <-ch; open {
		t.Error("Expected channel to close on session end")
	}
}
