package server

import (
	"net/http"

	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/database"
	"shipment-tracking/internal/handlers"
	"shipment-tracking/internal/orders"
	"shipment-tracking/internal/report"
	"shipment-tracking/internal/workers"

	"github.com/go-chi/chi/v5"
)

// Dependencies carries everything the API routes need.
type Dependencies struct {
	Source     orders.Source
	Processor  *workers.Processor
	Registry   *carriers.Registry
	Cache      handlers.ResultInvalidator
	DB         *database.DB
	Sender     report.Sender
	Recipients []string
}

// NewRouter builds the API router with the standard middleware stack.
func NewRouter(deps Dependencies) http.Handler {
	hub := handlers.NewProgressHub()

	processHandler := handlers.NewProcessHandler(deps.Source, deps.Processor, deps.DB, deps.Sender, deps.Recipients, hub)
	trackingHandler := handlers.NewTrackingHandler(deps.Registry, deps.Cache)
	exportHandler := handlers.NewExportHandler()
	runHandler := handlers.NewRunHandler(deps.DB)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/carriers", trackingHandler.GetCarriers)
		r.Post("/track", trackingHandler.Track)
		r.Post("/process-orders", processHandler.ProcessOrders)
		r.Get("/process-orders/stream/{sessionID}", processHandler.StreamProgress)
		r.Post("/export-csv", exportHandler.ExportCSV)
		r.Get("/runs", runHandler.ListRuns)
		r.Get("/runs/{id}", runHandler.GetRun)
	})

	return Chain(r,
		RecoveryMiddleware,
		LoggingMiddleware,
		CORSMiddleware,
		ContentTypeMiddleware,
	)
}
