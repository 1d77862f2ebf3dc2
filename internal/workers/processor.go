package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/orders"
)

// Progress stages in emission order. A run emits StageFetching once before
// any work, StageProcessing after each intermediate batch, and exactly one of
// StageComplete or StageError at the end.
const (
	StageFetching   = "fetching"
	StageProcessing = "processing"
	StageComplete   = "complete"
	StageError      = "error"
)

// Progress is one progress event of a batch run.
type Progress struct {
	Stage      string `json:"stage"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message,omitempty"`
}

// ResultCache serves previously fetched statuses keyed by tracking number.
type ResultCache interface {
	Get(trackingNumber string) (carriers.TrackingResult, bool)
	Set(trackingNumber string, result carriers.TrackingResult)
}

// Resolver maps a shipment's identity signals to a carrier and fetches its
// status. Satisfied by the carrier registry.
type Resolver interface {
	ResolveOne(ctx context.Context, carrierLabel, trackingNumber, trackingURL string) carriers.TrackingResult
}

// Processor runs shipment batches through the carrier fetchers. Batches are
// sequential; shipments within a batch run concurrently, with the session
// pool bounding how many browsers are actually live at once.
type Processor struct {
	registry  Resolver
	cache     ResultCache
	batchSize int
	logger    *slog.Logger
}

// NewProcessor creates a processor. A nil cache disables result caching and
// batchSize values below one fall back to the default of five.
func NewProcessor(registry Resolver, cache ResultCache, batchSize int, logger *slog.Logger) *Processor {
	if batchSize < 1 {
		batchSize = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		registry:  registry,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessShipments fetches tracking statuses for all shipments and returns
// results in input order, one per shipment. Individual failures never abort
// the run; a failed shipment yields an error-status result in its slot.
// onProgress, when non-nil, receives progress events synchronously.
func (p *Processor) ProcessShipments(ctx context.Context, shipments []orders.Shipment, onProgress func(Progress)) []carriers.TrackingResult {
	total := len(shipments)
	results := make([]carriers.TrackingResult, total)

	emit := func(event Progress) {
		if onProgress != nil {
			onProgress(event)
		}
	}

	emit(Progress{Stage: StageFetching, Processed: 0, Total: total, Percentage: 0})

	if total == 0 {
		emit(Progress{Stage: StageComplete, Processed: 0, Total: 0, Percentage: 100})
		return results
	}

	start := time.Now()
	processed := 0

	for offset := 0; offset < total; offset += p.batchSize {
		if err := ctx.Err(); err != nil {
			p.failRemaining(results, shipments, offset, err)
			emit(Progress{
				Stage:      StageError,
				Processed:  processed,
				Total:      total,
				Percentage: processed * 100 / total,
				Message:    err.Error(),
			})
			return results
		}

		end := offset + p.batchSize
		if end > total {
			end = total
		}

		p.processBatch(ctx, shipments, results, offset, end)
		processed = end

		if processed < total {
			emit(Progress{
				Stage:      StageProcessing,
				Processed:  processed,
				Total:      total,
				Percentage: processed * 100 / total,
			})
		}
	}

	p.logger.Info("Batch run finished",
		"shipments", total,
		"duration", time.Since(start))

	emit(Progress{Stage: StageComplete, Processed: total, Total: total, Percentage: 100})
	return results
}

// processBatch fetches shipments[offset:end] concurrently, writing each
// result into its input-order slot.
func (p *Processor) processBatch(ctx context.Context, shipments []orders.Shipment, results []carriers.TrackingResult, offset, end int) {
	var wg sync.WaitGroup
	for i := offset; i < end; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.fetchOne(ctx, shipments[i])
		}(i)
	}
	wg.Wait()
}

// fetchOne resolves and fetches a single shipment, consulting the cache
// first. A panic in a fetcher is contained to this shipment's slot.
func (p *Processor) fetchOne(ctx context.Context, shipment orders.Shipment) (result carriers.TrackingResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Fetcher panic recovered",
				"tracking_number", shipment.TrackingNumber,
				"panic", r)
			result = carriers.TrackingResult{
				TrackingNumber: shipment.TrackingNumber,
				Status:         carriers.StatusError,
				Success:        false,
				Error:          fmt.Sprintf("internal error: %v", r),
				CheckedAt:      time.Now(),
			}
		}
	}()

	if p.cache != nil {
		if cached, ok := p.cache.Get(shipment.TrackingNumber); ok {
			p.logger.Debug("Cache hit", "tracking_number", shipment.TrackingNumber)
			return cached
		}
	}

	result = p.registry.ResolveOne(ctx, shipment.CarrierLabel, shipment.TrackingNumber, shipment.TrackingURL)

	if p.cache != nil && result.Success {
		p.cache.Set(shipment.TrackingNumber, result)
	}
	return result
}

// failRemaining fills unprocessed slots after a cancelled run.
func (p *Processor) failRemaining(results []carriers.TrackingResult, shipments []orders.Shipment, from int, err error) {
	for i := from; i < len(results); i++ {
		results[i] = carriers.TrackingResult{
			TrackingNumber: shipments[i].TrackingNumber,
			Status:         carriers.StatusError,
			Success:        false,
			Error:          err.Error(),
			CheckedAt:      time.Now(),
		}
	}
}
