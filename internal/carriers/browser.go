package carriers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shipment-tracking/internal/session"
)

// errStatusNotFound signals that every source loaded but none yielded a
// recognizable status. It is retryable inside a fetcher and never escapes the
// fetcher boundary.
var errStatusNotFound = errors.New("no recognizable status on page")

// trackingSource is one site a carrier's status can be read from. Primary and
// fallback sources are data consumed by a single uniform attempt loop; adding
// a third source for a carrier is a data change, not a code change.
type trackingSource struct {
	// name identifies the site in TrackingResult.Source.
	name string
	// url builds the tracking page URL for a tracking number.
	url func(trackingNumber string) string
	// waitKeywords end the content wait early once any of them appears.
	waitKeywords []string
	// waitTimeout caps the content wait.
	waitTimeout time.Duration
	// settle is an extra pause for sites that render after load without ever
	// matching a wait keyword.
	settle time.Duration
	// strategies are tried in order, most specific first.
	strategies []Strategy
}

// browserFetcher resolves statuses by driving pool sessions through an
// ordered list of tracking sources.
type browserFetcher struct {
	name       string
	pool       *session.Pool
	sources    []trackingSource
	retry      RetryPolicy
	normalizer *Normalizer
	logger     *slog.Logger
}

func (f *browserFetcher) Name() string {
	return f.name
}

// Fetch resolves one tracking number. All failures are converted into result
// values: transport errors exhaust the retry budget and become an "Error"
// result, a clean miss across all sources becomes "Status not found".
func (f *browserFetcher) Fetch(ctx context.Context, trackingNumber string) TrackingResult {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return errorResult(trackingNumber, f.name, 0, errors.New("invalid tracking number"))
	}

	var found TrackingResult
	var lastSource string
	attempts := 0

	err := withRetry(ctx, f.retry, func(ctx context.Context) error {
		attempts++
		result, source, err := f.attempt(ctx, trackingNumber)
		lastSource = source
		if err != nil {
			f.logger.Warn("Tracking attempt failed",
				"carrier", f.name,
				"tracking_number", trackingNumber,
				"attempt", attempts,
				"error", err)
			return err
		}
		found = result
		return nil
	})

	if err != nil {
		if errors.Is(err, errStatusNotFound) {
			return notFoundResult(trackingNumber, lastSource, attempts)
		}
		return errorResult(trackingNumber, f.name, attempts, err)
	}

	found.TrackingNumber = trackingNumber
	found.Attempts = attempts
	found.CheckedAt = time.Now()
	f.logger.Info("Resolved tracking status",
		"carrier", f.name,
		"tracking_number", trackingNumber,
		"status", found.Status,
		"source", found.Source)
	return found
}

// attempt runs one full pass over the source list with a single session.
// A transport error on the primary source falls through to the fallback
// before the pass counts as failed.
func (f *browserFetcher) attempt(ctx context.Context, trackingNumber string) (TrackingResult, string, error) {
	var result TrackingResult
	lastSource := f.name

	err := f.pool.WithSession(ctx, func(ctx context.Context, s session.Session) error {
		var lastErr error
		for _, src := range f.sources {
			lastSource = src.name
			status, err := f.attemptSource(ctx, s, src, trackingNumber)
			if err != nil {
				lastErr = err
				continue
			}
			if status == "" {
				lastErr = errStatusNotFound
				continue
			}
			result = TrackingResult{
				Status:  f.normalizer.Normalize(status),
				Success: true,
				Source:  src.name,
			}
			return nil
		}
		return lastErr
	})

	if err != nil {
		return TrackingResult{}, lastSource, err
	}
	return result, result.Source, nil
}

// attemptSource loads one source's page and runs its strategy cascade.
func (f *browserFetcher) attemptSource(ctx context.Context, s session.Session, src trackingSource, trackingNumber string) (string, error) {
	pageURL := src.url(trackingNumber)
	if err := s.Navigate(ctx, pageURL); err != nil {
		return "", err
	}

	if len(src.waitKeywords) > 0 {
		if !s.WaitForText(ctx, src.waitTimeout, src.waitKeywords...) && src.settle > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(src.settle):
			}
		}
	} else if src.settle > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(src.settle):
		}
	}

	text, err := s.BodyText(ctx)
	if err != nil {
		return "", err
	}
	// Title is a last-resort signal only; a failure reading it is not fatal.
	title, _ := s.Title(ctx)

	return extractStatus(PageContent{Text: text, Title: title}, src.strategies), nil
}
