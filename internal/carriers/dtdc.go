package carriers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var dtdcStatusKeywords = []string{
	"Delivered", "In Transit", "Out for Delivery", "Picked Up", "Booked", "Pending",
}

const dtdcBaseURL = "https://txk.dtdc.com/ctbs-tracking/customerInterface.tr"

// DTDCFetcher tracks DTDC consignments over plain HTTP. DTDC's tracking
// interface is server-rendered, so a full browser session is unnecessary;
// the consignment page is fetched directly and parsed as HTML.
type DTDCFetcher struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	retry      RetryPolicy
	normalizer *Normalizer
	logger     *slog.Logger
}

// NewDTDCFetcher creates the DTDC fetcher. A nil client gets a 30s-timeout
// default, matching the slow production tracking servers.
func NewDTDCFetcher(client *http.Client, userAgent string, normalizer *Normalizer, logger *slog.Logger) *DTDCFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DTDCFetcher{
		client:     client,
		baseURL:    dtdcBaseURL,
		userAgent:  userAgent,
		retry:      RetryPolicy{MaxAttempts: 3, Backoff: LinearBackoff(2 * time.Second)},
		normalizer: normalizer,
		logger:     logger,
	}
}

func (f *DTDCFetcher) Name() string {
	return "dtdc"
}

// Fetch resolves one consignment number, retrying transient failures.
func (f *DTDCFetcher) Fetch(ctx context.Context, trackingNumber string) TrackingResult {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return errorResult(trackingNumber, "dtdc", 0, errors.New("invalid tracking number"))
	}

	var status string
	attempts := 0

	err := withRetry(ctx, f.retry, func(ctx context.Context) error {
		attempts++
		found, err := f.attempt(ctx, trackingNumber)
		if err != nil {
			f.logger.Warn("DTDC tracking attempt failed",
				"tracking_number", trackingNumber,
				"attempt", attempts,
				"error", err)
			return err
		}
		status = found
		return nil
	})

	if err != nil {
		if errors.Is(err, errStatusNotFound) {
			return notFoundResult(trackingNumber, "dtdc", attempts)
		}
		return errorResult(trackingNumber, "dtdc", attempts, err)
	}

	return TrackingResult{
		TrackingNumber: trackingNumber,
		Status:         f.normalizer.Normalize(status),
		Success:        true,
		Source:         "dtdc",
		Attempts:       attempts,
		CheckedAt:      time.Now(),
	}
}

func (f *DTDCFetcher) attempt(ctx context.Context, trackingNumber string) (string, error) {
	pageURL := f.baseURL +
		"?submitName=showCITrackingDetails&cType=Consignment&cnNo=" + trackingNumber

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch tracking page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse tracking page: %w", err)
	}

	if status := extractDTDCStatus(doc); status != "" {
		return status, nil
	}
	return "", errStatusNotFound
}

// extractDTDCStatus runs the extraction cascade over the consignment page:
// the "Last Status" label's neighbor, then table cells, then a keyword scan.
func extractDTDCStatus(doc *goquery.Document) string {
	var status string

	// The label and its value are adjacent elements (or the value lives in
	// the element after the label's parent).
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "Last Status" && text != "Last Status:" {
			return true
		}
		value := sel.Next()
		if value.Length() == 0 {
			value = sel.Parent().Next()
		}
		status = firstLine(strings.TrimSpace(value.Text()))
		return status == ""
	})
	if status != "" {
		return status
	}

	doc.Find("td, th").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(strings.TrimSpace(sel.Text())), "last status") {
			return true
		}
		next := sel.Next()
		if next.Length() > 0 {
			status = firstLine(strings.TrimSpace(next.Text()))
		}
		return status == ""
	})
	if status != "" {
		return status
	}

	pageText := doc.Find("body").Text()
	for _, kw := range dtdcStatusKeywords {
		if strings.Contains(pageText, kw) {
			return kw
		}
	}
	return ""
}
