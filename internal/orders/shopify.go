package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const shopifyPageSize = 250

// nextLinkPattern pulls the rel="next" URL out of a Link response header.
var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// ShopifyClient fetches orders from the Shopify Admin REST API, following
// cursor pagination until the result set is exhausted.
type ShopifyClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

// NewShopifyClient creates a client for the given store. storeURL may be a
// bare domain ("example.myshopify.com") or a full URL; apiVersion is the
// Admin API version ("2024-01"). A nil httpClient gets a 30s-timeout default.
func NewShopifyClient(storeURL, accessToken, apiVersion string, httpClient *http.Client, logger *slog.Logger) *ShopifyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimSuffix(storeURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &ShopifyClient{
		baseURL:     fmt.Sprintf("%s/admin/api/%s", base, apiVersion),
		accessToken: accessToken,
		client:      httpClient,
		logger:      logger,
	}
}

// FetchOrders retrieves all orders matching the query, walking every page.
func (c *ShopifyClient) FetchOrders(ctx context.Context, query Query) ([]Order, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", shopifyPageSize))
	params.Set("status", "any")
	if query.FromDate != "" {
		params.Set("created_at_min", query.FromDate)
	}
	if query.ToDate != "" {
		params.Set("created_at_max", query.ToDate)
	}
	if query.FulfillmentStatus != "" {
		params.Set("fulfillment_status", query.FulfillmentStatus)
	}

	pageURL := c.baseURL + "/orders.json?" + params.Encode()

	var all []Order
	for pageURL != "" {
		orders, next, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
		pageURL = next
	}

	c.logger.Info("Fetched orders", "count", len(all),
		"from", query.FromDate, "to", query.ToDate)
	return all, nil
}

func (c *ShopifyClient) fetchPage(ctx context.Context, pageURL string) ([]Order, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("orders API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Orders []Order `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("failed to decode orders response: %w", err)
	}

	return payload.Orders, nextPageURL(resp.Header.Get("Link")), nil
}

// nextPageURL extracts the rel="next" cursor URL, empty on the last page.
func nextPageURL(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	m := nextLinkPattern.FindStringSubmatch(linkHeader)
	if m == nil {
		return ""
	}
	return m[1]
}
