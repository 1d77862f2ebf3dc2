package orders

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Shipment identifies one trackable unit extracted from an order. It is
// immutable once constructed; the tracking subsystem never mutates it.
type Shipment struct {
	TrackingNumber string `json:"trackingNumber"`
	// CarrierLabel is free text from the upstream platform and may be noisy.
	CarrierLabel string `json:"carrierLabel"`
	// TrackingURL is an optional secondary signal when the label is ambiguous.
	TrackingURL string `json:"trackingUrl,omitempty"`
}

// Query filters an order fetch.
type Query struct {
	FromDate          string
	ToDate            string
	FulfillmentStatus string
}

// Source yields shipment-bearing order records for a date range.
type Source interface {
	FetchOrders(ctx context.Context, query Query) ([]Order, error)
}

// Order is the subset of a commerce-platform order the tracking report needs.
type Order struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CreatedAt    time.Time     `json:"created_at"`
	Customer     *Customer     `json:"customer"`
	LineItems    []LineItem    `json:"line_items"`
	Fulfillments []Fulfillment `json:"fulfillments"`
}

// Customer carries the name fields used in the report.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LineItem is one ordered product line.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Fulfillment carries the tracking fields of one fulfillment.
type Fulfillment struct {
	TrackingNumber  string `json:"tracking_number"`
	TrackingURL     string `json:"tracking_url"`
	TrackingCompany string `json:"tracking_company"`
}

// OrderID returns the display identifier, preferring the human-readable name.
func (o *Order) OrderID() string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("%d", o.ID)
}

// OrderDate formats the creation date for the report, empty when unknown.
func (o *Order) OrderDate() string {
	if o.CreatedAt.IsZero() {
		return ""
	}
	return o.CreatedAt.Format("1/2/2006")
}

// CustomerName joins the customer's names, "N/A" when absent.
func (o *Order) CustomerName() string {
	if o.Customer == nil {
		return "N/A"
	}
	name := strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	if name == "" {
		return "N/A"
	}
	return name
}

// ItemsSummary renders line items as "Title (xN), Title (xN)".
func (o *Order) ItemsSummary() string {
	parts := make([]string, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		parts = append(parts, fmt.Sprintf("%s (x%d)", item.Title, item.Quantity))
	}
	return strings.Join(parts, ", ")
}

// PrimaryFulfillment returns the first fulfillment, or nil for unfulfilled
// orders. Multi-fulfillment orders are reported by their first shipment.
func (o *Order) PrimaryFulfillment() *Fulfillment {
	if len(o.Fulfillments) == 0 {
		return nil
	}
	return &o.Fulfillments[0]
}
