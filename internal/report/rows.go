package report

import (
	"strings"

	"shipment-tracking/internal/orders"
)

// Placeholder values for rows that cannot be tracked.
const (
	CarrierNotFulfilled = "Not Fulfilled"
	CarrierUnknown      = "Unknown"
	NoValue             = "N/A"
	StatusUnfulfilled   = "Unfulfilled"
	StatusPending       = "Pending"
)

// Row is one line of the tracking report.
type Row struct {
	OrderID        string `json:"orderId"`
	OrderDate      string `json:"orderDate"`
	CustomerName   string `json:"customerName"`
	OrderedItems   string `json:"orderedItems"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
	TrackingStatus string `json:"trackingStatus"`
}

// BuildRows shapes orders into report rows. Unfulfilled orders and orders
// without a tracking number get placeholder values so every order appears in
// the report regardless of its fulfillment state.
func BuildRows(orderList []orders.Order) []Row {
	rows := make([]Row, 0, len(orderList))
	for i := range orderList {
		order := &orderList[i]
		row := Row{
			OrderID:      order.OrderID(),
			OrderDate:    order.OrderDate(),
			CustomerName: order.CustomerName(),
			OrderedItems: order.ItemsSummary(),
		}

		fulfillment := order.PrimaryFulfillment()
		switch {
		case fulfillment == nil:
			row.Carrier = CarrierNotFulfilled
			row.TrackingNumber = NoValue
			row.TrackingURL = NoValue
			row.TrackingStatus = StatusUnfulfilled
		case strings.TrimSpace(fulfillment.TrackingNumber) == "":
			row.Carrier = carrierOrUnknown(fulfillment.TrackingCompany)
			row.TrackingNumber = NoValue
			row.TrackingURL = valueOrNA(fulfillment.TrackingURL)
			row.TrackingStatus = StatusPending
		default:
			row.Carrier = carrierOrUnknown(fulfillment.TrackingCompany)
			row.TrackingNumber = strings.TrimSpace(fulfillment.TrackingNumber)
			row.TrackingURL = valueOrNA(fulfillment.TrackingURL)
			row.TrackingStatus = StatusPending
		}

		rows = append(rows, row)
	}
	return rows
}

// TrackableShipments extracts the shipments worth tracking from a report,
// returning them alongside the indices of their rows so statuses can be
// written back after the batch run.
func TrackableShipments(rows []Row) ([]orders.Shipment, []int) {
	var shipments []orders.Shipment
	var indices []int
	for i, row := range rows {
		if row.TrackingNumber == "" || row.TrackingNumber == NoValue {
			continue
		}
		shipment := orders.Shipment{
			TrackingNumber: row.TrackingNumber,
			CarrierLabel:   row.Carrier,
		}
		if row.TrackingURL != NoValue {
			shipment.TrackingURL = row.TrackingURL
		}
		shipments = append(shipments, shipment)
		indices = append(indices, i)
	}
	return shipments, indices
}

func carrierOrUnknown(company string) string {
	company = strings.TrimSpace(company)
	if company == "" {
		return CarrierUnknown
	}
	return company
}

func valueOrNA(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NoValue
	}
	return v
}
