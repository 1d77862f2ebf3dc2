package report

import "strings"

// IsUnfulfilled reports whether a row represents an order that has no
// shipment yet.
func IsUnfulfilled(row Row) bool {
	status := strings.ToLower(row.TrackingStatus)
	return strings.Contains(status, "unfulfilled") ||
		strings.EqualFold(row.Carrier, CarrierNotFulfilled)
}

// IsNotDelivered reports whether a row's carrier explicitly marked the
// shipment as not delivered. Failed checks and in-flight shipments do not
// count; only a definite not-delivered status does.
func IsNotDelivered(row Row) bool {
	status := strings.ToLower(row.TrackingStatus)
	return strings.Contains(status, "not delivered") ||
		strings.Contains(status, "undelivered")
}

// Classify splits rows into the two alert groups used for notifications.
func Classify(rows []Row) (unfulfilled, notDelivered []Row) {
	for _, row := range rows {
		switch {
		case IsUnfulfilled(row):
			unfulfilled = append(unfulfilled, row)
		case IsNotDelivered(row):
			notDelivered = append(notDelivered, row)
		}
	}
	return unfulfilled, notDelivered
}
