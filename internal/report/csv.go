package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvHeader is the report's fixed column order.
var csvHeader = []string{
	"Order ID",
	"Order Date",
	"Customer Name",
	"Ordered Items",
	"Carrier",
	"Tracking Number",
	"Tracking URL",
	"Tracking Status",
}

// WriteCSV renders rows as a report CSV. Fields containing commas, quotes or
// newlines come out quoted per the usual CSV rules.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.OrderID,
			row.OrderDate,
			row.CustomerName,
			row.OrderedItems,
			row.Carrier,
			row.TrackingNumber,
			row.TrackingURL,
			row.TrackingStatus,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
