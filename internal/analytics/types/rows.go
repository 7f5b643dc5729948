package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
)

// OrderFactRow mirrors the order_facts BigQuery schema. One row is written per
// consumed order event; amounts are stored in cents.
type OrderFactRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrderID        string             `bigquery:"order_id"`
	UserID         string             `bigquery:"user_id"`
	Status         *string            `bigquery:"status"`
	PreviousStatus *string            `bigquery:"previous_status"`
	PaymentStatus  *string            `bigquery:"payment_status"`
	SubtotalCents  *int64             `bigquery:"subtotal_cents"`
	ShippingCents  *int64             `bigquery:"shipping_cents"`
	TotalCents     *int64             `bigquery:"total_cents"`
	ItemCount      *int64             `bigquery:"item_count"`
	LineCount      *int64             `bigquery:"line_count"`
	Lines          cbigquery.NullJSON `bigquery:"lines"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}

// OrderFactsTable is the managed table spec: partitioned by day on occurred_at
// and clustered for per-order and per-event-type scans.
func OrderFactsTable(name string) bigquery.TableSpec {
	return bigquery.TableSpec{
		Name:       name,
		Schema:     OrderFactsSchema(),
		Clustering: []string{"event_type", "order_id"},
	}
}

// OrderFactsSchema is used to create the table when it does not exist yet.
func OrderFactsSchema() cbigquery.Schema {
	return cbigquery.Schema{
		{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
		{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
		{Name: "order_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "user_id", Type: cbigquery.StringFieldType},
		{Name: "status", Type: cbigquery.StringFieldType},
		{Name: "previous_status", Type: cbigquery.StringFieldType},
		{Name: "payment_status", Type: cbigquery.StringFieldType},
		{Name: "subtotal_cents", Type: cbigquery.IntegerFieldType},
		{Name: "shipping_cents", Type: cbigquery.IntegerFieldType},
		{Name: "total_cents", Type: cbigquery.IntegerFieldType},
		{Name: "item_count", Type: cbigquery.IntegerFieldType},
		{Name: "line_count", Type: cbigquery.IntegerFieldType},
		{Name: "lines", Type: cbigquery.JSONFieldType},
		{Name: "payload", Type: cbigquery.JSONFieldType},
	}
}
