package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// factHandler turns one event payload type into an order_facts row.
type factHandler[T any] struct {
	writer Writer
	logg   *logger.Logger
	fields func(*T) map[string]any
	build  func(types.Envelope, *T) (types.OrderFactRow, error)
}

func (h factHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("invalid payload %T for %s", payload, envelope.EventType)
	}
	fields := h.fields(event)
	fields["event_type"] = envelope.EventType
	ctx = h.logg.WithFields(ctx, fields)

	row, err := h.build(envelope, event)
	if err != nil {
		h.logg.Error(ctx, "failed to build order fact row", err)
		return err
	}
	if err := h.writer.InsertOrderFact(ctx, row); err != nil {
		h.logg.Error(ctx, "failed to insert order fact row", err)
		return err
	}
	h.logg.Info(ctx, "order fact recorded")
	return nil
}

func newOrderCreatedHandler(writer Writer, logg *logger.Logger) Handler {
	return factHandler[payloads.OrderCreatedEvent]{
		writer: writer,
		logg:   logg,
		fields: func(e *payloads.OrderCreatedEvent) map[string]any {
			return map[string]any{"order_id": e.OrderID.String(), "user_id": e.UserID.String()}
		},
		build: orderCreatedRow,
	}
}

func newOrderStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return factHandler[payloads.OrderStatusChangedEvent]{
		writer: writer,
		logg:   logg,
		fields: func(e *payloads.OrderStatusChangedEvent) map[string]any {
			return map[string]any{"order_id": e.OrderID.String(), "from": e.From, "to": e.To}
		},
		build: statusChangedRow,
	}
}

func orderCreatedRow(envelope types.Envelope, e *payloads.OrderCreatedEvent) (types.OrderFactRow, error) {
	lines, err := analyticswriter.EncodeJSON(e.Lines)
	if err != nil {
		return types.OrderFactRow{}, fmt.Errorf("encode lines json: %w", err)
	}
	row, err := baseRow(envelope, e, e.PlacedAt)
	if err != nil {
		return row, err
	}
	row.OrderID, row.UserID = e.OrderID.String(), e.UserID.String()
	row.Status = text(string(e.Status))
	row.PaymentStatus = text(string(e.PaymentStatus))
	row.SubtotalCents = cents(e.Subtotal)
	row.ShippingCents = cents(e.Shipping)
	row.TotalCents = cents(e.Total)
	row.ItemCount = ptr(int64(e.ItemCount()))
	row.LineCount = ptr(int64(len(e.Lines)))
	row.Lines = lines
	return row, nil
}

// statusChangedRow carries no amounts; those live on the order_created row.
func statusChangedRow(envelope types.Envelope, e *payloads.OrderStatusChangedEvent) (types.OrderFactRow, error) {
	row, err := baseRow(envelope, e, e.ChangedAt)
	if err != nil {
		return row, err
	}
	row.OrderID, row.UserID = e.OrderID.String(), e.UserID.String()
	row.Status = text(string(e.To))
	row.PreviousStatus = text(string(e.From))
	return row, nil
}

// baseRow fills the columns every fact shares. OccurredAt prefers the
// envelope clock and falls back to the event's own timestamp.
func baseRow(envelope types.Envelope, event any, eventTime time.Time) (types.OrderFactRow, error) {
	payload, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	occurred := envelope.OccurredAt
	if occurred.IsZero() {
		occurred = eventTime
	}
	return types.OrderFactRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: occurred.UTC(),
		Payload:    payload,
	}, nil
}

func ptr[T any](v T) *T { return &v }

// text maps blank strings to NULL.
func text(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// cents rounds half away from zero.
func cents(amount decimal.Decimal) *int64 {
	return ptr(amount.Shift(2).Round(0).IntPart())
}
