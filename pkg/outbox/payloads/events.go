package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the per-product part of an order event.
type OrderLine struct {
	ProductID int             `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID           `json:"orderId"`
	UserID            uuid.UUID           `json:"userId"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"paymentStatus"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Shipping          decimal.Decimal     `json:"shipping"`
	Total             decimal.Decimal     `json:"total"`
	ShippingAddressID int                 `json:"shippingAddressId"`
	PaymentMethodID   int                 `json:"paymentMethodId"`
	Lines             []OrderLine         `json:"lines"`
	PlacedAt          time.Time           `json:"placedAt"`
}

// ItemCount sums quantities across lines.
func (e OrderCreatedEvent) ItemCount() int {
	n := 0
	for _, l := range e.Lines {
		n += l.Quantity
	}
	return n
}

// OrderStatusChangedEvent is emitted when an admin moves an order along its lifecycle.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	UserID    uuid.UUID         `json:"userId"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changedAt"`
}

// CartMergedEvent records a login-time merge of a local cart into the server cart.
type CartMergedEvent struct {
	UserID      uuid.UUID `json:"userId"`
	LocalLines  int       `json:"localLines"`
	ServerLines int       `json:"serverLines"`
	MergedLines int       `json:"mergedLines"`
	TotalItems  int       `json:"totalItems"`
	MergedAt    time.Time `json:"mergedAt"`
}
