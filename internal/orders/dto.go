package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// OrderItemDTO is an order line with the unit price captured at checkout.
type OrderItemDTO struct {
	ProductID int             `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderDTO is the public order shape.
type OrderDTO struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"userId"`
	OrderDate         time.Time           `json:"orderDate"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"paymentStatus"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Shipping          decimal.Decimal     `json:"shipping"`
	Total             decimal.Decimal     `json:"total"`
	ShippingAddressID int                 `json:"shippingAddressId"`
	PaymentMethodID   int                 `json:"paymentMethodId"`
	Notes             *string             `json:"notes,omitempty"`
	Items             []OrderItemDTO      `json:"items"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// OrderList wraps a page of the caller's orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// AdminOrderList is the offset-paginated listing used by the admin dashboard.
type AdminOrderList struct {
	Orders   []OrderDTO      `json:"orders"`
	Metadata pagination.Meta `json:"metadata"`
}

// UpdateStatusInput carries an admin status change. PaymentStatus is optional.
type UpdateStatusInput struct {
	Status        string  `json:"status" validate:"required"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

func FromModel(o *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderDTO{
		ID:                o.ID,
		UserID:            o.UserID,
		OrderDate:         o.OrderDate,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		Subtotal:          o.Subtotal,
		Shipping:          o.Shipping,
		Total:             o.Total,
		ShippingAddressID: o.ShippingAddressID,
		PaymentMethodID:   o.PaymentMethodID,
		Notes:             o.Notes,
		Items:             items,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
