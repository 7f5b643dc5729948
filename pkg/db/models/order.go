package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is written once per checkout.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderDate         time.Time           `gorm:"column:order_date;not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Shipping          decimal.Decimal     `gorm:"column:shipping;type:numeric(10,2);not null"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	ShippingAddressID int                 `gorm:"column:shipping_address_id;not null"`
	PaymentMethodID   int                 `gorm:"column:payment_method_id;not null"`
	Notes             *string             `gorm:"column:notes"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// BeforeCreate assigns the id client side so inserts work on every dialect.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is an order line. Price is the unit price captured at checkout and never revised.
type OrderItem struct {
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;primaryKey"`
	ProductID int             `gorm:"column:product_id;primaryKey"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
}

func (OrderItem) TableName() string { return "order_items" }
