package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ShippingAddress is a delivery destination saved by a user.
type ShippingAddress struct {
	ID         int       `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Street     string    `gorm:"column:street;not null"`
	City       string    `gorm:"column:city;not null"`
	State      string    `gorm:"column:state;not null"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Country    string    `gorm:"column:country;not null"`
	Phone      *string   `gorm:"column:phone"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShippingAddress) TableName() string { return "shipping_addresses" }

// BillingAddress is stored as JSON alongside a payment method.
type BillingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentMethod is a saved payment reference. Only the last four card digits are kept.
type PaymentMethod struct {
	ID             int                     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	MethodType     enums.PaymentMethodType `gorm:"column:method_type;type:payment_method_type;not null"`
	CardLast4      *string                 `gorm:"column:card_last4"`
	ExpirationDate *string                 `gorm:"column:expiration_date"`
	BillingAddress *BillingAddress         `gorm:"column:billing_address;type:jsonb;serializer:json"`
	IsDefault      bool                    `gorm:"column:is_default;not null;default:false"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }
