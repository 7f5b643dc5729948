package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one server cart line, unique per (user, product).
type CartItem struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID int       `gorm:"column:product_id;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
