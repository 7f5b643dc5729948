package cart

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	LockByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, userID uuid.UUID, productID, quantity int) error
	UpdateQuantity(ctx context.Context, userID uuid.UUID, productID, quantity int) (int64, error)
	Delete(ctx context.Context, userID uuid.UUID, productID int) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	ReplaceAll(ctx context.Context, userID uuid.UUID, items []models.CartItem) error
}

// productLookup reports which of the provided product ids exist.
type productLookup interface {
	ExistingIDs(ctx context.Context, ids []int) ([]int, error)
}
