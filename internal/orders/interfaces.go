package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders and order_items tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	FindForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListAll(ctx context.Context, page pagination.Page, status *enums.OrderStatus) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
