package product

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductRepository defines persistence for the catalog.
type ProductRepository interface {
	List(ctx context.Context, query ListQuery) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id int) (*models.Product, error)
	ListByCategory(ctx context.Context, categoryID int) ([]models.Product, error)
	ExistingIDs(ctx context.Context, ids []int) ([]int, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id int) (int64, error)
}

// ListQuery is a normalized product listing request.
type ListQuery struct {
	Page        pagination.Page
	CategoryIDs []int
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
}

// Repository wires product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) filtered(ctx context.Context, query ListQuery) *gorm.DB {
	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if len(query.CategoryIDs) > 0 {
		qb = qb.Where("category_id IN ?", query.CategoryIDs)
	}
	if search := strings.ToLower(strings.TrimSpace(query.Search)); search != "" {
		pattern := "%" + search + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)", pattern, pattern)
	}
	if query.MinPrice != nil {
		qb = qb.Where("price >= ?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		qb = qb.Where("price <= ?", *query.MaxPrice)
	}
	return qb
}

// List returns one page of matching products plus the total match count.
func (r *Repository) List(ctx context.Context, query ListQuery) ([]models.Product, int64, error) {
	var total int64
	if err := r.filtered(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	if err := r.filtered(ctx, query).
		Preload("Category").
		Order("created_at DESC").
		Order("id DESC").
		Limit(query.Page.PageSize).
		Offset(query.Page.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// FindByID loads a product with its category.
func (r *Repository) FindByID(ctx context.Context, id int) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Where("id = ?", id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListByCategory returns every product of a category, newest first.
func (r *Repository) ListByCategory(ctx context.Context, categoryID int) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Where("category_id = ?", categoryID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExistingIDs returns the subset of ids that exist.
func (r *Repository) ExistingIDs(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []int
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Create(product).Error
}

func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

// Delete removes a product and reports how many rows were deleted.
func (r *Repository) Delete(ctx context.Context, id int) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}
