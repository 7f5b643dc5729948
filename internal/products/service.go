package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

type categoryLookup interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// Service exposes catalog reads and admin product management.
type Service interface {
	List(ctx context.Context, params ListParams) (*ProductListResult, error)
	Get(ctx context.Context, id int) (*ProductDTO, error)
	ListByCategory(ctx context.Context, categoryID int) ([]ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id int, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, id int) error
}

// ListParams are the raw catalog listing knobs.
type ListParams struct {
	Page        int
	PageSize    int
	CategoryIDs []int
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"imageUrl" validate:"omitempty,url"`
	CategoryID  *int            `json:"categoryId" validate:"omitempty,gt=0"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
	CategoryID  *int             `json:"categoryId" validate:"omitempty,gt=0"`
}

type service struct {
	repo       ProductRepository
	categories categoryLookup
}

// NewService builds a product service.
func NewService(repo ProductRepository, categories categoryLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category lookup required")
	}
	return &service{repo: repo, categories: categories}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ProductListResult, error) {
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice must not exceed maxPrice")
	}
	page := pagination.NewPage(params.Page, params.PageSize)
	rows, total, err := s.repo.List(ctx, ListQuery{
		Page:        page,
		CategoryIDs: params.CategoryIDs,
		Search:      params.Search,
		MinPrice:    params.MinPrice,
		MaxPrice:    params.MaxPrice,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return &ProductListResult{
		Products: fromModels(rows),
		Metadata: pagination.NewMeta(page, total),
	}, nil
}

func (s *service) Get(ctx context.Context, id int) (*ProductDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "product not found")
	}
	dto := FromModel(product)
	return &dto, nil
}

func (s *service) ListByCategory(ctx context.Context, categoryID int) ([]ProductDTO, error) {
	if categoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id must be positive")
	}
	rows, err := s.repo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products by category")
	}
	return fromModels(rows), nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        name,
		Description: trimPtr(input.Description),
		Price:       input.Price.Round(2),
		ImageURL:    trimPtr(input.ImageURL),
		CategoryID:  input.CategoryID,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.FromDB(err, "create product")
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, id int, input UpdateProductInput) (*ProductDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "product not found")
	}
	if err := applyUpdate(product, input); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		product.Category = nil
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.FromDB(err, "update product")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.FromDB(err, "delete product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) ensureCategory(ctx context.Context, id *int) error {
	if id == nil {
		return nil
	}
	ok, err := s.categories.Exists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func applyUpdate(product *models.Product, input UpdateProductInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = trimPtr(input.Description)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		product.Price = input.Price.Round(2)
	}
	if input.ImageURL != nil {
		product.ImageURL = trimPtr(input.ImageURL)
	}
	if input.CategoryID != nil {
		product.CategoryID = input.CategoryID
	}
	return nil
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
