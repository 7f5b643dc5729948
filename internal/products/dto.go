package product

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

// ProductDTO represents the product payload returned to clients.
type ProductDTO struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	CategoryID  *int            `json:"categoryId,omitempty"`
	Category    *CategoryRef    `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CategoryRef is the category summary embedded in product payloads.
type CategoryRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductListResult is one page of the catalog.
type ProductListResult struct {
	Products []ProductDTO    `json:"products"`
	Metadata pagination.Meta `json:"metadata"`
}

// FromModel maps a product row to its DTO.
func FromModel(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		dto.Category = &CategoryRef{ID: p.Category.ID, Name: p.Category.Name}
	}
	return dto
}

func fromModels(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
