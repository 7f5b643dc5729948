package cartclient

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CatalogProduct is the listing shape the catalog helpers operate on.
type CatalogProduct struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CategoryID  *int            `json:"categoryId,omitempty"`
}

// Filter narrows a product listing. Zero values disable a criterion.
type Filter struct {
	Search      string
	CategoryIDs []int
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
}

type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPrice     SortKey = "price"
	SortByPriceDesc SortKey = "price-desc"
)

// FilterProducts keeps products matching every active criterion. The search is a
// case-insensitive substring match over name and description.
func FilterProducts(products []CatalogProduct, f Filter) []CatalogProduct {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]CatalogProduct, 0, len(products))
	for _, p := range products {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		if len(f.CategoryIDs) > 0 && (p.CategoryID == nil || !slices.Contains(f.CategoryIDs, *p.CategoryID)) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SortProducts returns a sorted copy. Unknown keys keep the input order.
func SortProducts(products []CatalogProduct, key SortKey) []CatalogProduct {
	out := slices.Clone(products)
	switch key {
	case SortByName:
		col := collate.New(language.English, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b CatalogProduct) int {
			return col.CompareString(a.Name, b.Name)
		})
	case SortByPrice:
		slices.SortStableFunc(out, func(a, b CatalogProduct) int {
			return a.Price.Cmp(b.Price)
		})
	case SortByPriceDesc:
		slices.SortStableFunc(out, func(a, b CatalogProduct) int {
			return b.Price.Cmp(a.Price)
		})
	}
	return out
}
