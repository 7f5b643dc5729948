package controllers

import (
	"math"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxSearchLength = 200

// ProductsList serves the public, filtered catalog listing.
func ProductsList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusOK, func(svc productsvc.Service, r *http.Request) (any, error) {
		params, err := productListParams(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), params)
	})
}

func productListParams(r *http.Request) (productsvc.ListParams, error) {
	params := productsvc.ListParams{
		Search: validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength),
	}
	var err error
	if params.Page, err = validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32); err != nil {
		return params, err
	}
	if params.PageSize, err = validators.ParseQueryInt(r, "pageSize", pagination.DefaultPageSize, 1, pagination.MaxLimit); err != nil {
		return params, err
	}
	if params.CategoryIDs, err = queryInts(r, "categoryIds"); err != nil {
		return params, err
	}
	if params.MinPrice, err = queryDecimal(r, "minPrice"); err != nil {
		return params, err
	}
	params.MaxPrice, err = queryDecimal(r, "maxPrice")
	return params, err
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusOK, func(svc productsvc.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "productId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), id)
	})
}

// CategoryProducts lists every product assigned to a category.
func CategoryProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusOK, func(svc productsvc.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "categoryId")
		if err != nil {
			return nil, err
		}
		return svc.ListByCategory(r.Context(), id)
	})
}

func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusCreated, func(svc productsvc.Service, r *http.Request) (any, error) {
		body, err := decodeBody[productsvc.CreateProductInput](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), body)
	})
}

// AdminUpdateProduct applies a partial update; omitted fields stay as they are.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusOK, func(svc productsvc.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "productId")
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[productsvc.UpdateProductInput](r)
		if err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), id, body)
	})
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "product", logg, http.StatusNoContent, func(svc productsvc.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "productId")
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(r.Context(), id)
	})
}
