package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/internal/categories"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func CategoriesList(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "category", logg, http.StatusOK, func(svc categories.Service, r *http.Request) (any, error) {
		return svc.List(r.Context())
	})
}

func CategoryGet(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "category", logg, http.StatusOK, func(svc categories.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "categoryId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), id)
	})
}

func AdminCreateCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "category", logg, http.StatusCreated, func(svc categories.Service, r *http.Request) (any, error) {
		body, err := decodeBody[categories.Input](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), body)
	})
}

// AdminUpdateCategory renames a category; names stay unique.
func AdminUpdateCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "category", logg, http.StatusOK, func(svc categories.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "categoryId")
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[categories.Input](r)
		if err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), id, body)
	})
}

func AdminDeleteCategory(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "category", logg, http.StatusNoContent, func(svc categories.Service, r *http.Request) (any, error) {
		id, err := pathInt(r, "categoryId")
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(r.Context(), id)
	})
}
