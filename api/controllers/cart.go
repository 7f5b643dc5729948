package controllers

import (
	"net/http"

	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type addCartItemRequest struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gte=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type replaceCartRequest struct {
	Items []cartsvc.LineInput `json:"items" validate:"dive"`
}

// cartHandler runs fn for the authenticated caller.
func cartHandler(svc cartsvc.Service, logg *logger.Logger, status int, fn func(cartsvc.Service, *http.Request, uuid.UUID) (any, error)) http.HandlerFunc {
	return handle(svc, "cart", logg, status, func(svc cartsvc.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		return fn(svc, r, userID)
	})
}

// CartFetch returns the caller's cart joined with live product data.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusOK, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		return svc.GetCart(r.Context(), userID)
	})
}

// CartAddItem adds quantity to a line, creating it when absent.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusOK, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		body, err := decodeBody[addCartItemRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), userID, body.ProductID, body.Quantity)
	})
}

func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusOK, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		productID, err := pathInt(r, "productId")
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[updateCartItemRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateQuantity(r.Context(), userID, productID, body.Quantity)
	})
}

// CartRemoveItem answers 200 even when the line was already gone.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusOK, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		productID, err := pathInt(r, "productId")
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), userID, productID)
	})
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusNoContent, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		return nil, svc.Clear(r.Context(), userID)
	})
}

// CartReplace swaps the whole cart in one transaction. Clients push the
// merged cart through it after login.
func CartReplace(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(svc, logg, http.StatusOK, func(svc cartsvc.Service, r *http.Request, userID uuid.UUID) (any, error) {
		body, err := decodeBody[replaceCartRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.ReplaceItems(r.Context(), userID, body.Items)
	})
}
