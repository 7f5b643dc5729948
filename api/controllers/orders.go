package controllers

import (
	"math"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/validators"
	orderssvc "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// OrdersList returns the caller's orders newest first, cursor paginated.
func OrdersList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "orders", logg, http.StatusOK, func(svc orderssvc.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
		return svc.List(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
	})
}

// OrderDetail hides other users' orders behind 404.
func OrderDetail(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "orders", logg, http.StatusOK, func(svc orderssvc.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), userID, orderID)
	})
}

// AdminOrdersList pages through every order, optionally filtered by status.
func AdminOrdersList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "orders", logg, http.StatusOK, func(svc orderssvc.Service, r *http.Request) (any, error) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		size, err := validators.ParseQueryInt(r, "pageSize", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		return svc.ListAll(r.Context(), pagination.NewPage(page, size), status)
	})
}

func AdminUpdateOrderStatus(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "orders", logg, http.StatusOK, func(svc orderssvc.Service, r *http.Request) (any, error) {
		actorID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[orderssvc.UpdateStatusInput](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateStatus(r.Context(), actorID, orderID, body)
	})
}
