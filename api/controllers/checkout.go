package controllers

import (
	"net/http"

	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Checkout converts the caller's cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "checkout", logg, http.StatusCreated, func(svc checkoutsvc.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[checkoutsvc.CheckoutInput](r)
		if err != nil {
			return nil, err
		}
		result, err := svc.Execute(r.Context(), userID, body)
		if err != nil {
			return nil, err
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), result.OrderID.String()), "checkout.completed")
		}
		return result, nil
	})
}
