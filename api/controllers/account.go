package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/paymentmethods"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func AddressesList(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "address", logg, http.StatusOK, func(svc address.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), userID)
	})
}

func AddressCreate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "address", logg, http.StatusCreated, func(svc address.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[address.Input](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), userID, body)
	})
}

// AddressDelete answers 404 for addresses owned by someone else.
func AddressDelete(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "address", logg, http.StatusNoContent, func(svc address.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		id, err := pathInt(r, "addressId")
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(r.Context(), userID, id)
	})
}

func PaymentMethodsList(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "payment method", logg, http.StatusOK, func(svc paymentmethods.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), userID)
	})
}

// PaymentMethodCreate keeps only the last four card digits.
func PaymentMethodCreate(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "payment method", logg, http.StatusCreated, func(svc paymentmethods.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[paymentmethods.Input](r)
		if err != nil {
			return nil, err
		}
		return svc.Create(r.Context(), userID, body)
	})
}

func PaymentMethodDelete(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "payment method", logg, http.StatusNoContent, func(svc paymentmethods.Service, r *http.Request) (any, error) {
		userID, err := requireUser(r)
		if err != nil {
			return nil, err
		}
		id, err := pathInt(r, "paymentMethodId")
		if err != nil {
			return nil, err
		}
		return nil, svc.Delete(r.Context(), userID, id)
	})
}
