package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// handle turns fn into a handler that writes its result in the success
// envelope with status, or the error envelope when fn fails. A nil svc
// answers 500 so partially wired routers fail loudly.
func handle[S any](svc S, name string, logg *logger.Logger, status int, fn func(S, *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if any(svc) == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
			return
		}
		data, err := fn(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		switch status {
		case http.StatusNoContent:
			responses.WriteNoContent(w)
		case http.StatusOK:
			responses.WriteSuccess(w, data)
		default:
			responses.WriteSuccessStatus(w, status, data)
		}
	}
}

// decodeBody reads and validates the JSON request body into a T.
func decodeBody[T any](r *http.Request) (T, error) {
	var body T
	err := validators.DecodeJSONBody(r, &body)
	return body, err
}
