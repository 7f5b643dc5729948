package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/internal/auth"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AuthRegister creates an account, or sets the password of an account that
// was created without one.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "register", logg, http.StatusCreated, func(svc auth.RegisterService, r *http.Request) (any, error) {
		body, err := decodeBody[auth.RegisterRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Register(r.Context(), body)
	})
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "auth", logg, http.StatusOK, func(svc auth.Service, r *http.Request) (any, error) {
		body, err := decodeBody[auth.LoginRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.Login(r.Context(), body)
	})
}

// AuthRefresh rotates the session bound to the bearer token, which may
// already be expired.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "auth", logg, http.StatusOK, func(svc auth.Service, r *http.Request) (any, error) {
		token, err := bearerToken(r)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody[auth.RefreshRequest](r)
		if err != nil {
			return nil, err
		}
		body.AccessToken = token
		return svc.Refresh(r.Context(), body)
	})
}

// AuthLogout drops the refresh token bound to the presented access token.
// Expired access tokens are accepted so a client can always sign out.
func AuthLogout(svc auth.Service, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, "auth", logg, http.StatusOK, func(svc auth.Service, r *http.Request) (any, error) {
		token, err := bearerToken(r)
		if err != nil {
			return nil, err
		}
		claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, token)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
		}
		if err := svc.Logout(r.Context(), claims.ID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "logged_out"}, nil
	})
}

func bearerToken(r *http.Request) (string, error) {
	token, err := pkgAuth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials")
	}
	return token, nil
}
