package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Auth admits requests carrying a valid access token whose session is still
// live, and stores the caller as the request Principal. With a nil sessions
// checker only the token itself is verified.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticate(r.Context(), cfg, sessions, r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithRole(logg.WithUserID(ctx, principal.UserID), principal.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, sessions session.AccessSessionChecker, header string) (Principal, error) {
	token, err := pkgAuth.BearerToken(header)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	switch {
	case errors.Is(err, pkgAuth.ErrTokenExpired):
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	case err != nil:
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if sessions != nil {
		live, err := sessions.HasSession(ctx, claims.ID)
		if err != nil {
			return Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !live {
			return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}
	return Principal{UserID: claims.UserID.String(), Role: string(claims.Role), AccessID: claims.ID}, nil
}
