package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

type sessionsStub struct {
	live bool
	err  error
}

func (s sessionsStub) HasSession(context.Context, string) (bool, error) { return s.live, s.err }

func mint(t *testing.T, userID uuid.UUID, role enums.Role, issued time.Time) (token, accessID string) {
	t.Helper()
	accessID = session.NewAccessID()
	token, err := auth.MintAccessToken(testJWT, issued, auth.AccessTokenPayload{UserID: userID, Role: role, JTI: accessID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, accessID
}

func callAuth(sessions session.AccessSessionChecker, header string, next http.HandlerFunc) *httptest.ResponseRecorder {
	if next == nil {
		next = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	Auth(testJWT, sessions, nil)(next).ServeHTTP(rec, req)
	return rec
}

func TestAuthRejections(t *testing.T) {
	valid, _ := mint(t, uuid.New(), enums.RoleUser, time.Now())
	expired, _ := mint(t, uuid.New(), enums.RoleUser, time.Now().Add(-2*time.Hour))

	cases := []struct {
		name     string
		header   string
		sessions session.AccessSessionChecker
		want     int
	}{
		{"missing header", "", sessionsStub{live: true}, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, sessionsStub{live: true}, http.StatusUnauthorized},
		{"garbage token", "Bearer invalid", sessionsStub{live: true}, http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, sessionsStub{live: true}, http.StatusUnauthorized},
		{"revoked session", "Bearer " + valid, sessionsStub{live: false}, http.StatusUnauthorized},
		{"session store down", "Bearer " + valid, sessionsStub{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := callAuth(tc.sessions, tc.header, func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			})
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAuthStoresPrincipal(t *testing.T) {
	userID := uuid.New()
	token, accessID := mint(t, userID, enums.RoleAdmin, time.Now())

	var got Principal
	rec := callAuth(sessionsStub{live: true}, "bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	want := Principal{UserID: userID.String(), Role: string(enums.RoleAdmin), AccessID: accessID}
	if got != want {
		t.Fatalf("expected principal %+v got %+v", want, got)
	}
}

func TestAuthWithoutSessionCheckerTrustsToken(t *testing.T) {
	token, _ := mint(t, uuid.New(), enums.RoleUser, time.Now())
	if code := callAuth(nil, "Bearer "+token, nil).Code; code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(enums.RoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{
		string(enums.RoleAdmin): http.StatusNoContent,
		string(enums.RoleUser):  http.StatusForbidden,
		"":                      http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), role)))
		if rec.Code != want {
			t.Fatalf("role %q: expected %d got %d", role, want, rec.Code)
		}
	}
}
