package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestRequestIDKeepsValidHeader(t *testing.T) {
	var seen string
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = responses.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-7f3a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "edge-7f3a" {
		t.Fatalf("expected request id in context, got %q", seen)
	}
	if got := rec.Header().Get(requestIDHeader); got != "edge-7f3a" {
		t.Fatalf("expected echoed header, got %q", got)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	h := RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for _, bad := range []string{"", "has space", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		if got == bad || len(got) != 36 {
			t.Fatalf("expected a minted uuid for %q, got %q", bad, got)
		}
	}
}

func TestRecovererAnswersInternalError(t *testing.T) {
	h := RequestID(nil)(Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	})))

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var body responses.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || body.Error.Message != "internal server error" || body.Error.RequestID != "req-1" {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}

func TestRecovererReraisesAbort(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", got)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
