package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := map[string]any{"data": map[string]any{"hello": "world"}}
	if !reflect.DeepEqual(body, want) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]int{"id": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestWriteErrorStatusAndMessage(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation keeps message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "demo"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "bad input",
			wantDetails: true,
		},
		{
			name:    "dependency is masked",
			err:     pkgerrors.New(pkgerrors.CodeDependency, "redis dial tcp 10.0.0.3:6379"),
			status:  http.StatusServiceUnavailable,
			code:    pkgerrors.CodeDependency,
			message: "dependency unavailable",
		},
		{
			name:    "untyped error becomes internal",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
			body := errorBody(t, rec)
			if body.Code != string(tc.code) || body.Message != tc.message {
				t.Fatalf("unexpected error body %+v", body)
			}
			if (body.Details != nil) != tc.wantDetails {
				t.Fatalf("details presence: expected %v got %+v", tc.wantDetails, body.Details)
			}
		})
	}
}

func TestWriteErrorLogsServerFailures(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})

	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	if !strings.Contains(out.String(), "request.error") {
		t.Fatalf("expected request.error log, got %s", out.String())
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := WithRequestID(context.Background(), "req-42")
	WriteError(ctx, nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))

	body := errorBody(t, rec)
	if body.RequestID != "req-42" {
		t.Fatalf("expected request id req-42 got %q", body.RequestID)
	}
	if body.Message != "order not found" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}
