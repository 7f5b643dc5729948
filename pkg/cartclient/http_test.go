package cartclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func newTestClient(t *testing.T, baseURL string) *HTTPServerCart {
	t.Helper()
	client, err := NewHTTPServerCart(HTTPOptions{BaseURL: baseURL, Token: func() string { return "tok" }})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestHTTPServerCartGetCartDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/cart" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"items":[{"productId":4,"name":"mug","price":"7.5","quantity":2}],"totalItems":2,"subtotal":"15"}}`))
	}))
	defer srv.Close()

	lines, err := newTestClient(t, srv.URL+"/").GetCart(context.Background())
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line got %d", len(lines))
	}
	if lines[0].ProductID != 4 || lines[0].Quantity != 2 || lines[0].Price.String() != "7.5" {
		t.Fatalf("unexpected line %+v", lines[0])
	}
}

func TestHTTPServerCartReplaceItemsSendsBatch(t *testing.T) {
	var body struct {
		Items []lineRequest `json:"items"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT got %s", r.Method)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Error("missing Idempotency-Key")
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":{"items":[]}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.ReplaceItems(context.Background(), []RemoteLine{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}); err != nil {
		t.Fatalf("replace items: %v", err)
	}
	want := []lineRequest{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}
	if !slices.Equal(body.Items, want) {
		t.Fatalf("expected %+v got %+v", want, body.Items)
	}
}

func TestHTTPServerCartDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cart/items/9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"cart item not found"}}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).UpdateItemQuantity(context.Background(), 9, 2)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if err.Error() != "cart item not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewHTTPServerCartValidates(t *testing.T) {
	if _, err := NewHTTPServerCart(HTTPOptions{Token: func() string { return "" }}); err == nil {
		t.Fatal("expected error without base url")
	}
	if _, err := NewHTTPServerCart(HTTPOptions{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error without token source")
	}
}
