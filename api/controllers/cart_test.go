package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart     *cartsvc.CartDTO
	err      error
	userID   uuid.UUID
	added    [2]int
	updated  [2]int
	removed  int
	cleared  bool
	replaced []cartsvc.LineInput
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.userID = userID
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, productID, quantity int) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.added = [2]int{productID, quantity}
	return s.cart, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, productID, quantity int) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.updated = [2]int{productID, quantity}
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID int) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.removed = productID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.userID = userID
	s.cleared = true
	return s.err
}

func (s *stubCartService) ReplaceItems(ctx context.Context, userID uuid.UUID, lines []cartsvc.LineInput) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.replaced = lines
	return s.cart, s.err
}

func sampleCart() *cartsvc.CartDTO {
	return &cartsvc.CartDTO{
		Items: []cartsvc.LineDTO{{
			ProductID: 7,
			Name:      "Mug",
			Price:     decimal.RequireFromString("12.50"),
			Quantity:  2,
			LineTotal: decimal.RequireFromString("25.00"),
		}},
		TotalItems: 2,
		Subtotal:   decimal.RequireFromString("25.00"),
	}
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{cart: sampleCart()}
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()

	CartFetch(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.userID != userID {
		t.Fatalf("expected cart for %s got %s", userID, svc.userID)
	}
	var body cartsvc.CartDTO
	decodeData(t, resp, &body)
	if body.TotalItems != 2 || !body.Subtotal.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("unexpected cart payload: %+v", body)
	}
}

func TestCartFetchRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()

	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemValidatesBody(t *testing.T) {
	cases := map[string]string{
		"zero quantity":  `{"productId":1,"quantity":0}`,
		"missing id":     `{"quantity":1}`,
		"unknown fields": `{"productId":1,"quantity":1,"price":3}`,
		"not json":       `productId=1`,
	}
	for name, payload := range cases {
		svc := &stubCartService{cart: sampleCart()}
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(payload)), uuid.New())
		resp := httptest.NewRecorder()

		CartAddItem(svc, nil).ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, resp.Code)
		}
		if svc.added != [2]int{} {
			t.Fatalf("%s: service must not be called", name)
		}
	}
}

func TestCartAddItemPassesLine(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":7,"quantity":2}`)), uuid.New())
	resp := httptest.NewRecorder()

	CartAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.added != [2]int{7, 2} {
		t.Fatalf("unexpected add call %v", svc.added)
	}
}

func TestCartUpdateItemMissingLineIsNotFound(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")}
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/9", strings.NewReader(`{"quantity":3}`)), uuid.New())
	req = withURLParams(req, map[string]string{"productId": "9"})
	resp := httptest.NewRecorder()

	CartUpdateItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if svc.updated != [2]int{9, 3} {
		t.Fatalf("unexpected update call %v", svc.updated)
	}
}

func TestCartRemoveItemRejectsBadPath(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/abc", nil), uuid.New())
	req = withURLParams(req, map[string]string{"productId": "abc"})
	resp := httptest.NewRecorder()

	CartRemoveItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.removed != 0 {
		t.Fatal("service must not be called")
	}
}

func TestCartClearAnswersNoContent(t *testing.T) {
	svc := &stubCartService{}
	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil), uuid.New())
	resp := httptest.NewRecorder()

	CartClear(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear to be called")
	}
}

func TestCartReplaceForwardsLines(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	payload := `{"items":[{"productId":1,"quantity":2},{"productId":3,"quantity":1}]}`
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(payload)), uuid.New())
	resp := httptest.NewRecorder()

	CartReplace(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.replaced) != 2 || svc.replaced[0].ProductID != 1 || svc.replaced[1].Quantity != 1 {
		t.Fatalf("unexpected replace call %+v", svc.replaced)
	}
}

func TestCartReplaceRejectsNonPositiveQuantity(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	payload := `{"items":[{"productId":1,"quantity":-1}]}`
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(payload)), uuid.New())
	resp := httptest.NewRecorder()

	CartReplace(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION got %s", code)
	}
	if svc.replaced != nil {
		t.Fatal("service must not be called")
	}
}
