package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var testJWT = config.JWTConfig{Secret: "router-secret", Issuer: "storefront", ExpirationMinutes: 30}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubProducts struct {
	products.Service
	listed bool
}

func (s *stubProducts) List(ctx context.Context, params products.ListParams) (*products.ProductListResult, error) {
	s.listed = true
	return &products.ProductListResult{Metadata: pagination.NewMeta(pagination.NewPage(params.Page, params.PageSize), 0)}, nil
}

func (s *stubProducts) Delete(ctx context.Context, id int) error {
	return nil
}

type stubCart struct {
	cart.Service
	replaces int
}

func (s *stubCart) GetCart(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{Items: []cart.LineDTO{}, Subtotal: decimal.Zero}, nil
}

func (s *stubCart) ReplaceItems(ctx context.Context, userID uuid.UUID, lines []cart.LineInput) (*cart.CartDTO, error) {
	s.replaces++
	return &cart.CartDTO{Items: []cart.LineDTO{}, Subtotal: decimal.Zero}, nil
}

type stubOrders struct {
	orders.Service
	updates int
}

func (s *stubOrders) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, input orders.UpdateStatusInput) (*orders.OrderDTO, error) {
	s.updates++
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatus(input.Status)}, nil
}

type memoryRedis struct {
	data map[string]string
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

type fixture struct {
	handler  http.Handler
	products *stubProducts
	cart     *stubCart
	orders   *stubOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", MetricsPath: "/metrics"},
		JWT: testJWT,
	}
	f := &fixture{products: &stubProducts{}, cart: &stubCart{}, orders: &stubOrders{}}
	f.handler = NewRouter(cfg, logger.Nop(), Deps{
		Sessions: stubSessions{},
		Redis:    &memoryRedis{data: map[string]string{}},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Products: f.products,
		Cart:     f.cart,
		Orders:   f.orders,
	})
	return f
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func (f *fixture) do(method, path, auth string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(http.MethodGet, "/health/live", "", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("health live: expected 200 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/metrics", "", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/products", "", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("products: expected 200 got %d", resp.Code)
	}
	if !f.products.listed {
		t.Fatal("expected product listing to reach the service")
	}
}

func TestCartRequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(http.MethodGet, "/api/v1/cart", "", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/cart", bearer(t, enums.RoleUser), "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(http.MethodDelete, "/api/v1/admin/products/3", bearer(t, enums.RoleUser), "", nil); resp.Code != http.StatusForbidden {
		t.Fatalf("user: expected 403 got %d", resp.Code)
	}
	if resp := f.do(http.MethodDelete, "/api/v1/admin/products/3", bearer(t, enums.RoleAdmin), "", nil); resp.Code != http.StatusNoContent {
		t.Fatalf("admin: expected 204 got %d", resp.Code)
	}
}

func TestCartReplaceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	token := bearer(t, enums.RoleUser)
	body := `{"items":[{"productId":1,"quantity":2}]}`

	if resp := f.do(http.MethodPut, "/api/v1/cart", token, body, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", resp.Code)
	}

	headers := map[string]string{"Idempotency-Key": "merge-1"}
	for i := 0; i < 2; i++ {
		if resp := f.do(http.MethodPut, "/api/v1/cart", token, body, headers); resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
	}
	if f.cart.replaces != 1 {
		t.Fatalf("expected one replace, got %d", f.cart.replaces)
	}
}

func TestAdminOrderStatusIsIdempotent(t *testing.T) {
	f := newFixture(t)
	token := bearer(t, enums.RoleAdmin)
	path := "/api/v1/admin/orders/" + uuid.NewString() + "/status"
	body := `{"status":"shipped"}`

	if resp := f.do(http.MethodPatch, path, token, body, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", resp.Code)
	}
	if f.orders.updates != 0 {
		t.Fatalf("handler ran without a key: %d updates", f.orders.updates)
	}

	headers := map[string]string{"Idempotency-Key": "ship-1"}
	for i := 0; i < 2; i++ {
		resp := f.do(http.MethodPatch, path, token, body, headers)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
		if i == 1 && resp.Header().Get("Idempotent-Replayed") != "true" {
			t.Fatal("second attempt should be a replay")
		}
	}
	if f.orders.updates != 1 {
		t.Fatalf("expected one status update, got %d", f.orders.updates)
	}
}
