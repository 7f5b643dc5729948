package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/categories"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/paymentmethods"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the redis surface used by the rate limit and idempotency middleware.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Sessions       session.AccessSessionChecker
	Redis          RedisStore
	Readiness      map[string]controllers.Pinger
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth           auth.Service
	Register       auth.RegisterService
	Products       products.Service
	Categories     categories.Service
	Cart           cart.Service
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Addresses      address.Service
	PaymentMethods paymentmethods.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	checkoutLimit := middleware.UserRateLimit(
		middleware.NewUserRateLimitPolicy("checkout", cfg.UserRateLimit.CheckoutWindow, cfg.UserRateLimit.CheckoutLimit),
		deps.Redis, logg,
	)
	idempotent := middleware.Idempotency(deps.Redis, logg)
	cartLimit := middleware.UserRateLimit(
		middleware.NewUserRateLimitPolicy("cart", cfg.UserRateLimit.CartWindow, cfg.UserRateLimit.CartLimit),
		deps.Redis, logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, cfg.App.MetricsPath, deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Register, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
		})

		r.Get("/products", controllers.ProductsList(deps.Products, logg))
		r.Get("/products/{productId}", controllers.ProductGet(deps.Products, logg))
		r.Get("/categories", controllers.CategoriesList(deps.Categories, logg))
		r.Get("/categories/{categoryId}", controllers.CategoryGet(deps.Categories, logg))
		r.Get("/categories/{categoryId}/products", controllers.CategoryProducts(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(idempotent)

			r.Get("/cart", controllers.CartFetch(deps.Cart, logg))
			r.With(cartLimit).Put("/cart", controllers.CartReplace(deps.Cart, logg))
			r.With(cartLimit).Delete("/cart", controllers.CartClear(deps.Cart, logg))
			r.With(cartLimit).Post("/cart/items", controllers.CartAddItem(deps.Cart, logg))
			r.With(cartLimit).Patch("/cart/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.With(cartLimit).Delete("/cart/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))

			r.With(checkoutLimit).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Get("/orders", controllers.OrdersList(deps.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))

			r.Get("/addresses", controllers.AddressesList(deps.Addresses, logg))
			r.Post("/addresses", controllers.AddressCreate(deps.Addresses, logg))
			r.Delete("/addresses/{addressId}", controllers.AddressDelete(deps.Addresses, logg))

			r.Get("/payment-methods", controllers.PaymentMethodsList(deps.PaymentMethods, logg))
			r.Post("/payment-methods", controllers.PaymentMethodCreate(deps.PaymentMethods, logg))
			r.Delete("/payment-methods/{paymentMethodId}", controllers.PaymentMethodDelete(deps.PaymentMethods, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

				r.Post("/products", controllers.AdminCreateProduct(deps.Products, logg))
				r.Patch("/products/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
				r.Delete("/products/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))

				r.Post("/categories", controllers.AdminCreateCategory(deps.Categories, logg))
				r.Put("/categories/{categoryId}", controllers.AdminUpdateCategory(deps.Categories, logg))
				r.Delete("/categories/{categoryId}", controllers.AdminDeleteCategory(deps.Categories, logg))

				r.Get("/orders", controllers.AdminOrdersList(deps.Orders, logg))
				// The group-level guard sees only "/api/v1/admin/*"; this one sees the full pattern.
				r.With(idempotent).Patch("/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
			})
		})
	})

	return r
}
