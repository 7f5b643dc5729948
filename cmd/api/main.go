package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/categories"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/paymentmethods"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/app"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc, err := app.Start("api")
	if err != nil {
		os.Exit(1)
	}
	// Hosted runtimes inject PORT; it wins over the configured port.
	if port := os.Getenv("PORT"); port != "" {
		proc.Config.App.Port = port
	}
	ctx, stop := proc.Context()
	defer stop()

	proc.Exit(ctx, "api server stopped unexpectedly", run(ctx, proc))
	proc.Logger.Info(ctx, "api server shut down gracefully")
}

func run(ctx context.Context, proc *app.Process) error {
	cfg := proc.Config

	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	proc.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps, err := buildDeps(cfg, proc.Logger, dbClient, redisClient, sessionManager, proc.Metrics)
	if err != nil {
		return err
	}

	server := proc.Server(routes.NewRouter(cfg, proc.Logger, deps))
	proc.Logger.Info(proc.Logger.WithField(ctx, "addr", server.Addr), "api server listening")

	group := app.NewGroup(ctx)
	group.Serve(server, shutdownTimeout)
	return group.Wait()
}

func buildDeps(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	promRegistry *prometheus.Registry,
) (routes.Deps, error) {
	conn := dbClient.DB()

	userRepo := users.NewRepository(conn)
	categoryRepo := categories.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	addressRepo := address.NewRepository(conn)
	paymentRepo := paymentmethods.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		Tx:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	categoryService, err := categories.NewService(categoryRepo)
	if err != nil {
		return routes.Deps{}, err
	}
	productService, err := products.NewService(productRepo, categoryRepo)
	if err != nil {
		return routes.Deps{}, err
	}
	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, cart.WithEmitter(outboxService))
	if err != nil {
		return routes.Deps{}, err
	}
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService)
	if err != nil {
		return routes.Deps{}, err
	}
	addressService, err := address.NewService(addressRepo, dbClient)
	if err != nil {
		return routes.Deps{}, err
	}
	paymentService, err := paymentmethods.NewService(paymentRepo, dbClient)
	if err != nil {
		return routes.Deps{}, err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		CartRepo:    cartRepo,
		OrdersRepo:  ordersRepo,
		AddressRepo: addressRepo,
		PaymentRepo: paymentRepo,
		Outbox:      outboxService,
		Shipping:    checkout.ShippingRuleFromConfig(cfg.Checkout),
		Metrics:     metrics.NewCheckoutMetrics(promRegistry),
		Logger:      logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Sessions: sessionManager,
		Redis:    redisClient,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		HTTPMetrics:    metrics.NewHTTPMetrics(promRegistry),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		Auth:           authService,
		Register:       registerService,
		Products:       productService,
		Categories:     categoryService,
		Cart:           cartService,
		Checkout:       checkoutService,
		Orders:         ordersService,
		Addresses:      addressService,
		PaymentMethods: paymentService,
	}, nil
}
