// Package app is the process scaffolding shared by the storefront binaries:
// environment loading, the configured logger, dependency dialing with ordered
// teardown, and the errgroup that runs a binary's long-lived loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	readHeaderTimeout = 5 * time.Second
	drainTimeout      = 5 * time.Second
)

type closer struct {
	name string
	fn   func() error
}

// Process carries what every binary needs before it wires its own services.
type Process struct {
	Kind    string
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *prometheus.Registry

	closers []closer
}

// Start loads .env and the environment config, then builds the process logger
// tagged with the binary kind, env and instance id.
func Start(kind string) (*Process, error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "config rejected", err)
		return nil, err
	}
	cfg.Service.Kind = kind

	return &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Fields:      map[string]string{"env": cfg.App.Env, "instance": instance.GetID()},
		}),
		Metrics: prometheus.NewRegistry(),
	}, nil
}

// OnClose registers fn to run during Close. Closers run newest first.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close releases every registered dependency and logs what failed.
func (p *Process) Close() {
	var err error
	for _, c := range slices.Backward(p.closers) {
		if cerr := c.fn(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", c.name, cerr))
		}
	}
	p.closers = nil
	if err != nil {
		p.Logger.Error(context.Background(), "dependencies did not close cleanly", err)
	}
}

// Database dials the configured database and applies dev migrations when enabled.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Config.FeatureFlags, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

// Context returns a context cancelled on SIGINT or SIGTERM, carrying the
// process-wide log fields.
func (p *Process) Context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
	})
	return ctx, stop
}

// Group runs a binary's loops until one fails or the parent context ends.
type Group struct {
	eg  *errgroup.Group
	ctx context.Context
}

func NewGroup(ctx context.Context) *Group {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: gctx}
}

// Go runs fn with the group context.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error { return fn(g.ctx) })
}

// OnStop runs fn once the group context ends, with a fresh bounded context.
func (g *Group) OnStop(timeout time.Duration, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		<-g.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	})
}

// Serve listens with srv and shuts it down gracefully when the group stops.
func (g *Group) Serve(srv *http.Server, timeout time.Duration) {
	g.eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.OnStop(timeout, srv.Shutdown)
}

// Wait blocks until every goroutine returns. Cancellation is not an error.
func (g *Group) Wait() error {
	if err := g.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Server builds an http.Server bound to the configured port.
func (p *Process) Server(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + p.Config.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// ServeMetrics exposes the process registry on the configured metrics path.
func (p *Process) ServeMetrics(g *Group) {
	mux := http.NewServeMux()
	mux.Handle(p.Config.App.MetricsPath, promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	g.Serve(p.Server(mux), drainTimeout)
}

// Exit logs err, releases dependencies and terminates with a non-zero status.
// A nil err closes the process and returns normally.
func (p *Process) Exit(ctx context.Context, msg string, err error) {
	if err == nil {
		p.Close()
		return
	}
	p.Logger.Error(ctx, msg, err)
	p.Close()
	os.Exit(1)
}
