package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/vantive/internal/api"
	"github.com/hackgods/vantive/internal/app"
	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/config"
	"github.com/hackgods/vantive/internal/logging"
	redisclient "github.com/hackgods/vantive/internal/redis"
	"github.com/hackgods/vantive/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Env, os.Stderr)
	ctx := logging.WithAttrs(context.Background(), slog.String("service", "api-server"))

	if err := run(ctx, cfg); err != nil {
		logging.Error(ctx, "api-server stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logging.Info(ctx, "api-server starting up",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("store", cfg.StoreDriver),
	)

	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, "vantive-api", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logging.Warn(ctx, "telemetry shutdown", logging.Err(err))
		}
	}()

	openCtx, cancelOpen := context.WithTimeout(rootCtx, 10*time.Second)
	store, err := app.OpenStore(openCtx, cfg)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logging.Info(ctx, "store ready", slog.String("driver", store.Driver))

	resolver, err := app.NewResolver(cfg, store.Repo)
	if err != nil {
		return err
	}
	svc := appointment.NewService(store.Repo)

	routerCfg := api.RouterConfig{
		Reconciler:   svc,
		Reader:       svc,
		Resolver:     resolver,
		HealthChecks: []api.HealthCheck{{Name: store.Driver, Ping: store.Ping}},
		Webhook: api.WebhookConfig{
			Secret:            cfg.WebhookSecret,
			StrictPersistence: cfg.StrictPersistence,
			EventTimeout:      cfg.EventTimeout,
			MaxBodyBytes:      cfg.MaxBodyBytes,
		},
		Env:     cfg.Env,
		Version: cfg.Version,
	}

	// Redis only backs the overdue summary; the webhook path never needs it.
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logging.Warn(ctx, "redis unavailable, overdue summary disabled", logging.Err(err))
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					logging.Warn(ctx, "error closing redis", logging.Err(err))
				}
			}()
			routerCfg.Summaries = redisclient.NewSummaryStore(rdb, cfg.SummaryTTL)
			routerCfg.HealthChecks = append(routerCfg.HealthChecks, api.HealthCheck{
				Name:     "redis",
				Optional: true,
				Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
			logging.Info(ctx, "connected to redis", slog.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.WebhookSecret == "" {
		logging.Warn(ctx, "WEBHOOK_SECRET is empty, webhook signatures are not checked")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.EventTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, "http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logging.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logging.Info(ctx, "api-server stopped cleanly")
	return nil
}
