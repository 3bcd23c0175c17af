package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/vantive/internal/app"
	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/config"
	"github.com/hackgods/vantive/internal/logging"
	redisclient "github.com/hackgods/vantive/internal/redis"
	"github.com/hackgods/vantive/internal/telemetry"
)

type sweeper struct {
	cfg       config.Config
	resolver  appointment.ScopeResolver
	svc       *appointment.Service
	locker    redisclient.Locker
	summaries *redisclient.SummaryStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Env, os.Stderr)
	ctx := logging.WithAttrs(context.Background(), slog.String("service", "overdue-worker"))

	if err := run(ctx, cfg); err != nil {
		logging.Error(ctx, "overdue-worker stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if !cfg.RedisEnabled() {
		return errors.New("REDIS_ADDR or REDIS_URL is required")
	}

	logging.Info(ctx, "overdue-worker starting up",
		slog.String("env", cfg.Env),
		slog.Duration("interval", cfg.WorkerInterval),
		slog.Duration("grace", cfg.OverdueGrace),
	)

	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, "vantive-overdue-worker", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	openCtx, cancelOpen := context.WithTimeout(rootCtx, 10*time.Second)
	store, err := app.OpenStore(openCtx, cfg)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logging.Warn(ctx, "error closing redis", logging.Err(err))
		}
	}()

	resolver, err := app.NewResolver(cfg, store.Repo)
	if err != nil {
		return err
	}

	s := &sweeper{
		cfg:       cfg,
		resolver:  resolver,
		svc:       appointment.NewService(store.Repo),
		locker:    redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		summaries: redisclient.NewSummaryStore(rdb, cfg.SummaryTTL),
	}

	// Run once at startup
	s.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logging.Info(ctx, "shutdown signal received, stopping overdue worker")
			return nil
		case <-ticker.C:
			s.runOnce(rootCtx)
		}
	}
}

func (s *sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	scope, err := s.resolver.Resolve(runCtx, nil)
	if err != nil {
		logging.Warn(ctx, "overdue sweep skipped", logging.Err(err))
		return
	}
	ctx = logging.WithAttrs(ctx, slog.String("clinic_id", scope.ID.String()))

	var summary *appointment.OverdueSummary
	err = s.locker.WithLock(runCtx, redisclient.SweepLockKey(scope.ID), func(lockCtx context.Context) error {
		var err error
		summary, err = s.svc.PublishOverdueSummary(lockCtx, scope, s.cfg.OverdueGrace, s.summaries)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		logging.Debug(ctx, "overdue sweep held by another worker")
	case err != nil:
		logging.Error(ctx, "overdue sweep failed", logging.Err(err))
	default:
		logging.Info(ctx, "overdue sweep complete",
			slog.Int("overdue", summary.Total),
			slog.Int("practitioners", len(summary.Practitioners)),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
