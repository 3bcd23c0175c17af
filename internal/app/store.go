// Package app holds the wiring shared by the commands: opening the
// configured store and choosing the clinic resolver.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/config"
	"github.com/hackgods/vantive/internal/db"
)

// Store is an opened repository together with its health probe.
type Store struct {
	Driver string
	Repo   appointment.Repository
	Ping   func(ctx context.Context) error
	Close  func()
}

// OpenStore connects to the configured driver and makes sure the schema
// exists.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		gdb, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		repo := appointment.NewGormRepository(gdb)
		if err := repo.Migrate(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return &Store{
			Driver: config.DriverSQLite,
			Repo:   repo,
			Ping:   sqlDB.PingContext,
			Close:  func() { _ = sqlDB.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Driver: config.DriverPostgres,
			Repo:   appointment.NewPgRepository(pool),
			Ping:   pool.Ping,
			Close:  pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

// NewResolver pins resolution to CLINIC_ID when set, otherwise uses the single
// clinic in the store.
func NewResolver(cfg config.Config, repo appointment.Repository) (appointment.ScopeResolver, error) {
	if cfg.ClinicID == "" {
		return appointment.NewSingleScopeResolver(repo), nil
	}
	id, err := uuid.Parse(cfg.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_ID: %w", err)
	}
	return appointment.NewFixedScopeResolver(repo, id), nil
}

// EnsureClinic returns the clinic events will be stored under, creating one
// named name when the store has none. A configured CLINIC_ID must already
// exist.
func EnsureClinic(ctx context.Context, cfg config.Config, repo appointment.Repository, name string) (*appointment.Scope, bool, error) {
	resolver, err := NewResolver(cfg, repo)
	if err != nil {
		return nil, false, err
	}
	scope, err := resolver.Resolve(ctx, nil)
	switch {
	case err == nil:
		return scope, false, nil
	case errors.Is(err, appointment.ErrScopeNotFound) && cfg.ClinicID == "":
		scope, err := repo.CreateScope(ctx, name)
		if err != nil {
			return nil, false, err
		}
		return scope, true, nil
	default:
		return nil, false, err
	}
}
