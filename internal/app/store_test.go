package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/config"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "nested", "vantive.sqlite"),
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	if store.Driver != config.DriverSQLite {
		t.Fatalf("driver = %q", store.Driver)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestEnsureClinicIsIdempotent(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	first, created, err := EnsureClinic(ctx, cfg, store.Repo, "Main Clinic")
	if err != nil || !created {
		t.Fatalf("EnsureClinic() = %v, created=%v, err=%v", first, created, err)
	}
	second, created, err := EnsureClinic(ctx, cfg, store.Repo, "Main Clinic")
	if err != nil || created {
		t.Fatalf("EnsureClinic(again) created=%v, err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("EnsureClinic(again) = %s, want %s", second.ID, first.ID)
	}

	cfg.ClinicID = uuid.NewString()
	if _, _, err := EnsureClinic(ctx, cfg, store.Repo, "Other"); !errors.Is(err, appointment.ErrScopeNotFound) {
		t.Fatalf("EnsureClinic(unknown CLINIC_ID) error = %v", err)
	}
}

func TestNewResolverRejectsBadClinicID(t *testing.T) {
	if _, err := NewResolver(config.Config{ClinicID: "not-a-uuid"}, nil); err == nil {
		t.Fatal("NewResolver() expected error")
	}
}
