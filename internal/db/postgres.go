package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clinics (
		id         uuid PRIMARY KEY,
		name       text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id                       uuid PRIMARY KEY,
		clinic_id                uuid NOT NULL REFERENCES clinics (id),
		external_appointment_id  text NOT NULL,
		external_client_id       text,
		external_practitioner_id text,
		practitioner_name        text,
		client_name              text,
		service_name             text,
		location_name            text,
		status                   text,
		scheduled_start          timestamptz,
		note_completed           boolean NOT NULL DEFAULT false,
		created_at               timestamptz NOT NULL DEFAULT now(),
		updated_at               timestamptz NOT NULL DEFAULT now(),
		UNIQUE (clinic_id, external_appointment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_open_notes_by_client_idx
		ON appointments (clinic_id, external_client_id)
		WHERE note_completed = false`,
	`CREATE INDEX IF NOT EXISTS appointments_scheduled_start_idx
		ON appointments (clinic_id, scheduled_start DESC)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id                      uuid PRIMARY KEY,
		clinic_id               uuid NOT NULL REFERENCES clinics (id),
		external_note_id        text NOT NULL,
		external_client_id      text,
		external_appointment_id text,
		practitioner_name       text,
		locked_at               timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notes_external_note_id_idx
		ON notes (clinic_id, external_note_id)`,
}

// EnsureSchema creates the tables the service writes to.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
