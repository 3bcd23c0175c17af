package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool // nil when bound to a transaction
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

const appointmentColumns = `id, clinic_id, external_appointment_id, external_client_id, external_practitioner_id,
	practitioner_name, client_name, service_name, location_name, status, scheduled_start,
	note_completed, created_at, updated_at`

// Helpers

func scanScope(row pgx.Row) (*Scope, error) {
	var s Scope
	err := row.Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScopeNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ScopeID,
		&a.ExternalAppointmentID,
		&a.ExternalClientID,
		&a.ExternalPractitionerID,
		&a.PractitionerName,
		&a.ClientName,
		&a.ServiceName,
		&a.LocationName,
		&a.Status,
		&a.ScheduledStart,
		&a.NoteCompleted,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if a.ScheduledStart != nil {
		t := a.ScheduledStart.UTC()
		a.ScheduledStart = &t
	}
	return &a, nil
}

// Interface methods

func (r *PgRepository) FindSingleScope(ctx context.Context) (*Scope, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM clinics
		ORDER BY created_at, id
		LIMIT 1
	`)
	return scanScope(row)
}

func (r *PgRepository) FindScopeByID(ctx context.Context, id uuid.UUID) (*Scope, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanScope(row)
}

func (r *PgRepository) CreateScope(ctx context.Context, name string) (*Scope, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO clinics (id, name, created_at)
		VALUES ($1, $2, now())
		RETURNING id, name, created_at
	`, uuid.New(), name)
	return scanScope(row)
}

// UpsertAppointment is one statement: insert with note_completed = false, or
// merge the supplied columns into the existing row. note_completed is not in
// the update list.
func (r *PgRepository) UpsertAppointment(ctx context.Context, key AppointmentKey, patch AppointmentPatch, now time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointments (
			id, clinic_id, external_appointment_id, external_client_id, external_practitioner_id,
			practitioner_name, client_name, service_name, location_name, status, scheduled_start,
			note_completed, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $12)
		ON CONFLICT (clinic_id, external_appointment_id) DO UPDATE SET
			external_client_id       = COALESCE(EXCLUDED.external_client_id, appointments.external_client_id),
			external_practitioner_id = COALESCE(EXCLUDED.external_practitioner_id, appointments.external_practitioner_id),
			practitioner_name        = COALESCE(EXCLUDED.practitioner_name, appointments.practitioner_name),
			client_name              = COALESCE(EXCLUDED.client_name, appointments.client_name),
			service_name             = COALESCE(EXCLUDED.service_name, appointments.service_name),
			location_name            = COALESCE(EXCLUDED.location_name, appointments.location_name),
			status                   = COALESCE(EXCLUDED.status, appointments.status),
			scheduled_start          = COALESCE(EXCLUDED.scheduled_start, appointments.scheduled_start),
			updated_at               = EXCLUDED.updated_at
	`,
		uuid.New(),
		key.ScopeID,
		key.ExternalAppointmentID,
		patch.ExternalClientID,
		patch.ExternalPractitionerID,
		patch.PractitionerName,
		patch.ClientName,
		patch.ServiceName,
		patch.LocationName,
		patch.Status,
		patch.ScheduledStart,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertNote(ctx context.Context, note Note) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notes (id, clinic_id, external_note_id, external_client_id, external_appointment_id, practitioner_name, locked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, note.ID, note.ScopeID, note.ExternalNoteID, note.ExternalClientID, note.ExternalAppointmentID, note.PractitionerName, note.LockedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// MarkNotesCompletedForClient flips note_completed for every incomplete
// appointment of the client. The note_completed = false guard keeps
// concurrent lock events for the same client from double-counting.
func (r *PgRepository) MarkNotesCompletedForClient(ctx context.Context, scopeID uuid.UUID, clientID string, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET note_completed = true,
		    updated_at = $3
		WHERE clinic_id = $1
		  AND external_client_id = $2
		  AND note_completed = false
	`, scopeID, clientID, now)
	if err != nil {
		return 0, fmt.Errorf("mark notes completed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{q: tx})
	})
}

func (r *PgRepository) GetAppointmentByExternalID(ctx context.Context, key AppointmentKey) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND external_appointment_id = $2
	`, key.ScopeID, key.ExternalAppointmentID)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	where := []string{"clinic_id = $1"}
	args := []any{filter.ScopeID}

	if filter.NoteCompleted != nil {
		args = append(args, *filter.NoteCompleted)
		where = append(where, fmt.Sprintf("note_completed = $%d", len(args)))
	}
	if filter.StartsBefore != nil {
		args = append(args, *filter.StartsBefore)
		where = append(where, fmt.Sprintf("scheduled_start < $%d", len(args)))
	}
	if filter.NotStartedBy != nil {
		args = append(args, *filter.NotStartedBy)
		where = append(where, fmt.Sprintf("(scheduled_start IS NULL OR scheduled_start >= $%d)", len(args)))
	}

	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY scheduled_start DESC NULLS LAST, external_appointment_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
