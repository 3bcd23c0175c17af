package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScopeNotFound       = errors.New("clinic not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPersistence         = errors.New("persistence failure")
)

// Repository is the store contract the reconciler depends on. Implementations
// must make UpsertAppointment and MarkNotesCompletedForClient single atomic
// statements; the service never reads a row before writing it.
type Repository interface {
	// Scope resolution
	FindSingleScope(ctx context.Context) (*Scope, error)
	FindScopeByID(ctx context.Context, id uuid.UUID) (*Scope, error)
	CreateScope(ctx context.Context, name string) (*Scope, error)

	// Reconciliation writes
	UpsertAppointment(ctx context.Context, key AppointmentKey, patch AppointmentPatch, now time.Time) error
	InsertNote(ctx context.Context, note Note) error
	MarkNotesCompletedForClient(ctx context.Context, scopeID uuid.UUID, clientID string, now time.Time) (int64, error)

	// WithinTx runs fn against a repository bound to one transaction.
	// Returning an error rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// Read side
	GetAppointmentByExternalID(ctx context.Context, key AppointmentKey) (*Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
}
