package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Scope is the clinic that owns appointments and notes.
type Scope struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Appointment is one upstream scheduling slot. (ScopeID,
// ExternalAppointmentID) is the natural key; ID is a surrogate.
type Appointment struct {
	ID                     uuid.UUID
	ScopeID                uuid.UUID
	ExternalAppointmentID  string
	ExternalClientID       *string
	ExternalPractitionerID *string
	PractitionerName       *string
	ClientName             *string
	ServiceName            *string
	LocationName           *string
	Status                 *string
	ScheduledStart         *time.Time
	NoteCompleted          bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type AppointmentKey struct {
	ScopeID               uuid.UUID
	ExternalAppointmentID string
}

// AppointmentPatch carries the fields an event supplied. Nil fields leave the
// stored value untouched. NoteCompleted is deliberately not part of it.
type AppointmentPatch struct {
	ExternalClientID       *string
	ExternalPractitionerID *string
	PractitionerName       *string
	ClientName             *string
	ServiceName            *string
	LocationName           *string
	Status                 *string
	ScheduledStart         *time.Time
}

// Note is an append-only audit row for a locked clinical note.
type Note struct {
	ID                    uuid.UUID
	ScopeID               uuid.UUID
	ExternalNoteID        string
	ExternalClientID      *string
	ExternalAppointmentID *string
	PractitionerName      *string
	LockedAt              time.Time
}

// AppointmentFilter narrows read-side listings. Limit <= 0 means no limit.
type AppointmentFilter struct {
	ScopeID       uuid.UUID
	NoteCompleted *bool
	StartsBefore  *time.Time // scheduled_start < t
	NotStartedBy  *time.Time // scheduled_start IS NULL OR scheduled_start >= t
	Limit         int
	Offset        int
}
