// Package intake decodes IntakeQ webhook payloads into a closed set of typed
// events. It knows the upstream wire shape so that nothing downstream has to.
package intake

import "time"

type Kind string

const (
	KindAppointment Kind = "appointment"
	KindNoteLocked  Kind = "note_locked"
	KindUnknown     Kind = "unknown"
)

// Upstream discriminant values.
const (
	EventAppointmentCreated     = "AppointmentCreated"
	EventAppointmentUpdated     = "AppointmentUpdated"
	EventAppointmentRescheduled = "AppointmentRescheduled"
	EventAppointmentConfirmed   = "AppointmentConfirmed"
	EventAppointmentCanceled    = "AppointmentCanceled"
	EventAppointmentCancelled   = "AppointmentCancelled"

	TypeNoteLocked = "Note Locked"
)

// appointmentEventTypes are the EventType values reconciled as appointment
// upserts. They all carry the same Appointment object.
var appointmentEventTypes = []string{
	EventAppointmentCreated,
	EventAppointmentUpdated,
	EventAppointmentRescheduled,
	EventAppointmentConfirmed,
	EventAppointmentCanceled,
	EventAppointmentCancelled,
}

// Event is one of AppointmentEvent, NoteLockedEvent or UnknownEvent.
type Event interface {
	Kind() Kind
	isEvent()
}

// Appointment holds the appointment fields of an event. A nil pointer means
// the field was absent from the payload.
type Appointment struct {
	ID               string
	ClientID         *string
	PractitionerID   *string
	PractitionerName *string
	ClientName       *string
	ServiceName      *string
	LocationName     *string
	Status           *string
	StartsAt         *time.Time
}

type AppointmentEvent struct {
	EventType   string
	Appointment Appointment
}

type NoteLockedEvent struct {
	NoteID           string
	ClientID         *string
	AppointmentID    *string
	PractitionerName *string
}

// UnknownEvent is accepted and ignored. Reason says why it was not classified.
type UnknownEvent struct {
	EventType string
	Type      string
	Reason    string
}

func (AppointmentEvent) Kind() Kind { return KindAppointment }
func (NoteLockedEvent) Kind() Kind  { return KindNoteLocked }
func (UnknownEvent) Kind() Kind     { return KindUnknown }

func (AppointmentEvent) isEvent() {}
func (NoteLockedEvent) isEvent()  {}
func (UnknownEvent) isEvent()     {}
