package api

import (
	"time"

	"github.com/hackgods/vantive/internal/appointment"
)

type WebhookResponse struct {
	Success bool `json:"success"`
}

type AppointmentResponse struct {
	ExternalAppointmentID  string     `json:"external_appointment_id"`
	ExternalClientID       *string    `json:"external_client_id"`
	ExternalPractitionerID *string    `json:"external_practitioner_id"`
	PractitionerName       *string    `json:"practitioner_name"`
	ClientName             *string    `json:"client_name"`
	ServiceName            *string    `json:"service_name"`
	LocationName           *string    `json:"location_name"`
	Status                 *string    `json:"status"`
	ScheduledStart         *time.Time `json:"scheduled_start"`
	NoteCompleted          bool       `json:"note_completed"`
	Classification         string     `json:"classification"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type ListAppointmentsResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.ClassifiedAppointment) AppointmentResponse {
	return AppointmentResponse{
		ExternalAppointmentID:  a.ExternalAppointmentID,
		ExternalClientID:       a.ExternalClientID,
		ExternalPractitionerID: a.ExternalPractitionerID,
		PractitionerName:       a.PractitionerName,
		ClientName:             a.ClientName,
		ServiceName:            a.ServiceName,
		LocationName:           a.LocationName,
		Status:                 a.Status,
		ScheduledStart:         a.ScheduledStart,
		NoteCompleted:          a.NoteCompleted,
		Classification:         string(a.Classification),
		UpdatedAt:              a.UpdatedAt,
	}
}
