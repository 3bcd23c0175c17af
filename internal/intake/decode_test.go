package intake

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeAppointmentCreated(t *testing.T) {
	raw := []byte(`{
		"EventType": "AppointmentCreated",
		"Appointment": {
			"Id": "A1",
			"ClientId": "C1",
			"PractitionerName": "Dr. X",
			"StartDateIso": "2024-01-01T10:00:00Z"
		}
	}`)

	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	appt, ok := ev.(AppointmentEvent)
	if !ok {
		t.Fatalf("Decode() = %T, want AppointmentEvent", ev)
	}
	if appt.Kind() != KindAppointment {
		t.Fatalf("Kind() = %s", appt.Kind())
	}
	a := appt.Appointment
	if a.ID != "A1" {
		t.Fatalf("ID = %q", a.ID)
	}
	if a.ClientID == nil || *a.ClientID != "C1" {
		t.Fatalf("ClientID = %v", a.ClientID)
	}
	if a.PractitionerName == nil || *a.PractitionerName != "Dr. X" {
		t.Fatalf("PractitionerName = %v", a.PractitionerName)
	}
	if a.Status != nil || a.ServiceName != nil || a.LocationName != nil || a.PractitionerID != nil || a.ClientName != nil {
		t.Fatalf("expected absent optional fields to stay nil: %+v", a)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if a.StartsAt == nil || !a.StartsAt.Equal(want) {
		t.Fatalf("StartsAt = %v, want %v", a.StartsAt, want)
	}
}

func TestDecodeAppointmentFamily(t *testing.T) {
	for _, eventType := range []string{
		EventAppointmentCreated,
		EventAppointmentUpdated,
		EventAppointmentRescheduled,
		EventAppointmentConfirmed,
		EventAppointmentCanceled,
		EventAppointmentCancelled,
		"appointmentcreated",
	} {
		t.Run(eventType, func(t *testing.T) {
			ev, err := Decode([]byte(`{"EventType":"` + eventType + `","Appointment":{"Id":"A9"}}`))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if ev.Kind() != KindAppointment {
				t.Fatalf("Kind() = %s", ev.Kind())
			}
		})
	}
}

func TestDecodeNumericIdentifiers(t *testing.T) {
	ev, err := Decode([]byte(`{
		"EventType": "AppointmentUpdated",
		"Appointment": {"Id": 1001, "ClientId": 42, "StartDate": 1704103200000}
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	a := ev.(AppointmentEvent).Appointment
	if a.ID != "1001" {
		t.Fatalf("ID = %q", a.ID)
	}
	if a.ClientID == nil || *a.ClientID != "42" {
		t.Fatalf("ClientID = %v", a.ClientID)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if a.StartsAt == nil || !a.StartsAt.Equal(want) {
		t.Fatalf("StartsAt = %v, want %v", a.StartsAt, want)
	}
}

func TestDecodeStartDateIsoWithoutZone(t *testing.T) {
	ev, err := Decode([]byte(`{"EventType":"AppointmentCreated","Appointment":{"Id":"A2","StartDateIso":"2024-03-05T08:30:00.0000000"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	a := ev.(AppointmentEvent).Appointment
	want := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	if a.StartsAt == nil || !a.StartsAt.Equal(want) {
		t.Fatalf("StartsAt = %v, want %v", a.StartsAt, want)
	}
}

func TestDecodeUnparsableStartIsAbsent(t *testing.T) {
	ev, err := Decode([]byte(`{"EventType":"AppointmentCreated","Appointment":{"Id":"A3","StartDateIso":"next tuesday"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := ev.(AppointmentEvent).Appointment.StartsAt; got != nil {
		t.Fatalf("StartsAt = %v, want nil", got)
	}
}

func TestDecodeBlankStringsAreAbsent(t *testing.T) {
	ev, err := Decode([]byte(`{"EventType":"AppointmentCreated","Appointment":{"Id":"A4","PractitionerName":"  ","Status":""}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	a := ev.(AppointmentEvent).Appointment
	if a.PractitionerName != nil || a.Status != nil {
		t.Fatalf("expected blank fields to be nil: %+v", a)
	}
}

func TestDecodeNoteLocked(t *testing.T) {
	ev, err := Decode([]byte(`{"Type":"Note Locked","NoteId":"N1","ClientId":42,"PractitionerName":"Dr. Y"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	note, ok := ev.(NoteLockedEvent)
	if !ok {
		t.Fatalf("Decode() = %T, want NoteLockedEvent", ev)
	}
	if note.NoteID != "N1" {
		t.Fatalf("NoteID = %q", note.NoteID)
	}
	if note.ClientID == nil || *note.ClientID != "42" {
		t.Fatalf("ClientID = %v", note.ClientID)
	}
	if note.AppointmentID != nil {
		t.Fatalf("AppointmentID = %v, want nil", note.AppointmentID)
	}
	if note.PractitionerName == nil || *note.PractitionerName != "Dr. Y" {
		t.Fatalf("PractitionerName = %v", note.PractitionerName)
	}
}

func TestDecodeNoteLockedWithoutClient(t *testing.T) {
	ev, err := Decode([]byte(`{"Type":"Note Locked","NoteId":"N2"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	note := ev.(NoteLockedEvent)
	if note.ClientID != nil {
		t.Fatalf("ClientID = %v, want nil", note.ClientID)
	}
}

func TestDecodeUnknownEvents(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty object", `{}`, "unrecognized event type"},
		{"other event type", `{"EventType":"IntakeSubmitted"}`, "unrecognized event type"},
		{"other record type", `{"Type":"Note Unlocked","NoteId":"N1"}`, "unrecognized event type"},
		{"non string tags", `{"EventType":{"x":1},"Type":true}`, "unrecognized event type"},
		{"missing appointment", `{"EventType":"AppointmentCreated"}`, "appointment event without Appointment object"},
		{"null appointment", `{"EventType":"AppointmentCreated","Appointment":null}`, "appointment event without Appointment object"},
		{"appointment not object", `{"EventType":"AppointmentCreated","Appointment":"A1"}`, "Appointment is not an object"},
		{"appointment without id", `{"EventType":"AppointmentCreated","Appointment":{"ClientId":"C1"}}`, "appointment event without Id"},
		{"note without id", `{"Type":"Note Locked","ClientId":"C1"}`, "note event without NoteId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			unknown, ok := ev.(UnknownEvent)
			if !ok {
				t.Fatalf("Decode() = %T, want UnknownEvent", ev)
			}
			if unknown.Reason != tt.reason {
				t.Fatalf("Reason = %q, want %q", unknown.Reason, tt.reason)
			}
		})
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{``, `   `, `not json`, `[1,2]`, `"text"`, `null`, `{"EventType":`} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("Decode(%q) error = %v, want ErrDecode", raw, err)
			}
		})
	}
}
