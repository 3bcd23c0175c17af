package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDecode is returned only when the payload is not a JSON object at all.
// Missing or oddly typed business fields never produce it.
var ErrDecode = errors.New("invalid webhook payload")

type envelope struct {
	EventType        flexString      `json:"EventType"`
	Type             flexString      `json:"Type"`
	NoteID           flexString      `json:"NoteId"`
	ClientID         flexString      `json:"ClientId"`
	AppointmentID    flexString      `json:"AppointmentId"`
	PractitionerName flexString      `json:"PractitionerName"`
	Appointment      json.RawMessage `json:"Appointment"`
}

type appointmentPayload struct {
	ID               flexString `json:"Id"`
	ClientID         flexString `json:"ClientId"`
	PractitionerID   flexString `json:"PractitionerId"`
	PractitionerName flexString `json:"PractitionerName"`
	ClientName       flexString `json:"ClientName"`
	ServiceName      flexString `json:"ServiceName"`
	LocationName     flexString `json:"LocationName"`
	Status           flexString `json:"Status"`
	StartDateIso     flexString `json:"StartDateIso"`
	StartDate        flexString `json:"StartDate"` // epoch milliseconds
}

// Decode classifies raw into an AppointmentEvent, NoteLockedEvent or
// UnknownEvent. Note events are tagged by Type, appointment events by
// EventType; both tags are inspected on every payload.
func Decode(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrDecode)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch {
	case strings.EqualFold(env.Type.value, TypeNoteLocked):
		return decodeNoteLocked(env), nil
	case isAppointmentEventType(env.EventType.value):
		return decodeAppointment(env), nil
	}

	return UnknownEvent{
		EventType: env.EventType.value,
		Type:      env.Type.value,
		Reason:    "unrecognized event type",
	}, nil
}

func isAppointmentEventType(v string) bool {
	for _, t := range appointmentEventTypes {
		if strings.EqualFold(v, t) {
			return true
		}
	}
	return false
}

func decodeNoteLocked(env envelope) Event {
	if !env.NoteID.set {
		return UnknownEvent{Type: env.Type.value, Reason: "note event without NoteId"}
	}
	return NoteLockedEvent{
		NoteID:           env.NoteID.value,
		ClientID:         env.ClientID.ptr(),
		AppointmentID:    env.AppointmentID.ptr(),
		PractitionerName: env.PractitionerName.ptr(),
	}
}

func decodeAppointment(env envelope) Event {
	unknown := func(reason string) Event {
		return UnknownEvent{EventType: env.EventType.value, Reason: reason}
	}

	if isNull(env.Appointment) {
		return unknown("appointment event without Appointment object")
	}

	var p appointmentPayload
	if err := json.Unmarshal(env.Appointment, &p); err != nil {
		return unknown("Appointment is not an object")
	}
	if !p.ID.set {
		return unknown("appointment event without Id")
	}

	return AppointmentEvent{
		EventType: env.EventType.value,
		Appointment: Appointment{
			ID:               p.ID.value,
			ClientID:         p.ClientID.ptr(),
			PractitionerID:   p.PractitionerID.ptr(),
			PractitionerName: p.PractitionerName.ptr(),
			ClientName:       p.ClientName.ptr(),
			ServiceName:      p.ServiceName.ptr(),
			LocationName:     p.LocationName.ptr(),
			Status:           p.Status.ptr(),
			StartsAt:         parseStart(p.StartDateIso, p.StartDate),
		},
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseStart prefers StartDateIso and falls back to the epoch-millisecond
// StartDate. Timestamps without a zone are taken as UTC.
func parseStart(iso, epoch flexString) *time.Time {
	if iso.set {
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, iso.value, time.UTC); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	if epoch.set {
		if ms, err := strconv.ParseInt(epoch.value, 10, 64); err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
		if f, err := strconv.ParseFloat(epoch.value, 64); err == nil {
			t := time.UnixMilli(int64(f)).UTC()
			return &t
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// flexString accepts a JSON string or number. IntakeQ sends some ids as
// numbers and others as strings. Blank strings, null, objects, arrays and
// booleans leave it unset.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.value = strings.TrimSpace(s)
		f.set = f.value != ""
	case c == '-' || (c >= '0' && c <= '9'):
		f.value = string(b)
		f.set = true
	}
	return nil
}

func (f flexString) ptr() *string {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
