package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Classification string

const (
	Completed Classification = "completed"
	Overdue   Classification = "overdue"
	Pending   Classification = "pending"
)

// ParseClassification accepts "", completed, overdue or pending.
func ParseClassification(raw string) (Classification, error) {
	switch c := Classification(strings.ToLower(strings.TrimSpace(raw))); c {
	case "", Completed, Overdue, Pending:
		return c, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Classify labels an appointment for the dashboard. An appointment with no
// known start is pending.
func Classify(a Appointment, now time.Time) Classification {
	switch {
	case a.NoteCompleted:
		return Completed
	case a.ScheduledStart != nil && a.ScheduledStart.Before(now):
		return Overdue
	default:
		return Pending
	}
}

// filterFor turns a classification into the equivalent store predicate so
// the database does the filtering.
func filterFor(scopeID uuid.UUID, c Classification, now time.Time) AppointmentFilter {
	f := AppointmentFilter{ScopeID: scopeID}
	switch c {
	case Completed:
		f.NoteCompleted = boolPtr(true)
	case Overdue:
		f.NoteCompleted = boolPtr(false)
		f.StartsBefore = &now
	case Pending:
		f.NoteCompleted = boolPtr(false)
		f.NotStartedBy = &now
	}
	return f
}

type ClassifiedAppointment struct {
	Appointment
	Classification Classification
}

// ListAppointments returns the clinic's appointments, newest start first,
// optionally narrowed to one classification.
func (s *Service) ListAppointments(ctx context.Context, scope *Scope, c Classification, limit, offset int) ([]ClassifiedAppointment, error) {
	if scope == nil {
		return nil, ErrScopeNotFound
	}
	limit, offset = NormalizePage(limit, offset)

	now := s.now().UTC()
	filter := filterFor(scope.ID, c, now)
	filter.Limit = limit
	filter.Offset = offset

	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	out := make([]ClassifiedAppointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, ClassifiedAppointment{Appointment: a, Classification: Classify(a, now)})
	}
	return out, nil
}

// GetAppointment looks up one appointment by its upstream id.
func (s *Service) GetAppointment(ctx context.Context, scope *Scope, externalID string) (*ClassifiedAppointment, error) {
	if scope == nil {
		return nil, ErrScopeNotFound
	}
	a, err := s.repo.GetAppointmentByExternalID(ctx, AppointmentKey{ScopeID: scope.ID, ExternalAppointmentID: externalID})
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &ClassifiedAppointment{Appointment: *a, Classification: Classify(*a, s.now().UTC())}, nil
}

// NormalizePage applies the listing defaults: 20 items, at most 100.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func boolPtr(b bool) *bool { return &b }
