package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const unassignedPractitioner = "Unassigned"

type PractitionerBacklog struct {
	PractitionerName     string    `json:"practitioner_name"`
	Overdue              int       `json:"overdue"`
	OldestScheduledStart time.Time `json:"oldest_scheduled_start"`
}

// OverdueSummary is a point-in-time count of appointments whose note is
// still open more than the grace period after the appointment started.
type OverdueSummary struct {
	ScopeID       uuid.UUID             `json:"clinic_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Cutoff        time.Time             `json:"cutoff"`
	Total         int                   `json:"total"`
	Practitioners []PractitionerBacklog `json:"practitioners"`
}

// SummaryPublisher stores a computed summary for the read side.
type SummaryPublisher interface {
	PublishOverdueSummary(ctx context.Context, summary *OverdueSummary) error
}

func (s *Service) OverdueSummary(ctx context.Context, scope *Scope, grace time.Duration) (*OverdueSummary, error) {
	if scope == nil {
		return nil, ErrScopeNotFound
	}

	now := s.now().UTC()
	cutoff := now.Add(-grace)
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		ScopeID:       scope.ID,
		NoteCompleted: boolPtr(false),
		StartsBefore:  &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue appointments: %w", err)
	}

	byName := make(map[string]*PractitionerBacklog)
	for _, a := range appts {
		if a.ScheduledStart == nil {
			continue
		}
		name := unassignedPractitioner
		if a.PractitionerName != nil {
			name = *a.PractitionerName
		}
		b, ok := byName[name]
		if !ok {
			b = &PractitionerBacklog{PractitionerName: name, OldestScheduledStart: *a.ScheduledStart}
			byName[name] = b
		}
		b.Overdue++
		if a.ScheduledStart.Before(b.OldestScheduledStart) {
			b.OldestScheduledStart = *a.ScheduledStart
		}
	}

	summary := &OverdueSummary{
		ScopeID:       scope.ID,
		GeneratedAt:   now,
		Cutoff:        cutoff,
		Practitioners: make([]PractitionerBacklog, 0, len(byName)),
	}
	for _, b := range byName {
		summary.Total += b.Overdue
		summary.Practitioners = append(summary.Practitioners, *b)
	}
	sort.Slice(summary.Practitioners, func(i, j int) bool {
		pi, pj := summary.Practitioners[i], summary.Practitioners[j]
		if pi.Overdue != pj.Overdue {
			return pi.Overdue > pj.Overdue
		}
		return pi.PractitionerName < pj.PractitionerName
	})

	return summary, nil
}

// PublishOverdueSummary computes the summary and hands it to pub.
func (s *Service) PublishOverdueSummary(ctx context.Context, scope *Scope, grace time.Duration, pub SummaryPublisher) (*OverdueSummary, error) {
	summary, err := s.OverdueSummary(ctx, scope, grace)
	if err != nil {
		return nil, err
	}
	if err := pub.PublishOverdueSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("publish overdue summary: %w", err)
	}
	return summary, nil
}
