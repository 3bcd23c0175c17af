package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/vantive/internal/intake"
)

type recordingPublisher struct {
	got *OverdueSummary
	err error
}

func (p *recordingPublisher) PublishOverdueSummary(ctx context.Context, summary *OverdueSummary) error {
	p.got = summary
	return p.err
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	tests := []struct {
		name string
		a    Appointment
		want Classification
	}{
		{name: "completed wins over past start", a: Appointment{NoteCompleted: true, ScheduledStart: &before}, want: Completed},
		{name: "open note past start", a: Appointment{ScheduledStart: &before}, want: Overdue},
		{name: "future start", a: Appointment{ScheduledStart: &after}, want: Pending},
		{name: "start equal to now", a: Appointment{ScheduledStart: &now}, want: Pending},
		{name: "unknown start", a: Appointment{}, want: Pending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.a, now); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClassification(t *testing.T) {
	for _, raw := range []string{"", "completed", " Overdue ", "PENDING"} {
		if _, err := ParseClassification(raw); err != nil {
			t.Errorf("ParseClassification(%q) error = %v", raw, err)
		}
	}
	if _, err := ParseClassification("late"); err == nil {
		t.Error("ParseClassification(late) expected error")
	}
}

func TestListAppointmentsByClassification(t *testing.T) {
	svc, _, scope := setupService(t)
	ctx := context.Background()
	now := svc.now()

	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)
	events := []intake.Event{
		intake.AppointmentEvent{EventType: intake.EventAppointmentCreated, Appointment: intake.Appointment{ID: "A1", ClientID: strPtr("C1"), StartsAt: &past}},
		intake.AppointmentEvent{EventType: intake.EventAppointmentCreated, Appointment: intake.Appointment{ID: "A2", ClientID: strPtr("C2"), StartsAt: &past}},
		intake.AppointmentEvent{EventType: intake.EventAppointmentCreated, Appointment: intake.Appointment{ID: "A3", ClientID: strPtr("C3"), StartsAt: &future}},
		intake.AppointmentEvent{EventType: intake.EventAppointmentCreated, Appointment: intake.Appointment{ID: "A4", ClientID: strPtr("C4")}},
		intake.NoteLockedEvent{NoteID: "N1", ClientID: strPtr("C2")},
	}
	for _, ev := range events {
		if _, err := svc.Apply(ctx, scope, ev); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	tests := []struct {
		class Classification
		want  []string
	}{
		{class: "", want: []string{"A3", "A1", "A2", "A4"}},
		{class: Completed, want: []string{"A2"}},
		{class: Overdue, want: []string{"A1"}},
		{class: Pending, want: []string{"A3", "A4"}},
	}
	for _, tt := range tests {
		got, err := svc.ListAppointments(ctx, scope, tt.class, 0, 0)
		if err != nil {
			t.Fatalf("ListAppointments(%q) error = %v", tt.class, err)
		}
		ids := make([]string, 0, len(got))
		for _, a := range got {
			ids = append(ids, a.ExternalAppointmentID)
			if tt.class != "" && a.Classification != tt.class {
				t.Errorf("%s classified %q, want %q", a.ExternalAppointmentID, a.Classification, tt.class)
			}
		}
		if !equalStrings(ids, tt.want) {
			t.Errorf("ListAppointments(%q) = %v, want %v", tt.class, ids, tt.want)
		}
	}

	page, err := svc.ListAppointments(ctx, scope, "", 2, 1)
	if err != nil {
		t.Fatalf("ListAppointments(page) error = %v", err)
	}
	if len(page) != 2 || page[0].ExternalAppointmentID != "A1" {
		t.Fatalf("ListAppointments(limit=2, offset=1) = %+v", page)
	}
}

func TestGetAppointment(t *testing.T) {
	svc, _, scope := setupService(t)
	ctx := context.Background()

	if _, err := svc.GetAppointment(ctx, scope, "missing"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("GetAppointment(missing) error = %v", err)
	}
	if _, err := svc.Apply(ctx, scope, appointmentCreated("A1", "C1")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got, err := svc.GetAppointment(ctx, scope, "A1")
	if err != nil {
		t.Fatalf("GetAppointment() error = %v", err)
	}
	if got.Classification != Pending {
		t.Fatalf("classification = %q, want pending", got.Classification)
	}
}

func TestOverdueSummaryGroupsByPractitioner(t *testing.T) {
	svc, _, scope := setupService(t)
	ctx := context.Background()
	now := svc.now()

	old := now.Add(-72 * time.Hour)
	older := now.Add(-96 * time.Hour)
	recent := now.Add(-time.Hour)
	events := []intake.AppointmentEvent{
		{Appointment: intake.Appointment{ID: "A1", ClientID: strPtr("C1"), PractitionerName: strPtr("Dr. X"), StartsAt: &old}},
		{Appointment: intake.Appointment{ID: "A2", ClientID: strPtr("C2"), PractitionerName: strPtr("Dr. X"), StartsAt: &older}},
		{Appointment: intake.Appointment{ID: "A3", ClientID: strPtr("C3"), StartsAt: &old}},
		{Appointment: intake.Appointment{ID: "A4", ClientID: strPtr("C4"), PractitionerName: strPtr("Dr. Y"), StartsAt: &recent}},
	}
	for _, ev := range events {
		ev.EventType = intake.EventAppointmentCreated
		if _, err := svc.Apply(ctx, scope, ev); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	pub := &recordingPublisher{}
	summary, err := svc.PublishOverdueSummary(ctx, scope, 24*time.Hour, pub)
	if err != nil {
		t.Fatalf("PublishOverdueSummary() error = %v", err)
	}
	if pub.got != summary {
		t.Fatal("publisher did not receive the computed summary")
	}
	if summary.Total != 3 {
		t.Fatalf("total = %d, want 3", summary.Total)
	}
	if len(summary.Practitioners) != 2 {
		t.Fatalf("practitioners = %+v", summary.Practitioners)
	}
	top := summary.Practitioners[0]
	if top.PractitionerName != "Dr. X" || top.Overdue != 2 || !top.OldestScheduledStart.Equal(older) {
		t.Fatalf("top backlog = %+v", top)
	}
	if summary.Practitioners[1].PractitionerName != unassignedPractitioner {
		t.Fatalf("second backlog = %+v", summary.Practitioners[1])
	}

	pub.err = errors.New("redis down")
	if _, err := svc.PublishOverdueSummary(ctx, scope, 24*time.Hour, pub); err == nil {
		t.Fatal("PublishOverdueSummary() expected publisher error")
	}
}
