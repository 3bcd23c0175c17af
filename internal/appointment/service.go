package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/vantive/internal/intake"
	"github.com/hackgods/vantive/internal/logging"
	"github.com/hackgods/vantive/internal/telemetry"
)

// Result describes what applying one event did to the store.
type Result struct {
	Kind                  intake.Kind
	ExternalAppointmentID string
	ExternalNoteID        string
	CompletedAppointments int64
	IgnoredReason         string
}

type Service struct {
	repo   Repository
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		tracer: telemetry.Tracer(),
	}
}

// Apply reconciles one decoded event into the store for scope. Each rule
// runs in a single transaction, so an event is either fully applied or not
// at all. Store failures are wrapped in ErrPersistence.
func (s *Service) Apply(ctx context.Context, scope *Scope, ev intake.Event) (Result, error) {
	if scope == nil {
		return Result{}, ErrScopeNotFound
	}
	if ev == nil {
		return Result{}, errors.New("nil event")
	}

	ctx, span := s.tracer.Start(ctx, "reconcile.apply", trace.WithAttributes(
		attribute.String("event.kind", string(ev.Kind())),
		attribute.String("clinic.id", scope.ID.String()),
	))
	defer span.End()

	var (
		res Result
		err error
	)
	switch e := ev.(type) {
	case intake.AppointmentEvent:
		res, err = s.applyAppointment(ctx, scope, e)
	case intake.NoteLockedEvent:
		res, err = s.applyNoteLocked(ctx, scope, e)
	case intake.UnknownEvent:
		res = Result{Kind: intake.KindUnknown, IgnoredReason: e.Reason}
		logging.Info(ctx, "webhook event ignored",
			slog.String("event_type", e.EventType),
			slog.String("type", e.Type),
			slog.String("reason", e.Reason),
		)
	default:
		err = fmt.Errorf("unsupported event %T", ev)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// applyAppointment merge-upserts the appointment. Absent fields keep their
// stored values and note_completed is only ever set on insert.
func (s *Service) applyAppointment(ctx context.Context, scope *Scope, ev intake.AppointmentEvent) (Result, error) {
	a := ev.Appointment
	key := AppointmentKey{ScopeID: scope.ID, ExternalAppointmentID: a.ID}
	patch := AppointmentPatch{
		ExternalClientID:       a.ClientID,
		ExternalPractitionerID: a.PractitionerID,
		PractitionerName:       a.PractitionerName,
		ClientName:             a.ClientName,
		ServiceName:            a.ServiceName,
		LocationName:           a.LocationName,
		Status:                 a.Status,
		ScheduledStart:         a.StartsAt,
	}
	res := Result{Kind: intake.KindAppointment, ExternalAppointmentID: a.ID}

	now := s.now().UTC()
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.UpsertAppointment(ctx, key, patch, now)
	})
	if err != nil {
		return res, fmt.Errorf("%w: upsert appointment %s: %w", ErrPersistence, a.ID, err)
	}

	logging.Info(ctx, "appointment reconciled",
		slog.String("event_type", ev.EventType),
		slog.String("appointment_id", a.ID),
	)
	return res, nil
}

// applyNoteLocked appends the note audit row and closes out every incomplete
// appointment of the note's client. The upstream event does not say which
// appointment the note belongs to, so all of the client's pending
// appointments are completed together.
func (s *Service) applyNoteLocked(ctx context.Context, scope *Scope, ev intake.NoteLockedEvent) (Result, error) {
	now := s.now().UTC()
	note := Note{
		ID:                    uuid.New(),
		ScopeID:               scope.ID,
		ExternalNoteID:        ev.NoteID,
		ExternalClientID:      ev.ClientID,
		ExternalAppointmentID: ev.AppointmentID,
		PractitionerName:      ev.PractitionerName,
		LockedAt:              now,
	}
	res := Result{Kind: intake.KindNoteLocked, ExternalNoteID: ev.NoteID}

	var completed int64
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.InsertNote(ctx, note); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		if ev.ClientID == nil {
			return nil
		}
		n, err := tx.MarkNotesCompletedForClient(ctx, scope.ID, *ev.ClientID, now)
		if err != nil {
			return fmt.Errorf("complete appointments: %w", err)
		}
		completed = n
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("%w: note %s: %w", ErrPersistence, ev.NoteID, err)
	}
	res.CompletedAppointments = completed

	attrs := []slog.Attr{
		slog.String("note_id", ev.NoteID),
		slog.Int64("completed_appointments", completed),
	}
	if ev.ClientID != nil {
		attrs = append(attrs, slog.String("client_id", *ev.ClientID))
	}
	logging.Info(ctx, "note lock reconciled", attrs...)
	return res, nil
}
