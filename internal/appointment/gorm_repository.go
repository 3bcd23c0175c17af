package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type clinicRecord struct {
	ID        string `gorm:"primaryKey;type:text"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (clinicRecord) TableName() string { return "clinics" }

type appointmentRecord struct {
	ID                     string     `gorm:"primaryKey;type:text"`
	ClinicID               string     `gorm:"type:text;not null;uniqueIndex:appointments_clinic_external_idx,priority:1"`
	ExternalAppointmentID  string     `gorm:"type:text;not null;uniqueIndex:appointments_clinic_external_idx,priority:2"`
	ExternalClientID       *string    `gorm:"type:text;index"`
	ExternalPractitionerID *string    `gorm:"type:text"`
	PractitionerName       *string    `gorm:"type:text"`
	ClientName             *string    `gorm:"type:text"`
	ServiceName            *string    `gorm:"type:text"`
	LocationName           *string    `gorm:"type:text"`
	Status                 *string    `gorm:"type:text"`
	ScheduledStart         *time.Time `gorm:"index"`
	NoteCompleted          bool       `gorm:"not null;default:false"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (appointmentRecord) TableName() string { return "appointments" }

type noteRecord struct {
	ID                    string  `gorm:"primaryKey;type:text"`
	ClinicID              string  `gorm:"type:text;not null;index:notes_external_note_id_idx,priority:1"`
	ExternalNoteID        string  `gorm:"type:text;not null;index:notes_external_note_id_idx,priority:2"`
	ExternalClientID      *string `gorm:"type:text"`
	ExternalAppointmentID *string `gorm:"type:text"`
	PractitionerName      *string `gorm:"type:text"`
	LockedAt              time.Time
}

func (noteRecord) TableName() string { return "notes" }

// GormRepository is the Repository used with the sqlite driver.
type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the tables.
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&clinicRecord{}, &appointmentRecord{}, &noteRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (r *GormRepository) FindSingleScope(ctx context.Context) (*Scope, error) {
	var rec clinicRecord
	err := r.db.WithContext(ctx).Order("created_at, id").Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScopeNotFound
		}
		return nil, err
	}
	return rec.toScope()
}

func (r *GormRepository) FindScopeByID(ctx context.Context, id uuid.UUID) (*Scope, error) {
	var rec clinicRecord
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScopeNotFound
		}
		return nil, err
	}
	return rec.toScope()
}

func (r *GormRepository) CreateScope(ctx context.Context, name string) (*Scope, error) {
	rec := clinicRecord{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create clinic: %w", err)
	}
	return rec.toScope()
}

const sqliteUpsertAppointment = `
INSERT INTO appointments (
	id, clinic_id, external_appointment_id, external_client_id, external_practitioner_id,
	practitioner_name, client_name, service_name, location_name, status, scheduled_start,
	note_completed, created_at, updated_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (clinic_id, external_appointment_id) DO UPDATE SET
	external_client_id       = COALESCE(excluded.external_client_id, appointments.external_client_id),
	external_practitioner_id = COALESCE(excluded.external_practitioner_id, appointments.external_practitioner_id),
	practitioner_name        = COALESCE(excluded.practitioner_name, appointments.practitioner_name),
	client_name              = COALESCE(excluded.client_name, appointments.client_name),
	service_name             = COALESCE(excluded.service_name, appointments.service_name),
	location_name            = COALESCE(excluded.location_name, appointments.location_name),
	status                   = COALESCE(excluded.status, appointments.status),
	scheduled_start          = COALESCE(excluded.scheduled_start, appointments.scheduled_start),
	updated_at               = excluded.updated_at`

func (r *GormRepository) UpsertAppointment(ctx context.Context, key AppointmentKey, patch AppointmentPatch, now time.Time) error {
	now = now.UTC()
	err := r.db.WithContext(ctx).Exec(sqliteUpsertAppointment,
		uuid.NewString(),
		key.ScopeID.String(),
		key.ExternalAppointmentID,
		nullString(patch.ExternalClientID),
		nullString(patch.ExternalPractitionerID),
		nullString(patch.PractitionerName),
		nullString(patch.ClientName),
		nullString(patch.ServiceName),
		nullString(patch.LocationName),
		nullString(patch.Status),
		nullTime(patch.ScheduledStart),
		false,
		now,
		now,
	).Error
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

func (r *GormRepository) InsertNote(ctx context.Context, note Note) error {
	rec := noteRecord{
		ID:                    note.ID.String(),
		ClinicID:              note.ScopeID.String(),
		ExternalNoteID:        note.ExternalNoteID,
		ExternalClientID:      note.ExternalClientID,
		ExternalAppointmentID: note.ExternalAppointmentID,
		PractitionerName:      note.PractitionerName,
		LockedAt:              note.LockedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *GormRepository) MarkNotesCompletedForClient(ctx context.Context, scopeID uuid.UUID, clientID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&appointmentRecord{}).
		Where("clinic_id = ? AND external_client_id = ? AND note_completed = ?", scopeID.String(), clientID, false).
		Updates(map[string]any{
			"note_completed": true,
			"updated_at":     now.UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark notes completed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormRepository{db: tx, inTx: true})
	})
}

func (r *GormRepository) GetAppointmentByExternalID(ctx context.Context, key AppointmentKey) (*Appointment, error) {
	var rec appointmentRecord
	err := r.db.WithContext(ctx).
		Where("clinic_id = ? AND external_appointment_id = ?", key.ScopeID.String(), key.ExternalAppointmentID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a, err := rec.toAppointment()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	q := r.db.WithContext(ctx).Where("clinic_id = ?", filter.ScopeID.String())
	if filter.NoteCompleted != nil {
		q = q.Where("note_completed = ?", *filter.NoteCompleted)
	}
	if filter.StartsBefore != nil {
		q = q.Where("scheduled_start < ?", filter.StartsBefore.UTC())
	}
	if filter.NotStartedBy != nil {
		q = q.Where("(scheduled_start IS NULL OR scheduled_start >= ?)", filter.NotStartedBy.UTC())
	}
	q = q.Order("scheduled_start IS NULL, scheduled_start DESC, external_appointment_id")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var recs []appointmentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]Appointment, 0, len(recs))
	for _, rec := range recs {
		a, err := rec.toAppointment()
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

func (rec clinicRecord) toScope() (*Scope, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("parse clinic id %q: %w", rec.ID, err)
	}
	return &Scope{ID: id, Name: rec.Name, CreatedAt: rec.CreatedAt}, nil
}

func (rec appointmentRecord) toAppointment() (Appointment, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return Appointment{}, fmt.Errorf("parse appointment id %q: %w", rec.ID, err)
	}
	scopeID, err := uuid.Parse(rec.ClinicID)
	if err != nil {
		return Appointment{}, fmt.Errorf("parse clinic id %q: %w", rec.ClinicID, err)
	}
	a := Appointment{
		ID:                     id,
		ScopeID:                scopeID,
		ExternalAppointmentID:  rec.ExternalAppointmentID,
		ExternalClientID:       rec.ExternalClientID,
		ExternalPractitionerID: rec.ExternalPractitionerID,
		PractitionerName:       rec.PractitionerName,
		ClientName:             rec.ClientName,
		ServiceName:            rec.ServiceName,
		LocationName:           rec.LocationName,
		Status:                 rec.Status,
		NoteCompleted:          rec.NoteCompleted,
		CreatedAt:              rec.CreatedAt,
		UpdatedAt:              rec.UpdatedAt,
	}
	if rec.ScheduledStart != nil {
		t := rec.ScheduledStart.UTC()
		a.ScheduledStart = &t
	}
	return a, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
