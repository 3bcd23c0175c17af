package appointment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hackgods/vantive/internal/db"
)

func setupPgRepository(t *testing.T) *PgRepository {
	t.Helper()

	dsn := os.Getenv("VANTIVE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VANTIVE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return NewPgRepository(pool)
}

func TestPgRepositoryReconcile(t *testing.T) {
	repo := setupPgRepository(t)
	ctx := context.Background()

	scope, err := repo.CreateScope(ctx, "integration-"+time.Now().Format("150405.000000"))
	if err != nil {
		t.Fatalf("CreateScope() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, id := range []string{"A1", "A2", "A3"} {
		key := AppointmentKey{ScopeID: scope.ID, ExternalAppointmentID: id}
		if err := repo.UpsertAppointment(ctx, key, AppointmentPatch{ExternalClientID: strPtr("42")}, now); err != nil {
			t.Fatalf("UpsertAppointment(%s) error = %v", id, err)
		}
	}
	other := AppointmentKey{ScopeID: scope.ID, ExternalAppointmentID: "B1"}
	if err := repo.UpsertAppointment(ctx, other, AppointmentPatch{ExternalClientID: strPtr("43"), Status: strPtr("Booked")}, now); err != nil {
		t.Fatalf("UpsertAppointment(B1) error = %v", err)
	}

	var completed int64
	err = repo.WithinTx(ctx, func(ctx context.Context, tx Repository) error {
		n, err := tx.MarkNotesCompletedForClient(ctx, scope.ID, "42", now)
		completed = n
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}
	if completed != 3 {
		t.Fatalf("completed = %d, want 3", completed)
	}

	if err := repo.UpsertAppointment(ctx, other, AppointmentPatch{ServiceName: strPtr("Follow-up")}, now); err != nil {
		t.Fatalf("UpsertAppointment(merge) error = %v", err)
	}
	b1, err := repo.GetAppointmentByExternalID(ctx, other)
	if err != nil {
		t.Fatalf("GetAppointmentByExternalID() error = %v", err)
	}
	if b1.NoteCompleted || b1.Status == nil || *b1.Status != "Booked" || b1.ServiceName == nil {
		t.Fatalf("B1 = %+v", b1)
	}

	done, err := repo.ListAppointments(ctx, AppointmentFilter{ScopeID: scope.ID, NoteCompleted: boolPtr(true)})
	if err != nil {
		t.Fatalf("ListAppointments() error = %v", err)
	}
	if len(done) != 3 {
		t.Fatalf("completed appointments = %d, want 3", len(done))
	}
}
