package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/caarlos0/env/v11"

	"github.com/hackgods/vantive/internal/app"
	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/config"
	"github.com/hackgods/vantive/internal/intake"
	"github.com/hackgods/vantive/internal/logging"
)

type seedConfig struct {
	ClinicName    string  `env:"SEED_CLINIC_NAME" envDefault:"Main Clinic"`
	Appointments  int     `env:"SEED_APPOINTMENTS" envDefault:"200"`
	Clients       int     `env:"SEED_CLIENTS" envDefault:"60"`
	Practitioners int     `env:"SEED_PRACTITIONERS" envDefault:"8"`
	LockedRatio   float64 `env:"SEED_LOCKED_RATIO" envDefault:"0.4"`
}

var services = []string{
	"Initial Assessment",
	"Individual Therapy",
	"Couples Therapy",
	"Family Session",
	"Medication Review",
	"Follow-up",
}

var statuses = []string{"Confirmed", "Booked", "WaitingConfirmation", "Canceled"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	var seedCfg seedConfig
	if err := env.Parse(&seedCfg); err != nil {
		fmt.Fprintf(os.Stderr, "seed config error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Env, os.Stderr)
	ctx := logging.WithAttrs(context.Background(), slog.String("service", "seed"))

	if err := run(ctx, cfg, seedCfg); err != nil {
		logging.Error(ctx, "seed failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, seedCfg seedConfig) error {
	logging.Info(ctx, "seed starting", slog.String("store", cfg.StoreDriver))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	scope, created, err := app.EnsureClinic(ctx, cfg, store.Repo, seedCfg.ClinicName)
	if err != nil {
		return fmt.Errorf("ensure clinic: %w", err)
	}
	logging.Info(ctx, "clinic ready",
		slog.String("clinic_id", scope.ID.String()),
		slog.String("name", scope.Name),
		slog.Bool("created", created),
	)

	if seedCfg.Appointments <= 0 {
		logging.Info(ctx, "seed complete")
		return nil
	}

	svc := appointment.NewService(store.Repo)
	faker := gofakeit.New(0)

	if err := seedAppointments(ctx, svc, scope, faker, seedCfg); err != nil {
		return err
	}
	if err := seedNoteLocks(ctx, svc, scope, faker, seedCfg); err != nil {
		return err
	}

	logging.Info(ctx, "seed complete")
	return nil
}

// seedAppointments feeds generated appointment events through the reconciler
// so seeded rows go through the same merge path as real webhooks.
func seedAppointments(ctx context.Context, svc *appointment.Service, scope *appointment.Scope, faker *gofakeit.Faker, cfg seedConfig) error {
	logging.Info(ctx, "seeding appointments", slog.Int("count", cfg.Appointments))

	practitioners := make([]string, max(cfg.Practitioners, 1))
	for i := range practitioners {
		practitioners[i] = "Dr. " + faker.LastName()
	}
	clientNames := make([]string, max(cfg.Clients, 1))
	for i := range clientNames {
		clientNames[i] = faker.Name()
	}

	now := time.Now().UTC()
	for i := 0; i < cfg.Appointments; i++ {
		clientIdx := faker.Number(0, len(clientNames)-1)
		practitionerIdx := faker.Number(0, len(practitioners)-1)
		start := faker.DateRange(now.AddDate(0, 0, -30), now.AddDate(0, 0, 14)).UTC().Truncate(15 * time.Minute)

		ev := intake.AppointmentEvent{
			EventType: intake.EventAppointmentCreated,
			Appointment: intake.Appointment{
				ID:               faker.UUID(),
				ClientID:         strPtr(strconv.Itoa(1000 + clientIdx)),
				ClientName:       strPtr(clientNames[clientIdx]),
				PractitionerID:   strPtr(fmt.Sprintf("P%03d", practitionerIdx)),
				PractitionerName: strPtr(practitioners[practitionerIdx]),
				ServiceName:      strPtr(faker.RandomString(services)),
				LocationName:     strPtr(faker.City() + " Office"),
				Status:           strPtr(faker.RandomString(statuses)),
				StartsAt:         &start,
			},
		}
		if _, err := svc.Apply(ctx, scope, ev); err != nil {
			return fmt.Errorf("seed appointment %d: %w", i, err)
		}

		if (i+1)%50 == 0 {
			logging.Info(ctx, "appointments seeded", slog.Int("done", i+1), slog.Int("total", cfg.Appointments))
		}
	}
	return nil
}

func seedNoteLocks(ctx context.Context, svc *appointment.Service, scope *appointment.Scope, faker *gofakeit.Faker, cfg seedConfig) error {
	locks := int(float64(cfg.Clients) * cfg.LockedRatio)
	logging.Info(ctx, "seeding note locks", slog.Int("count", locks))

	var completed int64
	for i := 0; i < locks; i++ {
		clientID := strconv.Itoa(1000 + faker.Number(0, max(cfg.Clients, 1)-1))
		res, err := svc.Apply(ctx, scope, intake.NoteLockedEvent{
			NoteID:   faker.UUID(),
			ClientID: &clientID,
		})
		if err != nil {
			return fmt.Errorf("seed note lock %d: %w", i, err)
		}
		completed += res.CompletedAppointments
	}

	logging.Info(ctx, "note locks seeded", slog.Int64("completed_appointments", completed))
	return nil
}

func strPtr(s string) *string { return &s }
