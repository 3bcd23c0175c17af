package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/caarlos0/env/v11"

	"github.com/hackgods/vantive/internal/api"
	"github.com/hackgods/vantive/internal/config"
	"github.com/hackgods/vantive/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string        `env:"SIM_API_BASE_URL" envDefault:"http://localhost:8080"`
	Duration      time.Duration `env:"SIM_DURATION" envDefault:"30s"`
	Workers       int           `env:"SIM_WORKERS" envDefault:"10"`
	Appointments  int           `env:"SIM_APPOINTMENTS" envDefault:"500"`
	Clients       int           `env:"SIM_CLIENTS" envDefault:"100"`
	CreateRatio   float64       `env:"SIM_CREATE_RATIO" envDefault:"0.5"`
	UpdateRatio   float64       `env:"SIM_UPDATE_RATIO" envDefault:"0.2"`
	NoteRatio     float64       `env:"SIM_NOTE_RATIO" envDefault:"0.1"`
	ReadRatio     float64       `env:"SIM_READ_RATIO" envDefault:"0.2"`
	WebhookSecret string
}

// simAppointment is one upstream appointment the simulator keeps resending.
type simAppointment struct {
	ID               string
	ClientID         int
	PractitionerName string
	ServiceName      string
	Start            time.Time
}

type DataPool struct {
	Appointments []simAppointment
	Clients      int
	sent         sync.Map // appointment id -> struct{}
}

// MarkSent reports whether id had already been sent once.
func (dp *DataPool) MarkSent(id string) bool {
	_, loaded := dp.sent.LoadOrStore(id, struct{}{})
	return loaded
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

// Record classifies a response: 2xx success, 4xx rejected, everything else
// (including transport errors, status 0) an error.
func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Create    OperationMetrics
	Duplicate OperationMetrics
	Update    OperationMetrics
	NoteLock  OperationMetrics
	List      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(baseCfg.Env, os.Stderr)
	ctx := logging.WithAttrs(context.Background(), slog.String("service", "simulate"))

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		logging.Error(ctx, "invalid config", logging.Err(err))
		os.Exit(1)
	}

	logging.Info(ctx, "simulator starting",
		slog.Duration("duration", cfg.Duration),
		slog.Int("workers", cfg.Workers),
		slog.Float64("create", cfg.CreateRatio),
		slog.Float64("update", cfg.UpdateRatio),
		slog.Float64("note", cfg.NoteRatio),
		slog.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		pool:   buildDataPool(cfg),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := sim.checkReady(ctx); err != nil {
		logging.Error(ctx, "api not ready", logging.Err(err))
		os.Exit(1)
	}

	sim.Run(ctx)
	sim.PrintReport()
}

func loadConfig(baseCfg config.Config) (SimConfig, error) {
	var cfg SimConfig
	if err := env.Parse(&cfg); err != nil {
		return SimConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.WebhookSecret = baseCfg.WebhookSecret
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Appointments <= 0 || cfg.Clients <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_APPOINTMENTS and SIM_CLIENTS must be > 0")
	}

	// Normalize ratios
	total := cfg.CreateRatio + cfg.UpdateRatio + cfg.NoteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.CreateRatio /= total
		cfg.UpdateRatio /= total
		cfg.NoteRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, nil
}

func buildDataPool(cfg SimConfig) *DataPool {
	faker := gofakeit.New(0)
	practitioners := []string{
		"Dr. " + faker.LastName(),
		"Dr. " + faker.LastName(),
		"Dr. " + faker.LastName(),
		"Dr. " + faker.LastName(),
	}
	services := []string{"Initial Assessment", "Individual Therapy", "Follow-up", "Medication Review"}

	now := time.Now().UTC()
	pool := &DataPool{Clients: cfg.Clients}
	for i := 0; i < cfg.Appointments; i++ {
		pool.Appointments = append(pool.Appointments, simAppointment{
			ID:               faker.UUID(),
			ClientID:         faker.Number(1, cfg.Clients),
			PractitionerName: faker.RandomString(practitioners),
			ServiceName:      faker.RandomString(services),
			Start:            faker.DateRange(now.AddDate(0, 0, -14), now.AddDate(0, 0, 14)).UTC(),
		})
	}
	return pool
}

func (s *Simulator) checkReady(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/health/ready", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("readiness returned %d", resp.StatusCode)
	}
	return nil
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	logging.Info(ctx, "starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	logging.Info(ctx, "simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.CreateRatio:
				s.doCreate(ctx, rng)
			case r < s.config.CreateRatio+s.config.UpdateRatio:
				s.doUpdate(ctx, rng)
			case r < s.config.CreateRatio+s.config.UpdateRatio+s.config.NoteRatio:
				s.doNoteLock(ctx, rng)
			default:
				s.doList(ctx, rng)
			}
		}
	}
}

// doCreate sends the full AppointmentCreated payload. Picking from a fixed
// pool means later picks are redeliveries of the same event.
func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand) {
	a := s.pool.Appointments[rng.Intn(len(s.pool.Appointments))]
	payload := map[string]any{
		"EventType": "AppointmentCreated",
		"Appointment": map[string]any{
			"Id":               a.ID,
			"ClientId":         a.ClientID,
			"PractitionerName": a.PractitionerName,
			"ServiceName":      a.ServiceName,
			"StartDateIso":     a.Start.Format(time.RFC3339),
			"StartDate":        a.Start.UnixMilli(),
		},
	}

	latency, status := s.postWebhook(ctx, payload)
	if s.pool.MarkSent(a.ID) {
		s.metrics.Duplicate.Record(latency, status)
		return
	}
	s.metrics.Create.Record(latency, status)
}

// doUpdate sends a partial update carrying only the status.
func (s *Simulator) doUpdate(ctx context.Context, rng *rand.Rand) {
	a := s.pool.Appointments[rng.Intn(len(s.pool.Appointments))]
	statuses := []string{"Confirmed", "Canceled", "Rescheduled", "NoShow"}
	payload := map[string]any{
		"EventType": "AppointmentUpdated",
		"Appointment": map[string]any{
			"Id":     a.ID,
			"Status": statuses[rng.Intn(len(statuses))],
		},
	}

	latency, status := s.postWebhook(ctx, payload)
	s.metrics.Update.Record(latency, status)
}

func (s *Simulator) doNoteLock(ctx context.Context, rng *rand.Rand) {
	payload := map[string]any{
		"Type":     "Note Locked",
		"NoteId":   strconv.FormatInt(rng.Int63(), 36),
		"ClientId": strconv.Itoa(1 + rng.Intn(s.pool.Clients)),
	}

	latency, status := s.postWebhook(ctx, payload)
	s.metrics.NoteLock.Record(latency, status)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	classes := []string{"", "completed", "overdue", "pending"}
	url := fmt.Sprintf("%s/appointments?status=%s&limit=20", s.config.APIBaseURL, classes[rng.Intn(len(classes))])

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		status = resp.StatusCode
	}
	if ctx.Err() != nil {
		return
	}
	s.metrics.List.Record(latency, status)
}

func (s *Simulator) postWebhook(ctx context.Context, payload map[string]any) (time.Duration, int) {
	body, _ := json.Marshal(payload)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+api.WebhookPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if s.config.WebhookSecret != "" {
		req.Header.Set(api.SignatureHeader, api.Sign(s.config.WebhookSecret, body))
	}

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return latency, resp.StatusCode
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Appointment pool: %d across %d clients\n", len(s.pool.Appointments), s.pool.Clients)
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Redelivery", &s.metrics.Duplicate)
	printOperationReport("Partial update", &s.metrics.Update)
	printOperationReport("Note lock", &s.metrics.NoteLock)
	printOperationReport("List", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	errored := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errored > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errored, float64(errored)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
