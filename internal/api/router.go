package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/vantive/internal/appointment"
)

const WebhookPath = "/api/intakeq/webhook"

type RouterConfig struct {
	Reconciler Reconciler
	Reader     AppointmentReader
	Resolver   appointment.ScopeResolver
	// Summaries is nil when Redis is not configured.
	Summaries    SummaryLoader
	HealthChecks []HealthCheck
	Webhook      WebhookConfig
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.HealthChecks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Ingress
	r.Method(http.MethodPost, WebhookPath, NewWebhookHandler(cfg.Reconciler, cfg.Resolver, cfg.Webhook))

	// Read side
	r.Get("/appointments", listAppointmentsHandler(cfg.Reader, cfg.Resolver))
	r.Get("/appointments/overdue-summary", overdueSummaryHandler(cfg.Summaries, cfg.Resolver))
	r.Get("/appointments/{externalID}", getAppointmentHandler(cfg.Reader, cfg.Resolver))

	return r
}
