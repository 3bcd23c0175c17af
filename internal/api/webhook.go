package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/intake"
	"github.com/hackgods/vantive/internal/logging"
	"github.com/hackgods/vantive/internal/telemetry"
)

const (
	SignatureHeader = "X-Auth-Signature"

	msgWebhookFailed    = "Webhook failed"
	msgClinicNotFound   = "Clinic not found"
	msgInvalidSignature = "Invalid signature"
	msgPayloadTooLarge  = "Payload too large"
)

// Reconciler applies one decoded event to the store.
type Reconciler interface {
	Apply(ctx context.Context, scope *appointment.Scope, ev intake.Event) (appointment.Result, error)
}

type WebhookConfig struct {
	// Secret enables X-Auth-Signature verification when non-empty.
	Secret string
	// StrictPersistence answers 500 on store failures so the sender retries.
	StrictPersistence bool
	EventTimeout      time.Duration
	MaxBodyBytes      int64
}

// WebhookHandler receives IntakeQ webhooks: read, verify, decode, resolve the
// clinic, apply, respond.
type WebhookHandler struct {
	reconciler Reconciler
	resolver   appointment.ScopeResolver
	cfg        WebhookConfig
	tracer     trace.Tracer
}

func NewWebhookHandler(reconciler Reconciler, resolver appointment.ScopeResolver, cfg WebhookConfig) *WebhookHandler {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{
		reconciler: reconciler,
		resolver:   resolver,
		cfg:        cfg,
		tracer:     telemetry.Tracer(),
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "webhook.receive")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(ctx, "webhook panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			span.SetStatus(codes.Error, "panic")
			writeError(w, http.StatusInternalServerError, msgWebhookFailed)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logging.Warn(ctx, "webhook body too large", slog.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return
		}
		h.fail(ctx, w, span, "read webhook body", err)
		return
	}

	if h.cfg.Secret != "" && !validSignature(h.cfg.Secret, body, r.Header.Get(SignatureHeader)) {
		logging.Warn(ctx, "webhook signature mismatch")
		span.SetStatus(codes.Error, "invalid signature")
		writeError(w, http.StatusUnauthorized, msgInvalidSignature)
		return
	}

	ev, err := intake.Decode(body)
	if err != nil {
		h.fail(ctx, w, span, "decode webhook", err)
		return
	}
	span.SetAttributes(attribute.String("event.kind", string(ev.Kind())))
	ctx = logging.WithAttrs(ctx, slog.String("event_kind", string(ev.Kind())))

	ctx, cancel := context.WithTimeout(ctx, h.cfg.EventTimeout)
	defer cancel()

	scope, err := h.resolver.Resolve(ctx, ev)
	if err != nil {
		h.handleError(ctx, w, span, err)
		return
	}
	span.SetAttributes(attribute.String("clinic.id", scope.ID.String()))
	ctx = logging.WithAttrs(ctx, slog.String("clinic_id", scope.ID.String()))

	res, err := h.reconciler.Apply(ctx, scope, ev)
	if err != nil {
		h.handleError(ctx, w, span, err)
		return
	}

	span.SetAttributes(attribute.Int64("appointments.completed", res.CompletedAppointments))
	writeJSON(w, http.StatusOK, WebhookResponse{Success: true})
}

// handleError maps pipeline errors to responses. A deadline is always a 500:
// the event may be partially unseen and is safe to resend.
func (h *WebhookHandler) handleError(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.fail(ctx, w, span, "webhook timed out", err)
	case errors.Is(err, appointment.ErrScopeNotFound):
		logging.Warn(ctx, "webhook without clinic", logging.Err(err))
		span.SetStatus(codes.Error, "clinic not found")
		writeError(w, http.StatusBadRequest, msgClinicNotFound)
	case errors.Is(err, appointment.ErrPersistence) && !h.cfg.StrictPersistence:
		logging.Error(ctx, "webhook persistence failure acknowledged", logging.Err(err))
		span.RecordError(err)
		writeJSON(w, http.StatusOK, WebhookResponse{Success: true})
	default:
		h.fail(ctx, w, span, "webhook failed", err)
	}
}

func (h *WebhookHandler) fail(ctx context.Context, w http.ResponseWriter, span trace.Span, msg string, err error) {
	logging.Error(ctx, msg, logging.Err(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	writeError(w, http.StatusInternalServerError, msgWebhookFailed)
}

// Sign returns the hex HMAC-SHA256 of body under secret, the value expected
// in X-Auth-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, body)))
}
