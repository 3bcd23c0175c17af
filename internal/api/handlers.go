package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/vantive/internal/appointment"
	"github.com/hackgods/vantive/internal/logging"
	redisclient "github.com/hackgods/vantive/internal/redis"
)

// AppointmentReader is the read side of the appointment service.
type AppointmentReader interface {
	ListAppointments(ctx context.Context, scope *appointment.Scope, c appointment.Classification, limit, offset int) ([]appointment.ClassifiedAppointment, error)
	GetAppointment(ctx context.Context, scope *appointment.Scope, externalID string) (*appointment.ClassifiedAppointment, error)
}

// SummaryLoader returns the last published overdue summary of a clinic.
type SummaryLoader interface {
	LoadOverdueSummary(ctx context.Context, scopeID uuid.UUID) (*appointment.OverdueSummary, error)
}

func listAppointmentsHandler(reader AppointmentReader, resolver appointment.ScopeResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		class, err := appointment.ParseClassification(q.Get("status"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "status must be completed, overdue or pending")
			return
		}
		limit, ok := queryInt(q.Get("limit"))
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		offset, ok := queryInt(q.Get("offset"))
		if !ok {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}

		limit, offset = appointment.NormalizePage(limit, offset)

		scope, err := resolver.Resolve(r.Context(), nil)
		if err != nil {
			handleReadError(w, r, err)
			return
		}

		appts, err := reader.ListAppointments(r.Context(), scope, class, limit, offset)
		if err != nil {
			handleReadError(w, r, err)
			return
		}

		resp := ListAppointmentsResponse{
			Items:  make([]AppointmentResponse, 0, len(appts)),
			Limit:  limit,
			Offset: offset,
		}
		for _, a := range appts {
			resp.Items = append(resp.Items, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(reader AppointmentReader, resolver appointment.ScopeResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := chi.URLParam(r, "externalID")

		scope, err := resolver.Resolve(r.Context(), nil)
		if err != nil {
			handleReadError(w, r, err)
			return
		}

		a, err := reader.GetAppointment(r.Context(), scope, externalID)
		if err != nil {
			handleReadError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*a))
	}
}

func overdueSummaryHandler(summaries SummaryLoader, resolver appointment.ScopeResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if summaries == nil {
			writeError(w, http.StatusNotFound, "Overdue summary not available")
			return
		}

		scope, err := resolver.Resolve(r.Context(), nil)
		if err != nil {
			handleReadError(w, r, err)
			return
		}

		summary, err := summaries.LoadOverdueSummary(r.Context(), scope.ID)
		if err != nil {
			handleReadError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func handleReadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrScopeNotFound):
		writeError(w, http.StatusNotFound, "Clinic not found")
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "Appointment not found")
	case errors.Is(err, redisclient.ErrSummaryNotFound):
		writeError(w, http.StatusNotFound, "Overdue summary not available")
	default:
		logging.Error(r.Context(), "read request failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func queryInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
