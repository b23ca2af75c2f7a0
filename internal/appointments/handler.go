package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docpoint/booking-platform/internal/clock"
	httpmiddleware "github.com/docpoint/booking-platform/internal/http/middleware"
	"github.com/docpoint/booking-platform/pkg/logging"
)

// Handler exposes the slot sheet and the appointment lifecycle over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type bookRequest struct {
	DoctorID string `json:"doctor_id"`
	Start    string `json:"appointment_start"`
}

type decideRequest struct {
	Status string `json:"status"`
}

// Slots handles GET /doctors/{doctorID}/slots?date=2006-01-02.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), clock.ClinicZone)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.service.Slots(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("slot computation failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Book handles POST /appointments for the authenticated patient.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmiddleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		http.Error(w, "invalid doctor_id", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		http.Error(w, "appointment_start must be RFC3339", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Book(r.Context(), id.UserID, doctorID, start)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Decide handles PATCH /appointments/{id}/status for the owning doctor.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmiddleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	target := Status(req.Status)
	if target != StatusApproved && target != StatusRejected {
		http.Error(w, "status must be approved or rejected", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Decide(r.Context(), id.UserID, apptID, target)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidTransition):
			http.Error(w, "appointment is not pending", http.StatusConflict)
		default:
			h.logger.Error("decision failed", "error", err, "appointment_id", apptID)
			http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLeadTimeViolation):
		http.Error(w, "slot is within the minimum booking notice", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrSlotUnavailable):
		http.Error(w, "slot is no longer available", http.StatusConflict)
	default:
		h.logger.Error("booking failed", "error", err)
		http.Error(w, "failed to book appointment", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
