package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docpoint/booking-platform/internal/appointments"
	httpmiddleware "github.com/docpoint/booking-platform/internal/http/middleware"
	"github.com/docpoint/booking-platform/pkg/logging"
)

// Handler exposes checkout initiation over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a payments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// StartCheckout handles POST /appointments/{id}/checkout for the owning
// patient.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
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

	sess, err := h.service.StartCheckout(r.Context(), id.UserID, apptID)
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyPaid):
			http.Error(w, "appointment already paid", http.StatusConflict)
		case errors.Is(err, ErrNotPayable):
			http.Error(w, "appointment is not awaiting payment", http.StatusConflict)
		case errors.Is(err, ErrWindowExpired):
			http.Error(w, "payment window has expired", http.StatusGone)
		default:
			h.logger.Error("checkout failed", "error", err, "appointment_id", apptID)
			http.Error(w, "failed to start checkout", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(checkoutResponse{SessionID: sess.ID, RedirectURL: sess.URL})
}
