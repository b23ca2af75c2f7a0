package availability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/docpoint/booking-platform/internal/http/middleware"
	"github.com/docpoint/booking-platform/pkg/logging"
)

// Handler exposes a doctor's weekly availability over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

type entryRequest struct {
	Weekday   int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Active    *bool  `json:"is_active"`
}

type replaceRequest struct {
	Entries []entryRequest `json:"availability"`
}

// List handles GET /doctors/{doctorID}/availability.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	entries, err := h.store.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("availability list failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"availability": entries})
}

// Replace handles PUT /doctors/{doctorID}/availability. Only the doctor may
// replace their own schedule, and the whole week is replaced in one call.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmiddleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}
	if id.UserID != doctorID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	entries := make([]Entry, 0, len(req.Entries))
	seen := make(map[time.Weekday]bool, len(req.Entries))
	for _, e := range req.Entries {
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		entry := Entry{
			DoctorID:  doctorID,
			Weekday:   time.Weekday(e.Weekday),
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Active:    active,
		}
		if err := entry.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if seen[entry.Weekday] {
			http.Error(w, "duplicate day_of_week", http.StatusUnprocessableEntity)
			return
		}
		seen[entry.Weekday] = true
		entries = append(entries, entry)
	}

	if err := h.store.Replace(r.Context(), doctorID, entries); err != nil {
		h.logger.Error("availability replace failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to save availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"availability": entries})
}
