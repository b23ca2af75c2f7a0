package reconcile

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/docpoint/booking-platform/pkg/logging"
)

// Handler exposes a manual sweep trigger for operators. The cron runner is
// the normal driver; this endpoint exists for incident response.
type Handler struct {
	sweeper *Sweeper
	token   string
	logger  *logging.Logger
}

// NewHandler creates a reconcile handler guarded by a shared token.
func NewHandler(sweeper *Sweeper, token string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sweeper: sweeper, token: token, logger: logger}
}

// Run handles POST /internal/reconcile.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		http.Error(w, "reconcile trigger disabled", http.StatusNotFound)
		return
	}
	got := r.Header.Get("X-Reconcile-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	counts, err := h.sweeper.Run(r.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", "error", err)
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(counts)
}
