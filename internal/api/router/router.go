package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/availability"
	httpmiddleware "github.com/docpoint/booking-platform/internal/http/middleware"
	"github.com/docpoint/booking-platform/internal/payments"
	"github.com/docpoint/booking-platform/internal/reconcile"
	"github.com/docpoint/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	AvailabilityHandler *availability.Handler
	PaymentsHandler     *payments.Handler
	StripeWebhook       *payments.StripeWebhookHandler
	ReconcileHandler    *reconcile.Handler
	MetricsHandler      http.Handler
	AuthJWTSecret       string
	CORSAllowedOrigins  []string

	// Pinger reports database reachability for the health endpoint.
	Pinger func(ctx context.Context) error
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks).
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Pinger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
		if cfg.ReconcileHandler != nil {
			public.Post("/internal/reconcile", cfg.ReconcileHandler.Run)
		}
	})

	// Authenticated API.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.UserJWT(cfg.AuthJWTSecret))

		api.Route("/doctors/{doctorID}", func(d chi.Router) {
			if cfg.AppointmentsHandler != nil {
				d.Get("/slots", cfg.AppointmentsHandler.Slots)
			}
			if cfg.AvailabilityHandler != nil {
				d.Get("/availability", cfg.AvailabilityHandler.List)
				d.With(httpmiddleware.RequireRole(httpmiddleware.RoleDoctor)).
					Put("/availability", cfg.AvailabilityHandler.Replace)
			}
		})

		api.Route("/appointments", func(a chi.Router) {
			if cfg.AppointmentsHandler != nil {
				a.With(httpmiddleware.RequireRole(httpmiddleware.RolePatient)).
					Post("/", cfg.AppointmentsHandler.Book)
				a.With(httpmiddleware.RequireRole(httpmiddleware.RoleDoctor)).
					Patch("/{id}/status", cfg.AppointmentsHandler.Decide)
			}
			if cfg.PaymentsHandler != nil {
				a.With(httpmiddleware.RequireRole(httpmiddleware.RolePatient)).
					Post("/{id}/checkout", cfg.PaymentsHandler.StartCheckout)
			}
		})
	})

	return r
}

func healthHandler(pinger func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger(ctx); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
