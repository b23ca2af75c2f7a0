package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docpoint/booking-platform/internal/api/router"
	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/availability"
	"github.com/docpoint/booking-platform/internal/clock"
	appconfig "github.com/docpoint/booking-platform/internal/config"
	"github.com/docpoint/booking-platform/internal/events"
	"github.com/docpoint/booking-platform/internal/notify"
	"github.com/docpoint/booking-platform/internal/observability/metrics"
	"github.com/docpoint/booking-platform/internal/payments"
	"github.com/docpoint/booking-platform/internal/reconcile"
	"github.com/docpoint/booking-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	sweepMetrics := metrics.NewSweepMetrics(registry)

	// Stores.
	apptRepo := appointments.NewRepository(pool)
	availStore := availability.NewStore(pool)
	processedStore := events.NewProcessedStore(pool)
	directory := notify.NewPGDirectory(pool)

	// Notifications.
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger.Component("sendgrid")); sg != nil {
		sender = sg
	}
	notifier := notify.NewService(sender, directory, logger.Component("notify"))

	// Services.
	apptService := appointments.NewService(apptRepo, availStore, clock.System(), notifier, bookingMetrics, logger.Component("appointments"))
	checkout := payments.NewStripeCheckoutService(
		cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, logger.Component("stripe"))
	paymentService := payments.NewService(apptRepo, checkout, clock.System(), notifier, bookingMetrics,
		logger.Component("payments"), int64(cfg.ConsultationFeeCents), cfg.Currency)
	sweeper := reconcile.NewSweeper(apptRepo, processedStore, clock.System(), notifier, sweepMetrics, logger.Component("reconcile"))

	// HTTP surface.
	routerCfg := &router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(apptService, logger.Component("http")),
		AvailabilityHandler: availability.NewHandler(availStore, logger.Component("http")),
		PaymentsHandler:     payments.NewHandler(paymentService, logger.Component("http")),
		StripeWebhook: payments.NewStripeWebhookHandler(
			cfg.StripeWebhookSecret, paymentService, processedStore, bookingMetrics, logger.Component("webhooks")),
		ReconcileHandler:   reconcile.NewHandler(sweeper, cfg.ReconcileToken, logger.Component("reconcile")),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthJWTSecret:      cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Pinger:             pool.Ping,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
