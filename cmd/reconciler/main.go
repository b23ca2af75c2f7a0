package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/clock"
	appconfig "github.com/docpoint/booking-platform/internal/config"
	"github.com/docpoint/booking-platform/internal/events"
	"github.com/docpoint/booking-platform/internal/notify"
	"github.com/docpoint/booking-platform/internal/observability/metrics"
	"github.com/docpoint/booking-platform/internal/reconcile"
	"github.com/docpoint/booking-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform reconciler",
		"env", cfg.Env,
		"schedule", cfg.ReconcileSchedule,
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

	apptRepo := appointments.NewRepository(pool)
	processedStore := events.NewProcessedStore(pool)
	directory := notify.NewPGDirectory(pool)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger.Component("sendgrid")); sg != nil {
		sender = sg
	}
	notifier := notify.NewService(sender, directory, logger.Component("notify"))

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)
	sweeper := reconcile.NewSweeper(apptRepo, processedStore, clock.System(), notifier, sweepMetrics, logger.Component("reconcile"))

	runOnce := func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := sweeper.Run(runCtx); err != nil {
			logger.Error("sweep run failed", "error", err)
		}
	}

	// One run at startup so a stalled backlog never waits for the schedule.
	runOnce()

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReconcileSchedule, runOnce); err != nil {
		logger.Error("invalid reconcile schedule", "schedule", cfg.ReconcileSchedule, "error", err)
		os.Exit(1)
	}
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("stopping reconciler...")
	<-c.Stop().Done()
	logger.Info("reconciler stopped")
}
