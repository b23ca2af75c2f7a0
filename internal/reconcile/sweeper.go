package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/clock"
	"github.com/docpoint/booking-platform/internal/observability/metrics"
	"github.com/docpoint/booking-platform/pkg/logging"
)

var sweepTracer = otel.Tracer("docpoint.internal.reconcile")

const (
	// ReminderLead is how far ahead of the start time reminders go out.
	ReminderLead = 24 * time.Hour

	// EventRetention is how long processed webhook dedupe rows are kept.
	EventRetention = 30 * 24 * time.Hour
)

// Repo is the appointment persistence surface the sweep needs. Every
// candidate found by a List call is settled with its own conditional update,
// so a concurrent webhook or doctor action wins cleanly.
type Repo interface {
	ListApprovedExpired(ctx context.Context, asOf time.Time) ([]appointments.Appointment, error)
	ExpireApproval(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]appointments.Appointment, error)
	RejectStale(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error)
	ListConfirmedFinished(ctx context.Context, asOf time.Time) ([]appointments.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error)
	ListConfirmedUpcoming(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// EventPurger trims the webhook dedupe table.
type EventPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Counts reports what one sweep run settled.
type Counts struct {
	ExpiredApprovals int `json:"expired_approvals"`
	RejectedStale    int `json:"rejected_stale"`
	Completed        int `json:"completed"`
	Reminders        int `json:"reminders"`
	PurgedEvents     int `json:"purged_events"`
}

// Sweeper settles appointments the hot path left behind: approvals that were
// never paid, requests no doctor answered, sessions that finished, and
// reminders that are due.
type Sweeper struct {
	repo     Repo
	purger   EventPurger
	clk      clock.Clock
	notifier appointments.Notifier
	metrics  *metrics.SweepMetrics
	logger   *logging.Logger
}

// NewSweeper constructs a sweeper.
func NewSweeper(repo Repo, purger EventPurger, clk clock.Clock, notifier appointments.Notifier, m *metrics.SweepMetrics, logger *logging.Logger) *Sweeper {
	if repo == nil {
		panic("reconcile: repository required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{repo: repo, purger: purger, clk: clk, notifier: notifier, metrics: m, logger: logger}
}

// Run executes one full sweep. Individual item failures are logged and
// skipped; the next run retries them. The returned error covers only list
// queries that prevented a phase from running at all.
func (s *Sweeper) Run(ctx context.Context) (Counts, error) {
	ctx, span := sweepTracer.Start(ctx, "reconcile.run")
	defer span.End()

	started := s.clk.Now()
	var counts Counts
	var firstErr error

	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil {
			span.RecordError(err)
		}
	}

	record(s.expireApprovals(ctx, started, &counts))
	record(s.rejectStale(ctx, started, &counts))
	record(s.completeFinished(ctx, started, &counts))
	record(s.sendReminders(ctx, started, &counts))
	record(s.purgeEvents(ctx, started, &counts))

	s.metrics.ObserveRun(time.Since(started).Seconds())
	s.logger.Info("sweep finished",
		"expired_approvals", counts.ExpiredApprovals,
		"rejected_stale", counts.RejectedStale,
		"completed", counts.Completed,
		"reminders", counts.Reminders,
		"purged_events", counts.PurgedEvents,
		"duration", time.Since(started))
	return counts, firstErr
}

func (s *Sweeper) expireApprovals(ctx context.Context, now time.Time, counts *Counts) error {
	due, err := s.repo.ListApprovedExpired(ctx, now)
	if err != nil {
		s.logger.Error("sweep: list expired approvals failed", "error", err)
		return err
	}
	for i := range due {
		appt := due[i]
		applied, err := s.repo.ExpireApproval(ctx, appt.ID, now)
		if err != nil {
			s.metrics.ObserveItem("expire_approval", "error")
			s.logger.Error("sweep: expire approval failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !applied {
			// Payment landed between list and update.
			s.metrics.ObserveItem("expire_approval", "skipped")
			continue
		}
		counts.ExpiredApprovals++
		s.metrics.ObserveItem("expire_approval", "applied")
		s.logger.Info("sweep: approval expired unpaid", "appointment_id", appt.ID)
		s.notifyCancelled(ctx, &appt)
	}
	return nil
}

func (s *Sweeper) rejectStale(ctx context.Context, now time.Time, counts *Counts) error {
	cutoff := now.Add(-appointments.StalePendingAfter)
	due, err := s.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: list stale pending failed", "error", err)
		return err
	}
	for i := range due {
		appt := due[i]
		applied, err := s.repo.RejectStale(ctx, appt.ID, cutoff)
		if err != nil {
			s.metrics.ObserveItem("reject_stale", "error")
			s.logger.Error("sweep: reject stale failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !applied {
			s.metrics.ObserveItem("reject_stale", "skipped")
			continue
		}
		counts.RejectedStale++
		s.metrics.ObserveItem("reject_stale", "applied")
		s.logger.Info("sweep: stale request rejected", "appointment_id", appt.ID)
		s.notifyRejected(ctx, &appt)
	}
	return nil
}

func (s *Sweeper) completeFinished(ctx context.Context, now time.Time, counts *Counts) error {
	due, err := s.repo.ListConfirmedFinished(ctx, now)
	if err != nil {
		s.logger.Error("sweep: list finished failed", "error", err)
		return err
	}
	for i := range due {
		appt := due[i]
		applied, err := s.repo.Complete(ctx, appt.ID, now)
		if err != nil {
			s.metrics.ObserveItem("complete", "error")
			s.logger.Error("sweep: complete failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !applied {
			s.metrics.ObserveItem("complete", "skipped")
			continue
		}
		counts.Completed++
		s.metrics.ObserveItem("complete", "applied")
	}
	return nil
}

func (s *Sweeper) sendReminders(ctx context.Context, now time.Time, counts *Counts) error {
	due, err := s.repo.ListConfirmedUpcoming(ctx, now, now.Add(ReminderLead))
	if err != nil {
		s.logger.Error("sweep: list upcoming failed", "error", err)
		return err
	}
	for i := range due {
		appt := due[i]
		// Claim the reminder first so a crashed run cannot double-send.
		applied, err := s.repo.MarkReminded(ctx, appt.ID, now)
		if err != nil {
			s.metrics.ObserveItem("reminder", "error")
			s.logger.Error("sweep: mark reminded failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !applied {
			s.metrics.ObserveItem("reminder", "skipped")
			continue
		}
		counts.Reminders++
		s.metrics.ObserveItem("reminder", "applied")
		s.notifyReminder(ctx, &appt)
	}
	return nil
}

func (s *Sweeper) purgeEvents(ctx context.Context, now time.Time, counts *Counts) error {
	if s.purger == nil {
		return nil
	}
	n, err := s.purger.PurgeOlderThan(ctx, now.Add(-EventRetention))
	if err != nil {
		s.logger.Error("sweep: purge processed events failed", "error", err)
		return err
	}
	counts.PurgedEvents = int(n)
	return nil
}

func (s *Sweeper) notifyCancelled(ctx context.Context, appt *appointments.Appointment) {
	if s.notifier == nil {
		return
	}
	s.logNotifyErr(appt, s.notifier.AppointmentCancelled(ctx, appt))
}

func (s *Sweeper) notifyRejected(ctx context.Context, appt *appointments.Appointment) {
	if s.notifier == nil {
		return
	}
	s.logNotifyErr(appt, s.notifier.AppointmentRejected(ctx, appt))
}

func (s *Sweeper) notifyReminder(ctx context.Context, appt *appointments.Appointment) {
	if s.notifier == nil {
		return
	}
	s.logNotifyErr(appt, s.notifier.AppointmentReminder(ctx, appt))
}

func (s *Sweeper) logNotifyErr(appt *appointments.Appointment, err error) {
	if err != nil {
		s.logger.Warn("sweep: notification delivery failed", "appointment_id", appt.ID, "error", err)
	}
}
