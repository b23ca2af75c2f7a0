package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/clock"
	"github.com/docpoint/booking-platform/internal/observability/metrics"
	"github.com/docpoint/booking-platform/pkg/logging"
)

// CompletionWindow is how long a patient has to finish paying once a
// checkout session is opened.
const CompletionWindow = 30 * time.Minute

var (
	// ErrNotPayable means the appointment is not in the approved state.
	ErrNotPayable = errors.New("payments: appointment not awaiting payment")
	// ErrAlreadyPaid means payment already completed for the appointment.
	ErrAlreadyPaid = errors.New("payments: appointment already paid")
	// ErrWindowExpired means the payment initiation window has closed.
	ErrWindowExpired = errors.New("payments: payment window expired")
)

// Repo is the appointment persistence surface the payment flow needs.
type Repo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	MarkPaymentPending(ctx context.Context, id uuid.UUID, sessionRef string) (*appointments.Appointment, error)
	ConfirmBySessionRef(ctx context.Context, sessionRef string) (*appointments.Appointment, error)
	FailPaymentBySessionRef(ctx context.Context, sessionRef string) (*appointments.Appointment, error)
	GetBySessionRef(ctx context.Context, sessionRef string) (*appointments.Appointment, error)
}

// Service runs the payment side of the appointment lifecycle: opening
// checkout sessions inside the initiation window and applying provider
// events to the state machine.
type Service struct {
	repo        Repo
	checkout    SessionCreator
	clk         clock.Clock
	notifier    appointments.Notifier
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
	amountCents int64
	currency    string
}

// NewService constructs a payment service.
func NewService(repo Repo, checkout SessionCreator, clk clock.Clock, notifier appointments.Notifier, m *metrics.BookingMetrics, logger *logging.Logger, amountCents int64, currency string) *Service {
	if repo == nil {
		panic("payments: repository required")
	}
	if checkout == nil {
		panic("payments: session creator required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:        repo,
		checkout:    checkout,
		clk:         clk,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		amountCents: amountCents,
		currency:    currency,
	}
}

// StartCheckout opens a checkout session for an approved appointment owned by
// the patient. Retrying after a failed or abandoned session is allowed while
// the initiation window lasts; each retry gets a fresh session.
func (s *Service) StartCheckout(ctx context.Context, patientID, apptID uuid.UUID) (*Session, error) {
	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, appointments.ErrNotFound
	}
	if appt.PaymentStatus == appointments.PaymentCompleted {
		return nil, ErrAlreadyPaid
	}
	if appt.Status != appointments.StatusApproved {
		return nil, ErrNotPayable
	}
	now := s.clk.Now()
	if appt.PaymentExpiresAt != nil && now.After(*appt.PaymentExpiresAt) {
		return nil, ErrWindowExpired
	}

	sess, err := s.checkout.CreateSession(ctx, SessionParams{
		AppointmentID: apptID,
		AmountCents:   s.amountCents,
		Currency:      s.currency,
		Description:   "Consultation fee",
		ExpiresAt:     now.Add(CompletionWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("payments: create session: %w", err)
	}

	if _, err := s.repo.MarkPaymentPending(ctx, apptID, sess.ID); err != nil {
		// The approval was revoked between the read and the write.
		if errors.Is(err, appointments.ErrInvalidTransition) {
			return nil, ErrNotPayable
		}
		return nil, err
	}

	s.logger.Info("checkout session opened",
		"appointment_id", apptID, "session_id", sess.ID, "amount_cents", s.amountCents)
	return sess, nil
}

// ConfirmSession applies a provider "payment completed" event. Redeliveries
// and late completions (the sweep already cancelled the appointment) are
// acknowledged, not failed: the provider will keep retrying anything else.
func (s *Service) ConfirmSession(ctx context.Context, sessionRef string) error {
	appt, err := s.repo.ConfirmBySessionRef(ctx, sessionRef)
	if err != nil {
		if !errors.Is(err, appointments.ErrInvalidTransition) {
			return err
		}
		existing, getErr := s.repo.GetBySessionRef(ctx, sessionRef)
		if getErr != nil {
			if errors.Is(getErr, appointments.ErrNotFound) {
				s.logger.Warn("payment completed for unknown session", "session_ref", sessionRef)
				return nil
			}
			return getErr
		}
		if existing.Status == appointments.StatusConfirmed {
			return nil
		}
		s.logger.Warn("payment completed after appointment left approved state",
			"appointment_id", existing.ID, "status", existing.Status, "session_ref", sessionRef)
		return nil
	}

	s.metrics.ObserveTransition(string(appointments.StatusConfirmed), "webhook")
	s.logger.Info("appointment confirmed", "appointment_id", appt.ID, "session_ref", sessionRef)
	if s.notifier != nil {
		if err := s.notifier.AppointmentConfirmed(ctx, appt); err != nil {
			s.logger.Warn("notification delivery failed", "appointment_id", appt.ID, "error", err)
		}
	}
	return nil
}

// ExpireSession applies a provider "session expired" event. Only the payment
// status moves to failed; the appointment stays approved so the patient can
// retry until the initiation window closes and the sweep cancels it.
func (s *Service) ExpireSession(ctx context.Context, sessionRef string) error {
	appt, err := s.repo.FailPaymentBySessionRef(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, appointments.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	s.logger.Info("checkout session expired",
		"appointment_id", appt.ID, "session_ref", sessionRef)
	return nil
}
