package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docpoint/booking-platform/internal/availability"
	"github.com/docpoint/booking-platform/internal/clock"
	"github.com/docpoint/booking-platform/internal/observability/metrics"
	"github.com/docpoint/booking-platform/internal/scheduling"
	"github.com/docpoint/booking-platform/pkg/logging"
)

var apptTracer = otel.Tracer("docpoint.internal.appointments")

// Repo is the persistence surface the service needs.
type Repo interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	Approve(ctx context.Context, id, doctorID uuid.UUID, paymentExpiresAt time.Time) (*Appointment, error)
	Reject(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error)
}

// WindowSource resolves a doctor's active availability window for a weekday.
type WindowSource interface {
	ActiveWindow(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*availability.Entry, error)
}

// Service is the booking coordinator and doctor-decision side of the
// appointment state machine.
type Service struct {
	repo     Repo
	windows  WindowSource
	clk      clock.Clock
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService constructs an appointment service.
func NewService(repo Repo, windows WindowSource, clk clock.Clock, notifier Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if windows == nil {
		panic("appointments: availability source required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, windows: windows, clk: clk, notifier: notifier, metrics: m, logger: logger}
}

// Slots recomputes the bookable slot sheet for a doctor on a calendar date.
// No availability window means an empty sheet, not an error.
func (s *Service) Slots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	year, month, day := date.In(clock.ClinicZone).Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, clock.ClinicZone)
	dayEnd := dayStart.AddDate(0, 0, 1)

	window, err := s.windows.ActiveWindow(ctx, doctorID, dayStart.Weekday())
	if err != nil {
		if errors.Is(err, availability.ErrNoWindow) {
			return []scheduling.Slot{}, nil
		}
		return nil, err
	}

	active, err := s.repo.ListActiveBetween(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	busy := make([]scheduling.Interval, 0, len(active))
	for i := range active {
		busy = append(busy, scheduling.Interval{Start: active[i].StartsAt, End: active[i].EndsAt()})
	}

	return scheduling.Generate(dayStart, window.StartTime, window.EndTime, busy, s.clk.Now())
}

// Book validates the desired slot against a fresh computation at write time
// and creates a pending appointment. "Slot vanished between read and write"
// is an expected condition surfaced as ErrSlotUnavailable, with the insert
// guard and the exclusion constraint as the authoritative checks.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, start time.Time) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("docpoint.doctor_id", doctorID.String()),
		attribute.String("docpoint.patient_id", patientID.String()),
	)

	slots, err := s.Slots(ctx, doctorID, start)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	slot, ok := scheduling.Find(slots, start)
	if !ok {
		s.metrics.ObserveBooking("off_grid")
		return nil, ErrSlotUnavailable
	}
	if !slot.Available {
		switch slot.Reason {
		case scheduling.ReasonPast, scheduling.ReasonLeadTime:
			s.metrics.ObserveBooking("lead_time")
			return nil, ErrLeadTimeViolation
		default:
			s.metrics.ObserveBooking("unavailable")
			return nil, ErrSlotUnavailable
		}
	}

	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       patientID,
		DoctorID:        doctorID,
		StartsAt:        start.In(clock.ClinicZone),
		DurationMinutes: DefaultDurationMinutes,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			s.metrics.ObserveBooking("lost_race")
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveBooking("created")
	s.logger.Info("appointment requested",
		"appointment_id", appt.ID, "doctor_id", doctorID, "patient_id", patientID, "starts_at", appt.StartsAt)
	s.notify(ctx, appt, s.notifierRequested)
	return appt, nil
}

// Decide applies a doctor's approve/reject to a pending appointment.
// Approval opens the payment initiation window.
func (s *Service) Decide(ctx context.Context, doctorID, apptID uuid.UUID, target Status) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.decide")
	defer span.End()
	span.SetAttributes(attribute.String("docpoint.appointment_id", apptID.String()))

	var appt *Appointment
	var err error
	switch target {
	case StatusApproved:
		expires := s.clk.Now().Add(InitiationWindow)
		appt, err = s.repo.Approve(ctx, apptID, doctorID, expires)
	case StatusRejected:
		appt, err = s.repo.Reject(ctx, apptID, doctorID)
	default:
		return nil, ErrInvalidTransition
	}
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, s.refineDecideError(ctx, doctorID, apptID)
		}
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTransition(string(target), "doctor")
	s.logger.Info("appointment decided", "appointment_id", apptID, "status", target)
	if target == StatusApproved {
		s.notify(ctx, appt, s.notifierApproved)
	} else {
		s.notify(ctx, appt, s.notifierRejected)
	}
	return appt, nil
}

// refineDecideError distinguishes "not yours / missing" from "double
// click": both surface as zero matched rows on the conditional update.
func (s *Service) refineDecideError(ctx context.Context, doctorID, apptID uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return ErrNotFound
	}
	if existing.DoctorID != doctorID {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

type notifyFunc func(ctx context.Context, appt *Appointment) error

func (s *Service) notifierRequested(ctx context.Context, appt *Appointment) error {
	return s.notifier.AppointmentRequested(ctx, appt)
}

func (s *Service) notifierApproved(ctx context.Context, appt *Appointment) error {
	return s.notifier.AppointmentApproved(ctx, appt)
}

func (s *Service) notifierRejected(ctx context.Context, appt *Appointment) error {
	return s.notifier.AppointmentRejected(ctx, appt)
}

// notify delivers a notification without letting failures reach the caller:
// the state transition has already committed.
func (s *Service) notify(ctx context.Context, appt *Appointment, fn notifyFunc) {
	if s.notifier == nil {
		return
	}
	if err := fn(ctx, appt); err != nil {
		s.logger.Warn("notification delivery failed", "appointment_id", appt.ID, "error", err)
	}
}
