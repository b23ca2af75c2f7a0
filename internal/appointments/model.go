package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// PaymentStatus is the orthogonal payment sub-state; it only carries meaning
// while the appointment is approved or confirmed.
type PaymentStatus string

const (
	PaymentNotInitiated PaymentStatus = "not_initiated"
	PaymentPending      PaymentStatus = "pending"
	PaymentCompleted    PaymentStatus = "completed"
	PaymentFailed       PaymentStatus = "failed"
)

const (
	// DefaultDurationMinutes is the fixed consultation length.
	DefaultDurationMinutes = 30

	// InitiationWindow bounds how long a patient has to start checkout
	// after doctor approval.
	InitiationWindow = 20 * time.Minute

	// StalePendingAfter is how long an unanswered request may sit in
	// pending before the sweep rejects it.
	StalePendingAfter = 24 * time.Hour
)

var (
	ErrNotFound          = errors.New("appointments: not found")
	ErrInvalidTransition = errors.New("appointments: transition not allowed from current status")
	ErrSlotUnavailable   = errors.New("appointments: slot no longer available")
	ErrLeadTimeViolation = errors.New("appointments: start is within the minimum lead time")
)

// Appointment is the authoritative booking record. Rows are never deleted;
// terminal states are retained for history.
type Appointment struct {
	ID                 uuid.UUID     `json:"id"`
	PatientID          uuid.UUID     `json:"patient_id"`
	DoctorID           uuid.UUID     `json:"doctor_id"`
	StartsAt           time.Time     `json:"appointment_start"`
	DurationMinutes    int           `json:"duration_minutes"`
	Status             Status        `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentExpiresAt   *time.Time    `json:"payment_expiry_time,omitempty"`
	ProviderSessionRef *string       `json:"stripe_session_ref,omitempty"`
	ReminderSentAt     *time.Time    `json:"-"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// EndsAt is the exclusive end of the occupied interval.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Notifier is the outbound notification channel. Delivery is
// fire-and-forget: implementations may fail, callers only log.
type Notifier interface {
	AppointmentRequested(ctx context.Context, appt *Appointment) error
	AppointmentApproved(ctx context.Context, appt *Appointment) error
	AppointmentRejected(ctx context.Context, appt *Appointment) error
	AppointmentConfirmed(ctx context.Context, appt *Appointment) error
	AppointmentCancelled(ctx context.Context, appt *Appointment) error
	AppointmentReminder(ctx context.Context, appt *Appointment) error
}
