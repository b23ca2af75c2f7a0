package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// exclusionViolation is the Postgres error code raised by the
// appointments_no_overlap constraint, the database-level backstop against
// double booking.
const exclusionViolation = "23P01"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments. Every mutating method is a single
// conditional statement so concurrent transitions resolve to exactly one
// winner; the loser sees ErrInvalidTransition (or ErrSlotUnavailable on
// insert) instead of corrupting state.
type Repository struct {
	db DB
}

// NewRepository creates an appointment repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const apptColumns = `id, patient_id, doctor_id, starts_at, duration_minutes, status, payment_status,
		payment_expires_at, provider_session_ref, reminder_sent_at, created_at, updated_at`

// Create inserts a pending appointment guarded by an overlap subquery: the
// row is only written when no non-terminal appointment occupies the
// interval. The gist exclusion constraint catches whatever races past it.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	a.Status = StatusPending
	a.PaymentStatus = PaymentNotInitiated

	ct, err := r.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, starts_at, duration_minutes, status, payment_status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, 'pending', 'not_initiated', $6, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $3
			  AND status IN ('pending','approved','confirmed')
			  AND starts_at < $4::timestamptz + make_interval(mins => $5)
			  AND starts_at + make_interval(mins => duration_minutes) > $4
		)`,
		a.ID, a.PatientID, a.DoctorID, a.StartsAt, a.DurationMinutes, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// GetByID fetches one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// ListActiveBetween returns the doctor's non-terminal appointments whose
// occupied interval intersects [from, to).
func (r *Repository) ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('pending','approved','confirmed')
		  AND starts_at < $3
		  AND starts_at + make_interval(mins => duration_minutes) > $2
		ORDER BY starts_at ASC`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list active: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Approve moves pending -> approved for the owning doctor and opens the
// payment initiation window.
func (r *Repository) Approve(ctx context.Context, id, doctorID uuid.UUID, paymentExpiresAt time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'approved', payment_expires_at = $3, updated_at = now()
		WHERE id = $1 AND doctor_id = $2 AND status = 'pending'
		RETURNING `+apptColumns, id, doctorID, paymentExpiresAt)
	return scanTransition(row)
}

// Reject moves pending -> rejected for the owning doctor.
func (r *Repository) Reject(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND doctor_id = $2 AND status = 'pending'
		RETURNING `+apptColumns, id, doctorID)
	return scanTransition(row)
}

// MarkPaymentPending records an opened checkout session on a still-approved
// appointment.
func (r *Repository) MarkPaymentPending(ctx context.Context, id uuid.UUID, sessionRef string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'pending', provider_session_ref = $2, updated_at = now()
		WHERE id = $1 AND status = 'approved' AND payment_status <> 'completed'
		RETURNING `+apptColumns, id, sessionRef)
	return scanTransition(row)
}

// ConfirmBySessionRef applies the provider's completion event:
// approved -> confirmed, payment completed. Zero rows means the transition
// was already applied or is no longer legal; callers decide which.
func (r *Repository) ConfirmBySessionRef(ctx context.Context, sessionRef string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'confirmed', payment_status = 'completed', updated_at = now()
		WHERE provider_session_ref = $1 AND status = 'approved'
		RETURNING `+apptColumns, sessionRef)
	return scanTransition(row)
}

// GetBySessionRef fetches the appointment holding a checkout session ref.
func (r *Repository) GetBySessionRef(ctx context.Context, sessionRef string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE provider_session_ref = $1`, sessionRef)
	return scanAppointment(row)
}

// FailPaymentBySessionRef applies the provider's expiry/failure event. The
// lifecycle status is untouched: the patient may retry checkout while the
// initiation window lasts.
func (r *Repository) FailPaymentBySessionRef(ctx context.Context, sessionRef string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'failed', updated_at = now()
		WHERE provider_session_ref = $1 AND status = 'approved' AND payment_status = 'pending'
		RETURNING `+apptColumns, sessionRef)
	return scanTransition(row)
}

// ListApprovedExpired returns approved-but-unpaid appointments whose
// initiation window has passed.
func (r *Repository) ListApprovedExpired(ctx context.Context, asOf time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'approved'
		  AND payment_expires_at < $1
		  AND payment_status IN ('not_initiated','pending','failed')
		ORDER BY payment_expires_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("appointments: list expired approvals: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ExpireApproval cancels one approved-but-unpaid appointment. The WHERE
// clause repeats the candidate conditions so a concurrent confirmation wins
// cleanly; the sweep just observes applied=false.
func (r *Repository) ExpireApproval(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', payment_status = 'failed', updated_at = now()
		WHERE id = $1
		  AND status = 'approved'
		  AND payment_expires_at < $2
		  AND payment_status IN ('not_initiated','pending','failed')`, id, asOf)
	if err != nil {
		return false, fmt.Errorf("appointments: expire approval: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListPendingBefore returns pending appointments created before the cutoff.
func (r *Repository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("appointments: list stale pending: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// RejectStale rejects one stale pending appointment.
func (r *Repository) RejectStale(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND created_at < $2`, id, cutoff)
	if err != nil {
		return false, fmt.Errorf("appointments: reject stale: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListConfirmedFinished returns confirmed appointments whose end time has
// passed.
func (r *Repository) ListConfirmedFinished(ctx context.Context, asOf time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND starts_at + make_interval(mins => duration_minutes) <= $1
		ORDER BY starts_at ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("appointments: list finished: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Complete marks one finished confirmed session completed.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed', updated_at = now()
		WHERE id = $1
		  AND status = 'confirmed'
		  AND starts_at + make_interval(mins => duration_minutes) <= $2`, id, asOf)
	if err != nil {
		return false, fmt.Errorf("appointments: complete: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListConfirmedUpcoming returns confirmed, not-yet-reminded appointments
// starting inside [from, to).
func (r *Repository) ListConfirmedUpcoming(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list upcoming: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminded stamps a reminder so re-runs of the sweep stay idempotent.
func (r *Repository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'confirmed' AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("appointments: mark reminded: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, paymentStatus string
	if err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.StartsAt, &a.DurationMinutes,
		&status, &paymentStatus, &a.PaymentExpiresAt, &a.ProviderSessionRef,
		&a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	a.Status = Status(status)
	a.PaymentStatus = PaymentStatus(paymentStatus)
	return &a, nil
}

// scanTransition maps "zero rows matched" on a conditional UPDATE to
// ErrInvalidTransition.
func scanTransition(row pgx.Row) (*Appointment, error) {
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidTransition
	}
	return appt, err
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		var status, paymentStatus string
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.DoctorID, &a.StartsAt, &a.DurationMinutes,
			&status, &paymentStatus, &a.PaymentExpiresAt, &a.ProviderSessionRef,
			&a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		a.Status = Status(status)
		a.PaymentStatus = PaymentStatus(paymentStatus)
		out = append(out, a)
	}
	return out, rows.Err()
}
