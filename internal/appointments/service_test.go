package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpoint/booking-platform/internal/availability"
	"github.com/docpoint/booking-platform/internal/clock"
	"github.com/docpoint/booking-platform/internal/scheduling"
)

type fakeRepo struct {
	created     []*Appointment
	createErr   error
	active      []Appointment
	byID        map[uuid.UUID]*Appointment
	approveErr  error
	approved    *Appointment
	approvedAt  time.Time
	rejectErr   error
	rejected    *Appointment
}

func (f *fakeRepo) Create(ctx context.Context, a *Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	a.Status = StatusPending
	a.PaymentStatus = PaymentNotInitiated
	f.created = append(f.created, a)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return f.active, nil
}

func (f *fakeRepo) Approve(ctx context.Context, id, doctorID uuid.UUID, paymentExpiresAt time.Time) (*Appointment, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approvedAt = paymentExpiresAt
	f.approved = &Appointment{ID: id, DoctorID: doctorID, Status: StatusApproved, PaymentExpiresAt: &paymentExpiresAt}
	return f.approved, nil
}

func (f *fakeRepo) Reject(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	f.rejected = &Appointment{ID: id, DoctorID: doctorID, Status: StatusRejected}
	return f.rejected, nil
}

type fakeWindows struct {
	entry *availability.Entry
	err   error
}

func (f *fakeWindows) ActiveWindow(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*availability.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entry, nil
}

type fakeNotifier struct {
	requested, approved, rejected int
}

func (f *fakeNotifier) AppointmentRequested(context.Context, *Appointment) error {
	f.requested++
	return nil
}
func (f *fakeNotifier) AppointmentApproved(context.Context, *Appointment) error {
	f.approved++
	return nil
}
func (f *fakeNotifier) AppointmentRejected(context.Context, *Appointment) error {
	f.rejected++
	return nil
}
func (f *fakeNotifier) AppointmentConfirmed(context.Context, *Appointment) error { return nil }
func (f *fakeNotifier) AppointmentCancelled(context.Context, *Appointment) error { return nil }
func (f *fakeNotifier) AppointmentReminder(context.Context, *Appointment) error  { return nil }

func allDayWindow() *availability.Entry {
	return &availability.Entry{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: "09:00",
		EndTime:   "17:00",
		Active:    true,
	}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{}
	notifier := &fakeNotifier{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), notifier, nil, nil)

	start := time.Date(2026, 9, 8, 10, 0, 0, 0, clock.ClinicZone)
	appt, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, PaymentNotInitiated, appt.PaymentStatus)
	assert.Equal(t, DefaultDurationMinutes, appt.DurationMinutes)
	assert.True(t, appt.StartsAt.Equal(start))
	require.Len(t, repo.created, 1)
	assert.Equal(t, 1, notifier.requested)
}

func TestBookExactLeadTimeBoundaryIsBookable(t *testing.T) {
	now := time.Date(2026, 9, 7, 9, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), &fakeNotifier{}, nil, nil)

	// Starts exactly LeadTime from now.
	start := now.Add(scheduling.LeadTime)
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	require.NoError(t, err)
}

func TestBookInsideLeadTimeRejected(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), &fakeNotifier{}, nil, nil)

	start := time.Date(2026, 9, 7, 10, 0, 0, 0, clock.ClinicZone)
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	assert.ErrorIs(t, err, ErrLeadTimeViolation)
	assert.Empty(t, repo.created)
}

func TestBookOffGridStartRejected(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	svc := NewService(&fakeRepo{}, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), &fakeNotifier{}, nil, nil)

	start := time.Date(2026, 9, 8, 10, 15, 0, 0, clock.ClinicZone)
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookOccupiedSlotRejected(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	start := time.Date(2026, 9, 8, 10, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{active: []Appointment{{
		StartsAt: start, DurationMinutes: 30, Status: StatusConfirmed,
	}}}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), &fakeNotifier{}, nil, nil)

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Empty(t, repo.created)
}

func TestBookLostRaceSurfacesSlotUnavailable(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{createErr: ErrSlotUnavailable}
	notifier := &fakeNotifier{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), notifier, nil, nil)

	start := time.Date(2026, 9, 8, 10, 0, 0, 0, clock.ClinicZone)
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Zero(t, notifier.requested)
}

func TestBookNoAvailabilityWindow(t *testing.T) {
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, clock.ClinicZone)
	svc := NewService(&fakeRepo{}, &fakeWindows{err: availability.ErrNoWindow}, clock.Fixed(now), &fakeNotifier{}, nil, nil)

	start := time.Date(2026, 9, 8, 10, 0, 0, 0, clock.ClinicZone)
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), start)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestSlotsEmptyWithoutWindow(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeWindows{err: availability.ErrNoWindow}, clock.System(), &fakeNotifier{}, nil, nil)

	slots, err := svc.Slots(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestDecideApproveOpensPaymentWindow(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, clock.ClinicZone)
	repo := &fakeRepo{}
	notifier := &fakeNotifier{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.Fixed(now), notifier, nil, nil)

	appt, err := svc.Decide(context.Background(), uuid.New(), uuid.New(), StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, appt.Status)
	assert.True(t, repo.approvedAt.Equal(now.Add(InitiationWindow)))
	assert.Equal(t, 1, notifier.approved)
}

func TestDecideReject(t *testing.T) {
	repo := &fakeRepo{}
	notifier := &fakeNotifier{}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.System(), notifier, nil, nil)

	appt, err := svc.Decide(context.Background(), uuid.New(), uuid.New(), StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, appt.Status)
	assert.Equal(t, 1, notifier.rejected)
}

func TestDecideUnknownTarget(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeWindows{entry: allDayWindow()}, clock.System(), &fakeNotifier{}, nil, nil)

	_, err := svc.Decide(context.Background(), uuid.New(), uuid.New(), StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecideRefinesAmbiguousFailure(t *testing.T) {
	doctorID := uuid.New()
	apptID := uuid.New()

	// Appointment exists and belongs to the doctor but is no longer pending.
	repo := &fakeRepo{
		approveErr: ErrInvalidTransition,
		byID: map[uuid.UUID]*Appointment{
			apptID: {ID: apptID, DoctorID: doctorID, Status: StatusApproved},
		},
	}
	svc := NewService(repo, &fakeWindows{entry: allDayWindow()}, clock.System(), &fakeNotifier{}, nil, nil)
	_, err := svc.Decide(context.Background(), doctorID, apptID, StatusApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Someone else's appointment reads as missing.
	_, err = svc.Decide(context.Background(), uuid.New(), apptID, StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	// Unknown id.
	_, err = svc.Decide(context.Background(), doctorID, uuid.New(), StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}
