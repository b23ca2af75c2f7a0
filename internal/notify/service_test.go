package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/clock"
)

type capturingSender struct {
	sent []EmailMessage
	err  error
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type mapDirectory map[uuid.UUID]Contact

func (m mapDirectory) Contact(_ context.Context, userID uuid.UUID) (*Contact, error) {
	c, ok := m[userID]
	if !ok {
		return nil, ErrNoContact
	}
	return &c, nil
}

func testAppointment() *appointments.Appointment {
	expires := time.Date(2026, 9, 7, 12, 20, 0, 0, clock.ClinicZone)
	return &appointments.Appointment{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		DoctorID:         uuid.New(),
		StartsAt:         time.Date(2026, 9, 8, 10, 0, 0, 0, clock.ClinicZone),
		DurationMinutes:  30,
		Status:           appointments.StatusApproved,
		PaymentExpiresAt: &expires,
	}
}

func TestApprovedEmailGoesToPatientWithDeadline(t *testing.T) {
	appt := testAppointment()
	sender := &capturingSender{}
	dir := mapDirectory{
		appt.PatientID: {Name: "Asha Rao", Email: "asha@example.com"},
	}
	svc := NewService(sender, dir, nil)

	require.NoError(t, svc.AppointmentApproved(context.Background(), appt))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, "Appointment approved", msg.Subject)
	assert.Contains(t, msg.Body, "Tue, 08 Sep 2026 at 10:00")
	assert.Contains(t, msg.Body, "12:20")
}

func TestRequestedEmailGoesToDoctor(t *testing.T) {
	appt := testAppointment()
	sender := &capturingSender{}
	dir := mapDirectory{
		appt.DoctorID: {Name: "Dr. Mehta", Email: "mehta@example.com"},
	}
	svc := NewService(sender, dir, nil)

	require.NoError(t, svc.AppointmentRequested(context.Background(), appt))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "mehta@example.com", sender.sent[0].To)
}

func TestConfirmedEmailsBothParties(t *testing.T) {
	appt := testAppointment()
	sender := &capturingSender{}
	dir := mapDirectory{
		appt.PatientID: {Email: "patient@example.com"},
		appt.DoctorID:  {Email: "doctor@example.com"},
	}
	svc := NewService(sender, dir, nil)

	require.NoError(t, svc.AppointmentConfirmed(context.Background(), appt))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "patient@example.com", sender.sent[0].To)
	assert.Equal(t, "doctor@example.com", sender.sent[1].To)
}

func TestMissingContactSurfacesError(t *testing.T) {
	appt := testAppointment()
	svc := NewService(&capturingSender{}, mapDirectory{}, nil)

	err := svc.AppointmentReminder(context.Background(), appt)
	assert.ErrorIs(t, err, ErrNoContact)
}

func TestNilDirectorySkipsDelivery(t *testing.T) {
	appt := testAppointment()
	sender := &capturingSender{}
	svc := NewService(sender, nil, nil)

	require.NoError(t, svc.AppointmentCancelled(context.Background(), appt))
	assert.Empty(t, sender.sent)
}
