package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/docpoint/booking-platform/internal/appointments"
	"github.com/docpoint/booking-platform/internal/clock"
	"github.com/docpoint/booking-platform/pkg/logging"
)

const timeFormat = "Mon, 02 Jan 2006 at 15:04"

// Service delivers appointment lifecycle notifications over email. It
// implements appointments.Notifier; callers treat delivery as best effort.
type Service struct {
	email     EmailSender
	directory Directory
	logger    *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, directory Directory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{email: email, directory: directory, logger: logger}
}

// AppointmentRequested tells the doctor a new request is waiting.
func (s *Service) AppointmentRequested(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt.DoctorID,
		"New appointment request",
		fmt.Sprintf("A patient has requested an appointment on %s. Please approve or reject it.",
			formatStart(appt)))
}

// AppointmentApproved tells the patient to pay within the initiation window.
func (s *Service) AppointmentApproved(ctx context.Context, appt *appointments.Appointment) error {
	body := fmt.Sprintf("Your appointment on %s has been approved.", formatStart(appt))
	if appt.PaymentExpiresAt != nil {
		body += fmt.Sprintf(" Complete the consultation fee payment by %s to confirm it.",
			appt.PaymentExpiresAt.In(clock.ClinicZone).Format(timeFormat))
	}
	return s.send(ctx, appt.PatientID, "Appointment approved", body)
}

// AppointmentRejected tells the patient their request was declined.
func (s *Service) AppointmentRejected(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt.PatientID,
		"Appointment request declined",
		fmt.Sprintf("Your appointment request for %s was declined. Please pick another slot.",
			formatStart(appt)))
}

// AppointmentConfirmed tells both parties the booking is final.
func (s *Service) AppointmentConfirmed(ctx context.Context, appt *appointments.Appointment) error {
	start := formatStart(appt)
	patientErr := s.send(ctx, appt.PatientID, "Appointment confirmed",
		fmt.Sprintf("Payment received. Your appointment on %s is confirmed.", start))
	doctorErr := s.send(ctx, appt.DoctorID, "Appointment confirmed",
		fmt.Sprintf("The appointment on %s is paid and confirmed.", start))
	if patientErr != nil {
		return patientErr
	}
	return doctorErr
}

// AppointmentCancelled tells the patient the approval lapsed unpaid.
func (s *Service) AppointmentCancelled(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt.PatientID,
		"Appointment cancelled",
		fmt.Sprintf("Your appointment on %s was cancelled because payment was not completed in time.",
			formatStart(appt)))
}

// AppointmentReminder reminds the patient of an upcoming confirmed session.
func (s *Service) AppointmentReminder(ctx context.Context, appt *appointments.Appointment) error {
	return s.send(ctx, appt.PatientID,
		"Appointment reminder",
		fmt.Sprintf("Reminder: your appointment is on %s.", formatStart(appt)))
}

func (s *Service) send(ctx context.Context, userID uuid.UUID, subject, body string) error {
	if s.directory == nil {
		s.logger.Debug("notify: directory not configured, skipping", "subject", subject)
		return nil
	}
	contact, err := s.directory.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify: resolve %s: %w", userID, err)
	}
	return s.email.Send(ctx, EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		Body:    body,
	})
}

func formatStart(appt *appointments.Appointment) string {
	return appt.StartsAt.In(clock.ClinicZone).Format(timeFormat)
}

var _ appointments.Notifier = (*Service)(nil)
