package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docpoint/booking-platform/internal/scheduling"
)

var (
	// ErrNoWindow is returned when a doctor has no active availability for
	// a weekday. Callers treat it as "no slots", not as a failure.
	ErrNoWindow = errors.New("availability: no active window for weekday")
)

// Entry is one recurring weekly availability window for a doctor. The full
// set for a doctor is replaced wholesale on update, never patched.
type Entry struct {
	ID        uuid.UUID    `json:"id"`
	DoctorID  uuid.UUID    `json:"doctor_id"`
	Weekday   time.Weekday `json:"day_of_week"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Active    bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks clock-time format and ordering. Only active entries must
// satisfy start < end; inactive rows are tolerated as saved drafts.
func (e *Entry) Validate() error {
	if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
		return fmt.Errorf("availability: day_of_week %d out of range", e.Weekday)
	}
	start, err := scheduling.ParseClockTime(e.StartTime)
	if err != nil {
		return err
	}
	end, err := scheduling.ParseClockTime(e.EndTime)
	if err != nil {
		return err
	}
	if e.Active && start >= end {
		return fmt.Errorf("availability: start %s must precede end %s", e.StartTime, e.EndTime)
	}
	return nil
}
