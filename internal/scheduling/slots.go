package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docpoint/booking-platform/internal/clock"
)

const (
	// SlotDuration is the fixed width of every bookable slot.
	SlotDuration = 30 * time.Minute

	// LeadTime is the minimum notice between booking and appointment start.
	// A slot starting exactly LeadTime from now is still bookable; only
	// starts strictly inside the window are blocked.
	LeadTime = 24 * time.Hour
)

// Reason explains why a slot cannot be booked. Empty means available.
type Reason string

const (
	ReasonPast     Reason = "past"
	ReasonLeadTime Reason = "lead_time"
	ReasonBooked   Reason = "booked"
)

// Slot is a derived candidate start time. It is never persisted; it is
// recomputed from the weekly schedule and live appointments on every read.
type Slot struct {
	Start     time.Time `json:"start_time"`
	Available bool      `json:"is_available"`
	Reason    Reason    `json:"unavailability_reason,omitempty"`
}

// Interval is a half-open busy interval [Start, End) held by a
// non-terminal appointment.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the half-open intervals intersect.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && end.After(iv.Start)
}

// ParseClockTime parses an "HH:MM" local clock time into minutes from
// midnight.
func ParseClockTime(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("scheduling: malformed clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("scheduling: bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: bad minute in %q", s)
	}
	return h*60 + m, nil
}

// Generate steps through the availability window [startTime, endTime) on the
// given calendar date in SlotDuration increments and classifies every
// candidate. A trailing partial increment is discarded. Checks run in
// priority order (past, lead_time, booked) so that a past-due slot is never
// mislabeled booked. All calendar math happens in clock.ClinicZone.
func Generate(date time.Time, startTime, endTime string, busy []Interval, now time.Time) ([]Slot, error) {
	startMin, err := ParseClockTime(startTime)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClockTime(endTime)
	if err != nil {
		return nil, err
	}
	if startMin >= endMin {
		return nil, fmt.Errorf("scheduling: window start %s not before end %s", startTime, endTime)
	}

	year, month, day := date.In(clock.ClinicZone).Date()
	windowStart := time.Date(year, month, day, 0, 0, 0, 0, clock.ClinicZone).
		Add(time.Duration(startMin) * time.Minute)
	windowEnd := time.Date(year, month, day, 0, 0, 0, 0, clock.ClinicZone).
		Add(time.Duration(endMin) * time.Minute)

	var slots []Slot
	for cur := windowStart; !cur.Add(SlotDuration).After(windowEnd); cur = cur.Add(SlotDuration) {
		slots = append(slots, classify(cur, busy, now))
	}
	return slots, nil
}

func classify(start time.Time, busy []Interval, now time.Time) Slot {
	end := start.Add(SlotDuration)

	if start.Before(now) {
		return Slot{Start: start, Reason: ReasonPast}
	}
	if start.Before(now.Add(LeadTime)) {
		return Slot{Start: start, Reason: ReasonLeadTime}
	}
	for _, iv := range busy {
		if iv.Overlaps(start, end) {
			return Slot{Start: start, Reason: ReasonBooked}
		}
	}
	return Slot{Start: start, Available: true}
}

// Find returns the slot starting exactly at start, if the generated sheet
// contains one.
func Find(slots []Slot, start time.Time) (Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}
