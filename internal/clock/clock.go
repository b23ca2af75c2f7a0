package clock

import "time"

// ClinicZone is the civil-time convention for the whole scheduling engine:
// a fixed UTC+05:30 offset. Weekday mapping, day boundaries and lead-time
// comparisons must all go through this zone; mixing it with host-local time
// breaks slot correctness at day boundaries.
var ClinicZone = time.FixedZone("UTC+05:30", 5*60*60+30*60)

// Clock supplies the current instant. Services take a Clock instead of
// calling time.Now so boundary behavior can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().In(ClinicZone) }

// System returns the wall clock, reporting instants in ClinicZone.
func System() Clock { return systemClock{} }

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t.In(ClinicZone) }
