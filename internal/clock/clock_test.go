package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClinicZoneOffset(t *testing.T) {
	_, offset := time.Date(2026, time.March, 2, 9, 0, 0, 0, ClinicZone).Zone()
	assert.Equal(t, 5*3600+1800, offset)
}

func TestFixedClockReportsInClinicZone(t *testing.T) {
	utc := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	now := Fixed(utc).Now()

	assert.True(t, now.Equal(utc))
	// 20:00 UTC is 01:30 the next day in clinic time.
	assert.Equal(t, 2, now.Day())
	assert.Equal(t, 1, now.Hour())
	assert.Equal(t, 30, now.Minute())
}
