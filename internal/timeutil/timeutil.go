// Package timeutil anchors all scheduling math to a single civil timezone.
package timeutil

import (
	"fmt"
	"time"
)

const DayKeyLayout = "2006-01-02"

// Clock produces the current instant in the configured civil timezone.
type Clock struct {
	loc *time.Location
}

func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc}, nil
}

func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// DayKey derives the calendar-day key for an instant, e.g. "2024-10-07".
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ParseDayKey parses a calendar-day key at midnight in the given zone.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayKeyLayout, key, loc)
}

// AtClockTime places an "HH:MM" clock time onto the calendar day of ref.
func AtClockTime(ref time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", hhmm, err)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), parsed.Hour(), parsed.Minute(), 0, 0, ref.Location()), nil
}
