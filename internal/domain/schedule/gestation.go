// Package schedule contains the pure time-gate calculators: given a subject's
// state and the current civil instant they decide what is due, without side
// effects. All day arithmetic is calendar-day granular in the civil timezone.
package schedule

import (
	"time"

	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// gestationDays is the conventional pregnancy length used for the estimated
// delivery date: LMP + 280 days.
const gestationDays = 280

func lmpDate(lmpDay string, loc *time.Location) (time.Time, bool) {
	if lmpDay == "" {
		return time.Time{}, false
	}
	t, err := timeutil.ParseDayKey(lmpDay, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GestationalWeek computes floor(days since LMP / 7) + 1 on calendar-day
// granularity. The second return is false when the LMP day is missing,
// unparseable, or in the future.
func GestationalWeek(lmpDay string, now time.Time) (int, bool) {
	lmp, ok := lmpDate(lmpDay, now.Location())
	if !ok {
		return 0, false
	}
	days := int(midnight(now).Sub(lmp).Hours() / 24)
	if days < 0 {
		return 0, false
	}
	return days/7 + 1, true
}

// EstimatedDeliveryDate returns LMP + 280 days at civil midnight.
func EstimatedDeliveryDate(lmpDay string, loc *time.Location) (time.Time, bool) {
	lmp, ok := lmpDate(lmpDay, loc)
	if !ok {
		return time.Time{}, false
	}
	return lmp.AddDate(0, 0, gestationDays), true
}

// PregnancyActive reports whether the pregnancy-tracking workflows still run:
// today must not be past LMP + weekLimit weeks. A missing or unparseable LMP
// keeps tracking active, matching the pre-onboarding and bad-data cases.
func PregnancyActive(lmpDay string, now time.Time, weekLimit int) bool {
	lmp, ok := lmpDate(lmpDay, now.Location())
	if !ok {
		return true
	}
	limit := lmp.AddDate(0, 0, weekLimit*7)
	return !midnight(now).After(limit)
}
