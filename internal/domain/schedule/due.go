package schedule

import (
	"time"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// Labor-phase education runs in late pregnancy only.
const (
	laborEducationFirstWeek = 37
	laborEducationLastWeek  = 41
)

// CheckinDue reports whether today's daily check-in reminder should go out:
// the reminder clock time has passed and today's poll has not been sent.
// Missed days are not caught up.
func CheckinDue(sub *subject.Subject, now time.Time) bool {
	if !sub.RemindersEnabled() {
		return false
	}
	if sub.Checkin.LastSentDay.Valid && sub.Checkin.LastSentDay.String == timeutil.DayKey(now) {
		return false
	}
	at, err := timeutil.AtClockTime(now, sub.Profile.ReminderTime.String)
	if err != nil {
		return false
	}
	return !now.Before(at)
}

// LaborEducationDue reports whether the weekly-varied education message is due
// and for which gestational week. Nothing fires once delivery is confirmed or
// after today's message already went out.
func LaborEducationDue(sub *subject.Subject, now time.Time) (int, bool) {
	if sub.Delivery.Confirmed() {
		return 0, false
	}
	week, ok := GestationalWeek(sub.Profile.LMPDay.String, now)
	if !ok || week < laborEducationFirstWeek || week > laborEducationLastWeek {
		return 0, false
	}
	if sub.Labor.LastSentDay.Valid && sub.Labor.LastSentDay.String == timeutil.DayKey(now) {
		return 0, false
	}
	return week, true
}
