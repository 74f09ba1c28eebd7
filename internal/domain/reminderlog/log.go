// Package reminderlog holds the append-only per-period log rows: one daily
// check-in row per subject per calendar day, and one row per postpartum visit.
package reminderlog

import (
	"database/sql"
	"time"

	"github.com/azrahudaya/remindcare/internal/domain/parse"
)

// CheckinLog is one daily check-in row. Unique key: (chat ID, day).
type CheckinLog struct {
	ID          int64
	ChatID      string
	Day         string // YYYY-MM-DD
	Response    sql.NullString
	DoneCount   int // same-day "Sudah" answers
	NotYetCount int // same-day "Belum" answers
	CreatedAt   time.Time
}

// Record applies an answer to the row, honoring the per-day cap per answer
// kind. It returns false when the cap is already reached; the counters are
// monotonically non-decreasing either way. A maxPerDay <= 0 disables the cap.
func (l *CheckinLog) Record(response string, maxPerDay int) bool {
	count := l.NotYetCount
	if response == parse.AnswerDone {
		count = l.DoneCount
	}
	allowed := maxPerDay <= 0 || count < maxPerDay
	l.Response = sql.NullString{String: response, Valid: true}
	if !allowed {
		return false
	}
	if response == parse.AnswerDone {
		l.DoneCount++
	} else {
		l.NotYetCount++
	}
	return true
}

// VisitLog is one postpartum visit row. Unique key: (chat ID, visit code).
// Rows are created lazily once the delivery instant is known and deleted in
// bulk when delivery data collection restarts.
type VisitLog struct {
	ID              int64
	ChatID          string
	Code            string // KF1, KN1, KF2, KN2, KF3, KN3, KF4
	DueAt           time.Time
	ExplainerSentAt sql.NullTime
	PromptSentAt    sql.NullTime
	PromptID        sql.NullString
	LastAttemptAt   sql.NullTime
	Failures        int
	Response        sql.NullString
	DoneCount       int
	NotYetCount     int
	CreatedAt       time.Time
}

// Answered reports whether a response has been recorded for the visit.
func (v *VisitLog) Answered() bool { return v.Response.Valid }

// Record mirrors CheckinLog.Record for the per-visit answer cap.
func (v *VisitLog) Record(response string, maxPerDay int) bool {
	count := v.NotYetCount
	if response == parse.AnswerDone {
		count = v.DoneCount
	}
	allowed := maxPerDay <= 0 || count < maxPerDay
	v.Response = sql.NullString{String: response, Valid: true}
	if !allowed {
		return false
	}
	if response == parse.AnswerDone {
		v.DoneCount++
	} else {
		v.NotYetCount++
	}
	return true
}
