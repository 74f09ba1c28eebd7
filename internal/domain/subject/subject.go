package subject

import (
	"database/sql"
	"time"
)

// Phase is the single lifecycle phase a subject is in at any moment.
type Phase string

const (
	PhaseOnboarding Phase = "onboarding"
	PhaseActive     Phase = "active"
	PhasePaused     Phase = "paused"
	PhaseCompleted  Phase = "completed"
)

// Profile holds the answers collected during onboarding.
type Profile struct {
	Name            sql.NullString
	Age             sql.NullString
	PregnancyNumber sql.NullString
	LMPRaw          sql.NullString // last-menstrual-period date as typed
	LMPDay          sql.NullString // canonical YYYY-MM-DD, null when unparseable
	RoutineMeds     sql.NullBool
	Tea             sql.NullBool
	ReminderPerson  sql.NullString
	AllowReminders  sql.NullBool
	ReminderTime    sql.NullString // "HH:MM"
}

// CheckinState is the daily medication check-in bookkeeping.
type CheckinState struct {
	TextSentDay  sql.NullString // day the reminder text went out (explainer guard)
	LastSentDay  sql.NullString // day the poll itself was delivered
	LastPromptID sql.NullString
}

// LaborEducationState tracks the week 37-41 education messages.
type LaborEducationState struct {
	LastSentDay sql.NullString
}

// DeliveryValidationState tracks the "have you delivered?" polling workflow.
type DeliveryValidationState struct {
	IntroDay         sql.NullString // day the current stage's explainer went out
	EarlySentDay     sql.NullString
	EstimateSentDay  sql.NullString
	PlusThreeSentDay sql.NullString
	Answered         sql.NullBool
	AnsweredAt       sql.NullTime
	LastPromptID     sql.NullString
}

// Confirmed reports whether a "delivered" answer has been recorded.
// Confirmation is sticky: no further validation stages fire afterwards.
func (s DeliveryValidationState) Confirmed() bool {
	return s.Answered.Valid && s.Answered.Bool
}

// AnsweredNotYet reports a recorded "not yet delivered" answer.
func (s DeliveryValidationState) AnsweredNotYet() bool {
	return s.Answered.Valid && !s.Answered.Bool
}

// DeliveryDataState is the dependent sub-flow collecting the actual delivery
// date and time once delivery is confirmed.
type DeliveryDataState struct {
	Step         int            // 0 idle, 1 awaiting date, 2 awaiting time
	DeliveryDay  sql.NullString // YYYY-MM-DD
	DeliveryTime sql.NullString // HH:MM
	CompletedAt  sql.NullTime
}

// Collecting reports whether a data-collection question is pending.
func (s DeliveryDataState) Collecting() bool { return s.Step > 0 }

// MonitoringActive reports whether postpartum visit monitoring may run; it
// requires both a confirmed delivery date and delivery time.
func (s DeliveryDataState) MonitoringActive() bool {
	return s.DeliveryDay.Valid && s.DeliveryTime.Valid
}

// PostpartumState holds the one-time education explainer guard.
type PostpartumState struct {
	EducationSentAt sql.NullTime
}

// RetryState is the per-send-type backoff bookkeeping.
type RetryState struct {
	LastAttemptAt sql.NullTime
	Failures      int
}

// Subject is one recipient/channel identity tracked by the system.
type Subject struct {
	ID             int64
	ChatID         string // opaque channel address, unique
	Phase          Phase
	OnboardingStep int // meaningful only while Phase == PhaseOnboarding

	Profile       Profile
	Checkin       CheckinState
	Labor         LaborEducationState
	Delivery      DeliveryValidationState
	DeliveryData  DeliveryDataState
	Postpartum    PostpartumState
	CheckinRetry  RetryState
	DeliveryRetry RetryState

	IsAdmin   bool
	IsAllowed bool
	IsBlocked bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Onboarding reports whether the subject is still answering intake questions.
func (s *Subject) Onboarding() bool { return s.Phase == PhaseOnboarding }

// RemindersEnabled reports whether the daily check-in may be sent.
func (s *Subject) RemindersEnabled() bool {
	return s.Phase == PhaseActive &&
		s.Profile.AllowReminders.Valid && s.Profile.AllowReminders.Bool &&
		s.Profile.ReminderTime.Valid
}

// DisplayName returns the collected name or the generic honorific.
func (s *Subject) DisplayName() string {
	if s.Profile.Name.Valid && s.Profile.Name.String != "" {
		return s.Profile.Name.String
	}
	return "Bunda"
}
