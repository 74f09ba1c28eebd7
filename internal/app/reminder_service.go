package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/domain/channel"
	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/schedule"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// ReminderOptions are the tunables of the dispatch engine.
type ReminderOptions struct {
	DeliveryPollStartWeek  int
	PregnancyWeekLimit     int
	RetryBaseDelay         time.Duration
	RetryMaxDelay          time.Duration
	MaxPollResponsesPerDay int
	LogRetentionDays       int
}

// ReminderService decides which workflow events are due for a subject and
// performs the sends with retry/backoff bookkeeping. One instance serves all
// subjects; per-call state lives on the subject row.
type ReminderService struct {
	subjects subject.Repository
	checkins reminderlog.CheckinRepository
	visits   reminderlog.VisitRepository
	client   channel.Client
	logger   *logrus.Entry
	opts     ReminderOptions
}

func NewReminderService(
	subjects subject.Repository,
	checkins reminderlog.CheckinRepository,
	visits reminderlog.VisitRepository,
	client channel.Client,
	logger *logrus.Entry,
	opts ReminderOptions,
) *ReminderService {
	return &ReminderService{
		subjects: subjects,
		checkins: checkins,
		visits:   visits,
		client:   client,
		logger:   logger,
		opts:     opts,
	}
}

// EligibleSubjects returns the subjects one tick evaluates.
func (s *ReminderService) EligibleSubjects(ctx context.Context) ([]*subject.Subject, error) {
	return s.subjects.ListSchedulable(ctx)
}

// PurgeOldLogs deletes check-in log rows past the retention horizon.
func (s *ReminderService) PurgeOldLogs(ctx context.Context, now time.Time) (int64, error) {
	if s.opts.LogRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := timeutil.DayKey(now.AddDate(0, 0, -s.opts.LogRetentionDays))
	return s.checkins.PurgeOlderThan(ctx, cutoff)
}

// ProcessSubject runs every workflow's due-check for one subject at one tick.
// Workflow failures are logged and isolated so one workflow cannot starve the
// others.
func (s *ReminderService) ProcessSubject(ctx context.Context, sub *subject.Subject, now time.Time) error {
	log := s.logger.WithFields(logrus.Fields{"chat_id": sub.ChatID})

	done, err := s.maybeComplete(ctx, sub, now)
	if err != nil {
		return fmt.Errorf("completion check for %s: %w", sub.ChatID, err)
	}
	if done {
		return nil
	}

	if err := s.dispatchCheckin(ctx, sub, now); err != nil {
		log.WithError(err).WithField("workflow", "checkin").Error("Dispatch failed")
	}
	if err := s.dispatchLaborEducation(ctx, sub, now); err != nil {
		log.WithError(err).WithField("workflow", "labor-education").Error("Dispatch failed")
	}
	if err := s.dispatchDeliveryValidation(ctx, sub, now); err != nil {
		log.WithError(err).WithField("workflow", "delivery-validation").Error("Dispatch failed")
	}
	if err := s.dispatchPostpartumVisits(ctx, sub, now); err != nil {
		log.WithError(err).WithField("workflow", "postpartum").Error("Dispatch failed")
	}
	return nil
}

// maybeComplete retires subjects whose pregnancy-tracking window has passed
// without a confirmed delivery. Postpartum monitoring is closed separately
// once every visit is answered.
func (s *ReminderService) maybeComplete(ctx context.Context, sub *subject.Subject, now time.Time) (bool, error) {
	if sub.Phase != subject.PhaseActive {
		return true, nil
	}
	if sub.Delivery.Confirmed() || sub.DeliveryData.MonitoringActive() {
		return false, nil
	}
	if schedule.PregnancyActive(sub.Profile.LMPDay.String, now, s.opts.PregnancyWeekLimit) {
		return false, nil
	}

	sub.Phase = subject.PhaseCompleted
	sub.Profile.AllowReminders = sql.NullBool{Bool: false, Valid: true}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return false, err
	}
	if _, err := s.client.SendText(sub.ChatID, msgPregnancyWindowDone); err != nil {
		s.logger.WithField("chat_id", sub.ChatID).WithError(err).Warn("Farewell message failed")
	}
	return true, nil
}

// dispatchCheckin sends the daily medication reminder text plus check-in poll,
// at most once per calendar day, with backoff on poll failures.
func (s *ReminderService) dispatchCheckin(ctx context.Context, sub *subject.Subject, now time.Time) error {
	if !schedule.CheckinDue(sub, now) {
		return nil
	}
	if !schedule.RetryEligible(sub.CheckinRetry, now, s.opts.RetryBaseDelay, s.opts.RetryMaxDelay) {
		return nil
	}
	today := timeutil.DayKey(now)

	// The reminder text goes out once per day; only the poll is retried.
	if !sub.Checkin.TextSentDay.Valid || sub.Checkin.TextSentDay.String != today {
		if _, err := s.client.SendText(sub.ChatID, buildReminderText(sub, now)); err != nil {
			return s.recordCheckinFailure(ctx, sub, now, err)
		}
		sub.Checkin.TextSentDay = sql.NullString{String: today, Valid: true}
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
	}

	promptID, err := s.client.SendPrompt(sub.ChatID, checkinPollQuestion, checkinPollOptions)
	if err != nil {
		return s.recordCheckinFailure(ctx, sub, now, err)
	}

	sub.Checkin.LastSentDay = sql.NullString{String: today, Valid: true}
	sub.Checkin.LastPromptID = sql.NullString{String: promptID, Valid: true}
	sub.CheckinRetry = subject.RetryState{LastAttemptAt: sql.NullTime{Time: now, Valid: true}}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	return s.checkins.Ensure(ctx, sub.ChatID, today)
}

func (s *ReminderService) recordCheckinFailure(ctx context.Context, sub *subject.Subject, now time.Time, cause error) error {
	sub.CheckinRetry.Failures++
	sub.CheckinRetry.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	s.logger.WithFields(logrus.Fields{
		"chat_id":  sub.ChatID,
		"workflow": "checkin",
		"failures": sub.CheckinRetry.Failures,
	}).WithError(cause).Warn("Send failed, will retry with backoff")
	return s.subjects.Update(ctx, sub)
}

// dispatchLaborEducation sends the weekly-varied late-pregnancy education
// message, once per calendar day. Plain text only: a failed send is simply
// retried on the next tick.
func (s *ReminderService) dispatchLaborEducation(ctx context.Context, sub *subject.Subject, now time.Time) error {
	week, due := schedule.LaborEducationDue(sub, now)
	if !due {
		return nil
	}
	edd, ok := schedule.EstimatedDeliveryDate(sub.Profile.LMPDay.String, now.Location())
	if !ok {
		return nil
	}
	text := laborEducationMessage(week, edd)
	if text == "" {
		return nil
	}
	if _, err := s.client.SendText(sub.ChatID, text); err != nil {
		s.logger.WithField("chat_id", sub.ChatID).WithError(err).Warn("Labor education send failed")
		return nil
	}
	sub.Labor.LastSentDay = sql.NullString{String: timeutil.DayKey(now), Valid: true}
	return s.subjects.Update(ctx, sub)
}

// dispatchDeliveryValidation runs the staged "have you delivered?" poll.
func (s *ReminderService) dispatchDeliveryValidation(ctx context.Context, sub *subject.Subject, now time.Time) error {
	stage, due := schedule.DeliveryPollDue(sub, now, s.opts.DeliveryPollStartWeek)
	if !due {
		return nil
	}
	if !schedule.RetryEligible(sub.DeliveryRetry, now, s.opts.RetryBaseDelay, s.opts.RetryMaxDelay) {
		return nil
	}
	today := timeutil.DayKey(now)

	// Stage explainer at most once per day, independent of poll retries.
	if !sub.Delivery.IntroDay.Valid || sub.Delivery.IntroDay.String != today {
		if _, err := s.client.SendText(sub.ChatID, deliveryStageIntros[stage.String()]); err != nil {
			return s.recordDeliveryFailure(ctx, sub, now, err)
		}
		sub.Delivery.IntroDay = sql.NullString{String: today, Valid: true}
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
	}

	promptID, err := s.client.SendPrompt(sub.ChatID, deliveryPollQuestion, deliveryPollOptions)
	if err != nil {
		return s.recordDeliveryFailure(ctx, sub, now, err)
	}

	schedule.MarkStageSent(&sub.Delivery, stage, today)
	sub.Delivery.LastPromptID = sql.NullString{String: promptID, Valid: true}
	sub.DeliveryRetry = subject.RetryState{LastAttemptAt: sql.NullTime{Time: now, Valid: true}}
	return s.subjects.Update(ctx, sub)
}

func (s *ReminderService) recordDeliveryFailure(ctx context.Context, sub *subject.Subject, now time.Time, cause error) error {
	sub.DeliveryRetry.Failures++
	sub.DeliveryRetry.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	s.logger.WithFields(logrus.Fields{
		"chat_id":  sub.ChatID,
		"workflow": "delivery-validation",
		"failures": sub.DeliveryRetry.Failures,
	}).WithError(cause).Warn("Send failed, will retry with backoff")
	return s.subjects.Update(ctx, sub)
}

// dispatchPostpartumVisits walks the subject's visit rows and sends whichever
// are due and unsent, with per-row retry state. Once every visit is answered
// the subject is retired.
func (s *ReminderService) dispatchPostpartumVisits(ctx context.Context, sub *subject.Subject, now time.Time) error {
	if !sub.DeliveryData.MonitoringActive() {
		return nil
	}
	delivery, err := schedule.DeliveryInstant(sub.DeliveryData.DeliveryDay.String, sub.DeliveryData.DeliveryTime.String, now.Location())
	if err != nil {
		return err
	}

	rows, err := s.visits.ListBySubject(ctx, sub.ChatID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if rows, err = s.ensureVisitRows(ctx, sub.ChatID, delivery, now); err != nil {
			return err
		}
	}

	allAnswered := len(rows) == len(schedule.Visits())
	for _, row := range rows {
		if row.Answered() {
			continue
		}
		allAnswered = false
		if row.PromptSentAt.Valid || now.Before(row.DueAt) {
			continue
		}
		if err := s.sendVisit(ctx, sub, row, now); err != nil {
			s.logger.WithFields(logrus.Fields{
				"chat_id": sub.ChatID,
				"visit":   row.Code,
			}).WithError(err).Error("Visit dispatch failed")
		}
	}

	if allAnswered {
		sub.Phase = subject.PhaseCompleted
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
		if _, err := s.client.SendText(sub.ChatID, msgPostpartumAllDone); err != nil {
			s.logger.WithField("chat_id", sub.ChatID).WithError(err).Warn("Closing message failed")
		}
	}
	return nil
}

func (s *ReminderService) sendVisit(ctx context.Context, sub *subject.Subject, row *reminderlog.VisitLog, now time.Time) error {
	retry := subject.RetryState{LastAttemptAt: row.LastAttemptAt, Failures: row.Failures}
	if !schedule.RetryEligible(retry, now, s.opts.RetryBaseDelay, s.opts.RetryMaxDelay) {
		return nil
	}

	// One-time postpartum education, shared across all visits.
	if !sub.Postpartum.EducationSentAt.Valid {
		if _, err := s.client.SendText(sub.ChatID, msgPostpartumEducation); err != nil {
			return s.recordVisitFailure(ctx, row, now, err)
		}
		sub.Postpartum.EducationSentAt = sql.NullTime{Time: now, Valid: true}
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
	}

	// Per-visit explainer exactly once; only the poll is retried.
	if !row.ExplainerSentAt.Valid {
		if _, err := s.client.SendText(sub.ChatID, visitExplainer(schedule.VisitTitle(row.Code))); err != nil {
			return s.recordVisitFailure(ctx, row, now, err)
		}
		row.ExplainerSentAt = sql.NullTime{Time: now, Valid: true}
		if err := s.visits.Update(ctx, row); err != nil {
			return err
		}
	}

	promptID, err := s.client.SendPrompt(sub.ChatID, postpartumPollQuestion, visitPollOptions)
	if err != nil {
		return s.recordVisitFailure(ctx, row, now, err)
	}

	row.PromptSentAt = sql.NullTime{Time: now, Valid: true}
	row.PromptID = sql.NullString{String: promptID, Valid: true}
	row.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	row.Failures = 0
	return s.visits.Update(ctx, row)
}

func (s *ReminderService) recordVisitFailure(ctx context.Context, row *reminderlog.VisitLog, now time.Time, cause error) error {
	row.Failures++
	row.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	s.logger.WithFields(logrus.Fields{
		"chat_id":  row.ChatID,
		"visit":    row.Code,
		"failures": row.Failures,
	}).WithError(cause).Warn("Send failed, will retry with backoff")
	return s.visits.Update(ctx, row)
}

// ensureVisitRows lazily creates the fixed visit rows for a delivery instant
// and returns the full set. Existing rows are left untouched.
func (s *ReminderService) ensureVisitRows(ctx context.Context, chatID string, delivery, now time.Time) ([]*reminderlog.VisitLog, error) {
	defs := schedule.Visits()
	rows := make([]*reminderlog.VisitLog, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, &reminderlog.VisitLog{
			ChatID:    chatID,
			Code:      def.Code,
			DueAt:     schedule.VisitDueAt(delivery, def),
			CreatedAt: now,
		})
	}
	if err := s.visits.BulkEnsure(ctx, rows); err != nil {
		return nil, err
	}
	return s.visits.ListBySubject(ctx, chatID)
}
