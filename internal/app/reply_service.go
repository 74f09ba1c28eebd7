package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/domain/channel"
	"github.com/azrahudaya/remindcare/internal/domain/parse"
	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/schedule"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
	idb "github.com/azrahudaya/remindcare/internal/infra/database"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// deleteConfirmWindow is how long a "delete" confirmation stays valid.
const deleteConfirmWindow = 5 * time.Minute

var changeTimeRx = regexp.MustCompile(`^(?:ubah|ganti|set)\s+jam\s+(.+)$`)

// ReplyOptions are the tunables of inbound message handling.
type ReplyOptions struct {
	MaxPollResponsesPerDay int
	DeliveryPollStartWeek  int
	EnforceAllowlist       bool
	AdminChatIDs           []string
	AllowlistChatIDs       []string
}

// ReplyService reconciles every inbound message against the subject's state:
// onboarding answers, commands, delivery data, poll answers, and fallbacks.
// Free-text handlers are tried in a fixed priority order; the first one that
// recognizes the message wins.
type ReplyService struct {
	subjects subject.Repository
	checkins reminderlog.CheckinRepository
	visits   reminderlog.VisitRepository
	client   channel.Client
	admin    *AdminService
	logger   *logrus.Entry
	opts     ReplyOptions

	mu             sync.Mutex
	pendingDeletes map[string]time.Time
}

type textHandler struct {
	name string
	fn   func(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error)
}

func NewReplyService(
	subjects subject.Repository,
	checkins reminderlog.CheckinRepository,
	visits reminderlog.VisitRepository,
	client channel.Client,
	admin *AdminService,
	logger *logrus.Entry,
	opts ReplyOptions,
) *ReplyService {
	return &ReplyService{
		subjects:       subjects,
		checkins:       checkins,
		visits:         visits,
		client:         client,
		admin:          admin,
		logger:         logger,
		opts:           opts,
		pendingDeletes: make(map[string]time.Time),
	}
}

// handlers returns the free-text handler chain in priority order. Commands
// outrank poll answers so "menu" never gets misread as a check-in reply, and
// delivery intent outranks check-in intent because its keyword is explicit.
func (s *ReplyService) handlers() []textHandler {
	return []textHandler{
		{"onboarding", s.handleOnboardingAnswer},
		{"command", s.handleCommand},
		{"delivery-data", s.handleDeliveryData},
		{"delivery-answer", s.handleDeliveryAnswer},
		{"checkin-answer", s.handleCheckinAnswer},
		{"fallback", s.handleFallback},
	}
}

// HandleText processes one inbound free-text message.
func (s *ReplyService) HandleText(ctx context.Context, chatID, text string, now time.Time) error {
	text = strings.TrimSpace(text)

	sub, err := s.subjects.GetByChatID(ctx, chatID)
	if errors.Is(err, idb.ErrSubjectNotFound) {
		return s.handleNewSender(ctx, chatID, text, now)
	}
	if err != nil {
		return fmt.Errorf("load subject %s: %w", chatID, err)
	}
	if sub.IsBlocked {
		return nil
	}

	for _, h := range s.handlers() {
		handled, err := h.fn(ctx, sub, text, now)
		if err != nil {
			return fmt.Errorf("%s handler for %s: %w", h.name, chatID, err)
		}
		if handled {
			s.logger.WithFields(logrus.Fields{"chat_id": chatID, "handler": h.name}).Debug("Inbound text handled")
			return nil
		}
	}
	return nil
}

// handleNewSender deals with chat IDs that have no subject row yet. A bare
// greeting gets the welcome pitch without creating state; anything else starts
// onboarding.
func (s *ReplyService) handleNewSender(ctx context.Context, chatID, text string, now time.Time) error {
	isAdmin := contains(s.opts.AdminChatIDs, chatID)
	allowed := !s.opts.EnforceAllowlist || isAdmin || contains(s.opts.AllowlistChatIDs, chatID)
	if !allowed {
		_, err := s.client.SendText(chatID, msgNotAllowed)
		return err
	}
	if text == "" || parse.Greeting(text) {
		_, err := s.client.SendText(chatID, msgWelcome)
		return err
	}

	sub := &subject.Subject{
		ChatID:         chatID,
		Phase:          subject.PhaseOnboarding,
		OnboardingStep: 1,
		IsAdmin:        isAdmin,
		IsAllowed:      allowed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.subjects.Create(ctx, sub); err != nil {
		return fmt.Errorf("create subject %s: %w", chatID, err)
	}
	_, err := s.client.SendText(chatID, onboardingQuestions[0].Text)
	return err
}

// handleOnboardingAnswer consumes one intake answer and asks the next
// question. Always-available commands fall through to the command handler.
func (s *ReplyService) handleOnboardingAnswer(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	if !sub.Onboarding() {
		return false, nil
	}
	if parse.AlwaysCommand(text) {
		return false, nil
	}
	step := sub.OnboardingStep
	if step < 1 || step > len(onboardingQuestions) {
		step = 1
		sub.OnboardingStep = 1
	}
	q := onboardingQuestions[step-1]

	switch q.Kind {
	case kindYesNo:
		value, ok := parse.YesNo(text)
		if !ok {
			_, err := s.client.SendText(sub.ChatID, msgYesNoHint)
			return true, err
		}
		s.storeBoolAnswer(sub, q.Field, value)
		if q.Field == "allow_reminders" && !value {
			return true, s.finishDeclined(ctx, sub)
		}
	case kindTime:
		hhmm, ok := parse.ClockTime(text)
		if !ok {
			_, err := s.client.SendText(sub.ChatID, msgTimeHint)
			return true, err
		}
		s.storeTextAnswer(sub, q.Field, hhmm)
	case kindDate:
		date := parse.CalendarDate(text)
		if !date.Valid() {
			_, err := s.client.SendText(sub.ChatID, msgDateHint)
			return true, err
		}
		sub.Profile.LMPRaw = sql.NullString{String: date.Raw, Valid: true}
		sub.Profile.LMPDay = sql.NullString{String: date.Day, Valid: true}
	default:
		if text == "" {
			_, err := s.client.SendText(sub.ChatID, msgRepromptEmpty)
			return true, err
		}
		s.storeTextAnswer(sub, q.Field, text)
	}

	if step == len(onboardingQuestions) {
		return true, s.finishOnboarding(ctx, sub, now)
	}
	sub.OnboardingStep = step + 1
	if err := s.subjects.Update(ctx, sub); err != nil {
		return true, err
	}
	_, err := s.client.SendText(sub.ChatID, onboardingQuestions[step].Text)
	return true, err
}

func (s *ReplyService) storeTextAnswer(sub *subject.Subject, field, value string) {
	v := sql.NullString{String: strings.TrimSpace(value), Valid: true}
	switch field {
	case "name":
		sub.Profile.Name = v
	case "age":
		sub.Profile.Age = v
	case "pregnancy_number":
		sub.Profile.PregnancyNumber = v
	case "reminder_person":
		sub.Profile.ReminderPerson = v
	case "reminder_time":
		sub.Profile.ReminderTime = v
	}
}

func (s *ReplyService) storeBoolAnswer(sub *subject.Subject, field string, value bool) {
	v := sql.NullBool{Bool: value, Valid: true}
	switch field {
	case "routine_meds":
		sub.Profile.RoutineMeds = v
	case "tea":
		sub.Profile.Tea = v
	case "allow_reminders":
		sub.Profile.AllowReminders = v
	}
}

// finishDeclined closes onboarding early when reminders are declined. The
// subject stays active so education and delivery workflows still run.
func (s *ReplyService) finishDeclined(ctx context.Context, sub *subject.Subject) error {
	sub.Phase = subject.PhaseActive
	sub.OnboardingStep = 0
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, msgRemindersDeclined)
	return err
}

func (s *ReplyService) finishOnboarding(ctx context.Context, sub *subject.Subject, now time.Time) error {
	sub.Phase = subject.PhaseActive
	sub.OnboardingStep = 0
	// A reminder time already past for today would fire immediately on the
	// next tick; suppress it so the first reminder lands tomorrow.
	if at, err := timeutil.AtClockTime(now, sub.Profile.ReminderTime.String); err == nil && !now.Before(at) {
		sub.Checkin.LastSentDay = sql.NullString{String: timeutil.DayKey(now), Valid: true}
	}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, fmt.Sprintf(msgOnboardingDone, sub.Profile.ReminderTime.String))
	return err
}

func (s *ReplyService) handleCommand(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if m := changeTimeRx.FindStringSubmatch(normalized); m != nil {
		return true, s.changeReminderTime(ctx, sub, m[1])
	}
	if cmd := parse.ParseAdminCommand(normalized); cmd != nil {
		return true, s.runAdminCommand(ctx, sub, cmd)
	}

	switch normalized {
	case "help", "menu":
		_, err := s.client.SendText(sub.ChatID, msgMenu)
		return true, err
	case "about", "abotu":
		_, err := s.client.SendText(sub.ChatID, msgAbout)
		return true, err
	case "website":
		_, err := s.client.SendText(sub.ChatID, msgWebsite)
		return true, err
	case "delete", "hapus":
		return true, s.deleteAccount(ctx, sub, now)
	case "stop", "berhenti":
		sub.Phase = subject.PhasePaused
		if err := s.subjects.Update(ctx, sub); err != nil {
			return true, err
		}
		_, err := s.client.SendText(sub.ChatID, msgStopped)
		return true, err
	case "start", "mulai":
		return true, s.startReminders(ctx, sub)
	}
	return false, nil
}

// startReminders reactivates a paused or declined subject. A subject with a
// full profile only re-answers the reminder-time question.
func (s *ReplyService) startReminders(ctx context.Context, sub *subject.Subject) error {
	if sub.RemindersEnabled() {
		_, err := s.client.SendText(sub.ChatID, msgAlreadyActive)
		return err
	}
	if !sub.Profile.Name.Valid {
		sub.Phase = subject.PhaseOnboarding
		sub.OnboardingStep = 1
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
		_, err := s.client.SendText(sub.ChatID, onboardingQuestions[0].Text)
		return err
	}
	sub.Phase = subject.PhaseOnboarding
	sub.OnboardingStep = reminderTimeStep
	sub.Profile.AllowReminders = sql.NullBool{Bool: true, Valid: true}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, onboardingQuestions[reminderTimeStep-1].Text)
	return err
}

func (s *ReplyService) changeReminderTime(ctx context.Context, sub *subject.Subject, raw string) error {
	hhmm, ok := parse.ClockTime(raw)
	if !ok {
		_, err := s.client.SendText(sub.ChatID, msgChangeTimeHint)
		return err
	}
	sub.Profile.ReminderTime = sql.NullString{String: hhmm, Valid: true}
	sub.Profile.AllowReminders = sql.NullBool{Bool: true, Valid: true}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, fmt.Sprintf(msgTimeChanged, hhmm))
	return err
}

// deleteAccount is a two-step confirmation: the second "delete" within the
// window removes the subject and every log row.
func (s *ReplyService) deleteAccount(ctx context.Context, sub *subject.Subject, now time.Time) error {
	s.mu.Lock()
	asked, pending := s.pendingDeletes[sub.ChatID]
	confirmed := pending && now.Sub(asked) <= deleteConfirmWindow
	if confirmed {
		delete(s.pendingDeletes, sub.ChatID)
	} else {
		s.pendingDeletes[sub.ChatID] = now
	}
	s.mu.Unlock()

	if !confirmed {
		_, err := s.client.SendText(sub.ChatID, msgDeleteConfirm)
		return err
	}

	if err := s.checkins.DeleteBySubject(ctx, sub.ChatID); err != nil {
		return err
	}
	if err := s.visits.DeleteBySubject(ctx, sub.ChatID); err != nil {
		return err
	}
	if err := s.subjects.Delete(ctx, sub.ChatID); err != nil {
		return err
	}
	s.logger.WithField("chat_id", sub.ChatID).Info("Subject deleted on request")
	_, err := s.client.SendText(sub.ChatID, msgDeleted)
	return err
}

func (s *ReplyService) runAdminCommand(ctx context.Context, sub *subject.Subject, cmd *parse.AdminCommand) error {
	if !sub.IsAdmin {
		_, err := s.client.SendText(sub.ChatID, msgAdminOnly)
		return err
	}
	reply, err := s.admin.Run(ctx, cmd)
	if err != nil {
		return err
	}
	_, err = s.client.SendText(sub.ChatID, reply)
	return err
}

// handleDeliveryData consumes answers while the delivery date/time
// questionnaire is open.
func (s *ReplyService) handleDeliveryData(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	if !sub.DeliveryData.Collecting() {
		return false, nil
	}
	switch sub.DeliveryData.Step {
	case 1:
		return true, s.collectDeliveryDate(ctx, sub, text, now)
	case 2:
		return true, s.collectDeliveryTime(ctx, sub, text, now)
	}
	return false, nil
}

func (s *ReplyService) collectDeliveryDate(ctx context.Context, sub *subject.Subject, text string, now time.Time) error {
	date := parse.CalendarDate(text)
	if !date.Valid() {
		_, err := s.client.SendText(sub.ChatID, msgDateHint)
		return err
	}
	// Day keys compare lexicographically.
	if date.Day > timeutil.DayKey(now) {
		_, err := s.client.SendText(sub.ChatID, msgDeliveryDateFuture)
		return err
	}
	if sub.Profile.LMPDay.Valid && date.Day < sub.Profile.LMPDay.String {
		_, err := s.client.SendText(sub.ChatID, msgDeliveryDateTooEarly)
		return err
	}
	sub.DeliveryData.DeliveryDay = sql.NullString{String: date.Day, Valid: true}
	sub.DeliveryData.Step = 2
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, msgAskDeliveryTime)
	return err
}

func (s *ReplyService) collectDeliveryTime(ctx context.Context, sub *subject.Subject, text string, now time.Time) error {
	hhmm, ok := parse.ClockTime(text)
	if !ok {
		_, err := s.client.SendText(sub.ChatID, msgTimeHint)
		return err
	}
	instant, err := schedule.DeliveryInstant(sub.DeliveryData.DeliveryDay.String, hhmm, now.Location())
	if err != nil {
		return err
	}
	if instant.After(now) {
		_, err := s.client.SendText(sub.ChatID, msgDeliveryTimeFuture)
		return err
	}

	sub.DeliveryData.DeliveryTime = sql.NullString{String: hhmm, Valid: true}
	sub.DeliveryData.Step = 0
	sub.DeliveryData.CompletedAt = sql.NullTime{Time: now, Valid: true}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}

	// Rebuild the visit schedule from scratch for the confirmed instant.
	if err := s.visits.DeleteBySubject(ctx, sub.ChatID); err != nil {
		return err
	}
	defs := schedule.Visits()
	rows := make([]*reminderlog.VisitLog, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, &reminderlog.VisitLog{
			ChatID:    sub.ChatID,
			Code:      def.Code,
			DueAt:     schedule.VisitDueAt(instant, def),
			CreatedAt: now,
		})
	}
	if err := s.visits.BulkEnsure(ctx, rows); err != nil {
		return err
	}
	_, err = s.client.SendText(sub.ChatID, msgDeliveryDataDone)
	return err
}

// handleDeliveryAnswer recognizes free-text answers to the delivery poll. The
// explicit "lahir" keyword keeps plain "sudah"/"belum" routed to check-ins,
// and the answer only counts while a validation stage is actually pending.
func (s *ReplyService) handleDeliveryAnswer(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	delivered, ok := parse.DeliveryAnswer(text)
	if !ok {
		return false, nil
	}
	if _, pending := schedule.CurrentDeliveryStage(sub, now, s.opts.DeliveryPollStartWeek); !pending {
		return false, nil
	}
	return true, s.recordDeliveryAnswer(ctx, sub, delivered, now)
}

func (s *ReplyService) recordDeliveryAnswer(ctx context.Context, sub *subject.Subject, delivered bool, now time.Time) error {
	sub.Delivery.Answered = sql.NullBool{Bool: delivered, Valid: true}
	sub.Delivery.AnsweredAt = sql.NullTime{Time: now, Valid: true}
	if !delivered {
		if err := s.subjects.Update(ctx, sub); err != nil {
			return err
		}
		_, err := s.client.SendText(sub.ChatID, msgDeliveryNotYet)
		return err
	}

	// A confirmed delivery opens data collection and discards any visit rows
	// from a previous (corrected) delivery instant.
	sub.DeliveryData.Step = 1
	sub.DeliveryData.DeliveryDay = sql.NullString{}
	sub.DeliveryData.DeliveryTime = sql.NullString{}
	sub.DeliveryData.CompletedAt = sql.NullTime{}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return err
	}
	if err := s.visits.DeleteBySubject(ctx, sub.ChatID); err != nil {
		return err
	}
	if _, err := s.client.SendText(sub.ChatID, msgDeliveryCongrats); err != nil {
		return err
	}
	_, err := s.client.SendText(sub.ChatID, msgAskDeliveryDate)
	return err
}

// handleCheckinAnswer routes a free-text "sudah"/"belum" to today's check-in
// when one is open, otherwise to the most recently prompted unanswered visit.
func (s *ReplyService) handleCheckinAnswer(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	answer, ok := parse.CheckinAnswer(text)
	if !ok {
		return false, nil
	}

	today := timeutil.DayKey(now)
	if sub.Checkin.LastSentDay.Valid && sub.Checkin.LastSentDay.String == today {
		return true, s.recordCheckinAnswer(ctx, sub.ChatID, today, answer)
	}

	visit, err := s.latestPromptedVisit(ctx, sub.ChatID)
	if err != nil {
		return true, err
	}
	if visit != nil {
		return true, s.recordVisitAnswer(ctx, sub.ChatID, visit, answer)
	}

	_, err = s.client.SendText(sub.ChatID, msgNothingPending)
	return true, err
}

func (s *ReplyService) handleFallback(ctx context.Context, sub *subject.Subject, text string, now time.Time) (bool, error) {
	_, err := s.client.SendText(sub.ChatID, msgFallback)
	return true, err
}

// latestPromptedVisit returns the unanswered visit whose prompt went out most
// recently, or nil when none is pending.
func (s *ReplyService) latestPromptedVisit(ctx context.Context, chatID string) (*reminderlog.VisitLog, error) {
	rows, err := s.visits.ListBySubject(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var picked *reminderlog.VisitLog
	for _, row := range rows {
		if row.Answered() || !row.PromptSentAt.Valid {
			continue
		}
		if picked == nil || row.PromptSentAt.Time.After(picked.PromptSentAt.Time) {
			picked = row
		}
	}
	return picked, nil
}

func (s *ReplyService) recordCheckinAnswer(ctx context.Context, chatID, day, answer string) error {
	row, err := s.checkins.Get(ctx, chatID, day)
	if errors.Is(err, idb.ErrCheckinLogNotFound) {
		if err := s.checkins.Ensure(ctx, chatID, day); err != nil {
			return err
		}
		if row, err = s.checkins.Get(ctx, chatID, day); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	accepted := row.Record(answer, s.opts.MaxPollResponsesPerDay)
	if err := s.checkins.Update(ctx, row); err != nil {
		return err
	}
	if !accepted {
		_, err := s.client.SendText(chatID, msgAnswerAlreadyRecorded)
		return err
	}
	reply := msgCheckinThanksDone
	if answer == parse.AnswerNotYet {
		reply = msgCheckinThanksNotYet
	}
	_, err = s.client.SendText(chatID, reply)
	return err
}

func (s *ReplyService) recordVisitAnswer(ctx context.Context, chatID string, row *reminderlog.VisitLog, answer string) error {
	accepted := row.Record(answer, s.opts.MaxPollResponsesPerDay)
	if err := s.visits.Update(ctx, row); err != nil {
		return err
	}
	if !accepted {
		_, err := s.client.SendText(chatID, msgAnswerAlreadyRecorded)
		return err
	}
	reply := msgCheckinThanksDone
	if answer == parse.AnswerNotYet {
		reply = msgCheckinThanksNotYet
	}
	_, err := s.client.SendText(chatID, reply)
	return err
}

// HandleSelection processes a structured answer carrying the prompt
// identifier it replies to. Attribution order: delivery poll, visit polls,
// then the daily check-in poll.
func (s *ReplyService) HandleSelection(ctx context.Context, chatID, promptID, optionLabel string, now time.Time) error {
	sub, err := s.subjects.GetByChatID(ctx, chatID)
	if errors.Is(err, idb.ErrSubjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subject %s: %w", chatID, err)
	}
	if sub.IsBlocked {
		return nil
	}

	answer, ok := parse.CheckinAnswer(optionLabel)
	if !ok {
		return nil
	}

	if sub.Delivery.LastPromptID.Valid && sub.Delivery.LastPromptID.String == promptID {
		return s.recordDeliveryAnswer(ctx, sub, answer == parse.AnswerDone, now)
	}

	rows, err := s.visits.ListBySubject(ctx, chatID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.PromptID.Valid && row.PromptID.String == promptID {
			return s.recordVisitAnswer(ctx, chatID, row, answer)
		}
	}

	if sub.Checkin.LastPromptID.Valid && sub.Checkin.LastPromptID.String == promptID {
		day := timeutil.DayKey(now)
		if sub.Checkin.LastSentDay.Valid {
			day = sub.Checkin.LastSentDay.String
		}
		return s.recordCheckinAnswer(ctx, chatID, day, answer)
	}

	// Stale prompt from a superseded poll; fall back to free-text routing.
	handled, err := s.handleCheckinAnswer(ctx, sub, optionLabel, now)
	if err != nil || handled {
		return err
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
