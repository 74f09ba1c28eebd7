package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idb "github.com/azrahudaya/remindcare/internal/infra/database"

	"github.com/azrahudaya/remindcare/internal/domain/parse"
	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/schedule"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

type replyFixture struct {
	subjects *fakeSubjectRepo
	checkins *fakeCheckinRepo
	visits   *fakeVisitRepo
	client   *fakeClient
	svc      *ReplyService
	loc      *time.Location
	now      time.Time
}

func newReplyFixture(t *testing.T) *replyFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	f := &replyFixture{
		subjects: newFakeSubjectRepo(),
		checkins: newFakeCheckinRepo(),
		visits:   newFakeVisitRepo(),
		client:   &fakeClient{},
		loc:      loc,
		now:      time.Date(2024, 9, 10, 9, 0, 0, 0, loc),
	}
	admin := NewAdminService(f.subjects, f.checkins, testLogger())
	f.svc = NewReplyService(f.subjects, f.checkins, f.visits, f.client, admin, testLogger(), ReplyOptions{
		MaxPollResponsesPerDay: 2,
		DeliveryPollStartWeek:  39,
		AdminChatIDs:           []string{"628999"},
	})
	return f
}

func (f *replyFixture) addSubject(t *testing.T, sub *subject.Subject) {
	t.Helper()
	require.NoError(t, f.subjects.Create(context.Background(), sub))
}

func (f *replyFixture) reload(t *testing.T, chatID string) *subject.Subject {
	t.Helper()
	sub, err := f.subjects.GetByChatID(context.Background(), chatID)
	require.NoError(t, err)
	return sub
}

func (f *replyFixture) text(t *testing.T, chatID, text string) {
	t.Helper()
	require.NoError(t, f.svc.HandleText(context.Background(), chatID, text, f.now))
}

func TestNewSenderGreetingGetsWelcome(t *testing.T) {
	f := newReplyFixture(t)

	f.text(t, "628111", "halo")

	assert.Equal(t, msgWelcome, f.client.lastText())
	_, err := f.subjects.GetByChatID(context.Background(), "628111")
	assert.ErrorIs(t, err, idb.ErrSubjectNotFound)
}

func TestNewSenderStartsOnboarding(t *testing.T) {
	f := newReplyFixture(t)

	f.text(t, "628111", "start")

	sub := f.reload(t, "628111")
	assert.Equal(t, subject.PhaseOnboarding, sub.Phase)
	assert.Equal(t, 1, sub.OnboardingStep)
	assert.Equal(t, onboardingQuestions[0].Text, f.client.lastText())
}

func TestAllowlistBlocksUnknownSenders(t *testing.T) {
	f := newReplyFixture(t)
	f.svc.opts.EnforceAllowlist = true
	f.svc.opts.AllowlistChatIDs = []string{"628222"}

	f.text(t, "628111", "start")

	assert.Equal(t, msgNotAllowed, f.client.lastText())
	_, err := f.subjects.GetByChatID(context.Background(), "628111")
	assert.ErrorIs(t, err, idb.ErrSubjectNotFound)
}

func TestOnboardingFullFlow(t *testing.T) {
	f := newReplyFixture(t)

	f.text(t, "628111", "mulai")
	answers := []string{"Siti", "27", "2", "01-01-2024", "ya", "tidak", "suami", "ya", "7.30"}
	for _, answer := range answers {
		f.text(t, "628111", answer)
	}

	sub := f.reload(t, "628111")
	assert.Equal(t, subject.PhaseActive, sub.Phase)
	assert.Zero(t, sub.OnboardingStep)
	assert.Equal(t, "Siti", sub.Profile.Name.String)
	assert.Equal(t, "2024-01-01", sub.Profile.LMPDay.String)
	assert.True(t, sub.Profile.RoutineMeds.Bool)
	assert.False(t, sub.Profile.Tea.Bool)
	assert.True(t, sub.Profile.AllowReminders.Bool)
	assert.Equal(t, "07:30", sub.Profile.ReminderTime.String)
	// 07:30 already passed at 09:00, so today's reminder is suppressed.
	assert.Equal(t, timeutil.DayKey(f.now), sub.Checkin.LastSentDay.String)
}

func TestOnboardingInvalidAnswersReprompt(t *testing.T) {
	f := newReplyFixture(t)
	f.text(t, "628111", "mulai")
	f.text(t, "628111", "Siti")
	f.text(t, "628111", "27")
	f.text(t, "628111", "2")

	f.text(t, "628111", "kemarin")

	assert.Equal(t, msgDateHint, f.client.lastText())
	sub := f.reload(t, "628111")
	assert.Equal(t, 4, sub.OnboardingStep)
}

func TestOnboardingDeclineRemindersShortCircuits(t *testing.T) {
	f := newReplyFixture(t)
	f.text(t, "628111", "mulai")
	answers := []string{"Siti", "27", "2", "01-01-2024", "ya", "tidak", "suami"}
	for _, answer := range answers {
		f.text(t, "628111", answer)
	}

	f.text(t, "628111", "tidak")

	sub := f.reload(t, "628111")
	assert.Equal(t, subject.PhaseActive, sub.Phase)
	assert.False(t, sub.Profile.AllowReminders.Bool)
	assert.Equal(t, msgRemindersDeclined, f.client.lastText())
}

func TestCommandsAvailableDuringOnboarding(t *testing.T) {
	f := newReplyFixture(t)
	f.text(t, "628111", "mulai")

	f.text(t, "628111", "menu")

	assert.Equal(t, msgMenu, f.client.lastText())
	sub := f.reload(t, "628111")
	assert.Equal(t, 1, sub.OnboardingStep)
}

func TestStopAndChangeTime(t *testing.T) {
	f := newReplyFixture(t)
	sub := activeSubject("628111", "2024-01-01", "08:00")
	f.addSubject(t, sub)

	f.text(t, "628111", "ubah jam 17.00")
	reloaded := f.reload(t, "628111")
	assert.Equal(t, "17:00", reloaded.Profile.ReminderTime.String)

	f.text(t, "628111", "stop")
	reloaded = f.reload(t, "628111")
	assert.Equal(t, subject.PhasePaused, reloaded.Phase)
	assert.Equal(t, msgStopped, f.client.lastText())
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))
	require.NoError(t, f.checkins.Ensure(context.Background(), "628111", "2024-09-01"))

	f.text(t, "628111", "delete")
	assert.Equal(t, msgDeleteConfirm, f.client.lastText())
	_, err := f.subjects.GetByChatID(context.Background(), "628111")
	assert.NoError(t, err)

	f.text(t, "628111", "delete")
	assert.Equal(t, msgDeleted, f.client.lastText())
	_, err = f.subjects.GetByChatID(context.Background(), "628111")
	assert.ErrorIs(t, err, idb.ErrSubjectNotFound)
	logs, err := f.checkins.ListBySubject(context.Background(), "628111")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCheckinAnswerRecordedForToday(t *testing.T) {
	f := newReplyFixture(t)
	sub := activeSubject("628111", "2024-01-01", "08:00")
	sub.Checkin.LastSentDay = sql.NullString{String: timeutil.DayKey(f.now), Valid: true}
	f.addSubject(t, sub)

	f.text(t, "628111", "sudah bu")

	row, err := f.checkins.Get(context.Background(), "628111", timeutil.DayKey(f.now))
	require.NoError(t, err)
	assert.Equal(t, parse.AnswerDone, row.Response.String)
	assert.Equal(t, 1, row.DoneCount)
	assert.Equal(t, msgCheckinThanksDone, f.client.lastText())
}

func TestCheckinAnswerOverCapAcknowledged(t *testing.T) {
	f := newReplyFixture(t)
	sub := activeSubject("628111", "2024-01-01", "08:00")
	sub.Checkin.LastSentDay = sql.NullString{String: timeutil.DayKey(f.now), Valid: true}
	f.addSubject(t, sub)

	f.text(t, "628111", "sudah")
	f.text(t, "628111", "sudah")
	f.text(t, "628111", "sudah")

	assert.Equal(t, msgAnswerAlreadyRecorded, f.client.lastText())
	row, err := f.checkins.Get(context.Background(), "628111", timeutil.DayKey(f.now))
	require.NoError(t, err)
	assert.Equal(t, 2, row.DoneCount)
}

func TestCheckinAnswerRoutesToPromptedVisit(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2024-01-01", ""))
	require.NoError(t, f.visits.BulkEnsure(context.Background(), []*reminderlog.VisitLog{
		{ChatID: "628111", Code: "KF1", DueAt: f.now.Add(-2 * time.Hour)},
	}))
	row, err := f.visits.Get(context.Background(), "628111", "KF1")
	require.NoError(t, err)
	row.PromptSentAt = sql.NullTime{Time: f.now.Add(-time.Hour), Valid: true}
	row.PromptID = sql.NullString{String: "42", Valid: true}
	require.NoError(t, f.visits.Update(context.Background(), row))

	f.text(t, "628111", "belum")

	row, err = f.visits.Get(context.Background(), "628111", "KF1")
	require.NoError(t, err)
	assert.Equal(t, parse.AnswerNotYet, row.Response.String)
	assert.Equal(t, 1, row.NotYetCount)
}

func TestCheckinAnswerWithNothingPending(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))

	f.text(t, "628111", "sudah")

	assert.Equal(t, msgNothingPending, f.client.lastText())
}

func TestDeliveryAnswerOutranksCheckin(t *testing.T) {
	f := newReplyFixture(t)
	// Week 40 at the fixture date, so the delivery poll is pending.
	sub := activeSubject("628111", "2023-12-10", "08:00")
	sub.Checkin.LastSentDay = sql.NullString{String: timeutil.DayKey(f.now), Valid: true}
	f.addSubject(t, sub)

	f.text(t, "628111", "sudah lahir kemarin")

	reloaded := f.reload(t, "628111")
	assert.True(t, reloaded.Delivery.Confirmed())
	assert.Equal(t, 1, reloaded.DeliveryData.Step)
	assert.Equal(t, msgAskDeliveryDate, f.client.lastText())
	// The check-in log is untouched.
	_, err := f.checkins.Get(context.Background(), "628111", timeutil.DayKey(f.now))
	assert.ErrorIs(t, err, idb.ErrCheckinLogNotFound)
}

func TestDeliveryNotYetKeepsPolling(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2023-12-10", "08:00"))

	f.text(t, "628111", "belum lahir")

	reloaded := f.reload(t, "628111")
	assert.True(t, reloaded.Delivery.AnsweredNotYet())
	assert.False(t, reloaded.Delivery.Confirmed())
	assert.Equal(t, msgDeliveryNotYet, f.client.lastText())
}

func TestDeliveryAnswerIgnoredWithoutPendingStage(t *testing.T) {
	f := newReplyFixture(t)
	// Week 37: before the poll start week, no stage is pending.
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))

	f.text(t, "628111", "sudah lahir")

	reloaded := f.reload(t, "628111")
	assert.False(t, reloaded.Delivery.Answered.Valid)
	// The text degrades to check-in intent, which has nothing pending either.
	assert.Equal(t, msgNothingPending, f.client.lastText())
}

func TestDeliveryDataCollection(t *testing.T) {
	f := newReplyFixture(t)
	sub := activeSubject("628111", "2024-01-01", "08:00")
	sub.Delivery.Answered = sql.NullBool{Bool: true, Valid: true}
	sub.DeliveryData.Step = 1
	f.addSubject(t, sub)

	// Future dates and dates before the LMP are rejected.
	f.text(t, "628111", "11-09-2024")
	assert.Equal(t, msgDeliveryDateFuture, f.client.lastText())
	f.text(t, "628111", "01-12-2023")
	assert.Equal(t, msgDeliveryDateTooEarly, f.client.lastText())

	f.text(t, "628111", "09-09-2024")
	assert.Equal(t, msgAskDeliveryTime, f.client.lastText())

	f.text(t, "628111", "14:30")
	assert.Equal(t, msgDeliveryDataDone, f.client.lastText())

	reloaded := f.reload(t, "628111")
	assert.Equal(t, "2024-09-09", reloaded.DeliveryData.DeliveryDay.String)
	assert.Equal(t, "14:30", reloaded.DeliveryData.DeliveryTime.String)
	assert.True(t, reloaded.DeliveryData.MonitoringActive())

	rows, err := f.visits.ListBySubject(context.Background(), "628111")
	require.NoError(t, err)
	assert.Len(t, rows, len(schedule.Visits()))
}

func TestSelectionRoutedByPromptID(t *testing.T) {
	f := newReplyFixture(t)
	sub := activeSubject("628111", "2024-01-01", "08:00")
	sub.Checkin.LastSentDay = sql.NullString{String: timeutil.DayKey(f.now), Valid: true}
	sub.Checkin.LastPromptID = sql.NullString{String: "10", Valid: true}
	sub.Delivery.LastPromptID = sql.NullString{String: "20", Valid: true}
	f.addSubject(t, sub)

	// The delivery prompt ID wins even though a check-in is open today.
	require.NoError(t, f.svc.HandleSelection(context.Background(), "628111", "20", "Sudah melahirkan ✅", f.now))
	reloaded := f.reload(t, "628111")
	assert.True(t, reloaded.Delivery.Confirmed())

	// The check-in prompt ID routes to the daily log.
	require.NoError(t, f.svc.HandleSelection(context.Background(), "628111", "10", "Belum ⏳", f.now))
	row, err := f.checkins.Get(context.Background(), "628111", timeutil.DayKey(f.now))
	require.NoError(t, err)
	assert.Equal(t, parse.AnswerNotYet, row.Response.String)
}

func TestAdminCommandRequiresAdmin(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))

	f.text(t, "628111", "admin stats")

	assert.Equal(t, msgAdminOnly, f.client.lastText())
}

func TestAdminStatsAndAccessCommands(t *testing.T) {
	f := newReplyFixture(t)
	admin := activeSubject("628999", "2024-01-01", "08:00")
	admin.IsAdmin = true
	f.addSubject(t, admin)
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))

	f.text(t, "628999", "admin stats")
	assert.Contains(t, f.client.lastText(), "Total: 2")

	f.text(t, "628999", "admin block 628111")
	blocked := f.reload(t, "628111")
	assert.True(t, blocked.IsBlocked)

	// A blocked subject is ignored entirely.
	before := f.client.sentCount()
	f.text(t, "628111", "menu")
	assert.Equal(t, before, f.client.sentCount())

	f.text(t, "628999", "admin unblock 628111")
	assert.False(t, f.reload(t, "628111").IsBlocked)
}

func TestFallbackForUnrecognizedText(t *testing.T) {
	f := newReplyFixture(t)
	f.addSubject(t, activeSubject("628111", "2024-01-01", "08:00"))

	f.text(t, "628111", "apa kabar bot")

	assert.Equal(t, msgFallback, f.client.lastText())
}
