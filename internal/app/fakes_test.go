package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
	idb "github.com/azrahudaya/remindcare/internal/infra/database"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fakeSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]*subject.Subject
}

func newFakeSubjectRepo() *fakeSubjectRepo {
	return &fakeSubjectRepo{subjects: make(map[string]*subject.Subject)}
}

func (r *fakeSubjectRepo) Create(ctx context.Context, s *subject.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[s.ChatID]; ok {
		return fmt.Errorf("duplicate subject %s", s.ChatID)
	}
	s.ID = int64(len(r.subjects) + 1)
	copied := *s
	r.subjects[s.ChatID] = &copied
	return nil
}

func (r *fakeSubjectRepo) GetByChatID(ctx context.Context, chatID string) (*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[chatID]
	if !ok {
		return nil, idb.ErrSubjectNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSubjectRepo) Update(ctx context.Context, s *subject.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[s.ChatID]; !ok {
		return idb.ErrSubjectNotFound
	}
	copied := *s
	r.subjects[s.ChatID] = &copied
	return nil
}

func (r *fakeSubjectRepo) Delete(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[chatID]; !ok {
		return idb.ErrSubjectNotFound
	}
	delete(r.subjects, chatID)
	return nil
}

func (r *fakeSubjectRepo) ListSchedulable(ctx context.Context) ([]*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*subject.Subject
	for _, s := range r.subjects {
		if s.Phase == subject.PhaseActive && !s.IsBlocked {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeSubjectRepo) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*subject.Subject
	for _, s := range r.subjects {
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSubjectRepo) Stats(ctx context.Context) (subject.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats subject.Stats
	for _, s := range r.subjects {
		stats.Total++
		switch s.Phase {
		case subject.PhaseActive:
			stats.Active++
		case subject.PhasePaused:
			stats.Paused++
		case subject.PhaseCompleted:
			stats.Completed++
		}
		if s.IsAllowed {
			stats.Allowed++
		}
		if s.IsBlocked {
			stats.Blocked++
		}
	}
	return stats, nil
}

type fakeCheckinRepo struct {
	mu   sync.Mutex
	logs map[string]*reminderlog.CheckinLog
}

func newFakeCheckinRepo() *fakeCheckinRepo {
	return &fakeCheckinRepo{logs: make(map[string]*reminderlog.CheckinLog)}
}

func checkinKey(chatID, day string) string { return chatID + "|" + day }

func (r *fakeCheckinRepo) Ensure(ctx context.Context, chatID, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := checkinKey(chatID, day)
	if _, ok := r.logs[key]; !ok {
		r.logs[key] = &reminderlog.CheckinLog{ID: int64(len(r.logs) + 1), ChatID: chatID, Day: day}
	}
	return nil
}

func (r *fakeCheckinRepo) Get(ctx context.Context, chatID, day string) (*reminderlog.CheckinLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[checkinKey(chatID, day)]
	if !ok {
		return nil, idb.ErrCheckinLogNotFound
	}
	copied := *l
	return &copied, nil
}

func (r *fakeCheckinRepo) Update(ctx context.Context, log *reminderlog.CheckinLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := checkinKey(log.ChatID, log.Day)
	if _, ok := r.logs[key]; !ok {
		return idb.ErrCheckinLogNotFound
	}
	copied := *log
	r.logs[key] = &copied
	return nil
}

func (r *fakeCheckinRepo) PurgeOlderThan(ctx context.Context, cutoffDay string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for key, l := range r.logs {
		if l.Day < cutoffDay {
			delete(r.logs, key)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeCheckinRepo) ListBySubject(ctx context.Context, chatID string) ([]*reminderlog.CheckinLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminderlog.CheckinLog
	for _, l := range r.logs {
		if l.ChatID == chatID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeCheckinRepo) ListRecent(ctx context.Context, limit int) ([]*reminderlog.CheckinLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminderlog.CheckinLog
	for _, l := range r.logs {
		copied := *l
		out = append(out, &copied)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCheckinRepo) CountByResponseOnDay(ctx context.Context, day, response string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, l := range r.logs {
		if l.Day == day && l.Response.Valid && l.Response.String == response {
			count++
		}
	}
	return count, nil
}

func (r *fakeCheckinRepo) DeleteBySubject(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.logs {
		if l.ChatID == chatID {
			delete(r.logs, key)
		}
	}
	return nil
}

type fakeVisitRepo struct {
	mu   sync.Mutex
	rows map[string]*reminderlog.VisitLog
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{rows: make(map[string]*reminderlog.VisitLog)}
}

func visitKey(chatID, code string) string { return chatID + "|" + code }

func (r *fakeVisitRepo) BulkEnsure(ctx context.Context, logs []*reminderlog.VisitLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range logs {
		key := visitKey(v.ChatID, v.Code)
		if _, ok := r.rows[key]; ok {
			continue
		}
		copied := *v
		copied.ID = int64(len(r.rows) + 1)
		r.rows[key] = &copied
	}
	return nil
}

func (r *fakeVisitRepo) Get(ctx context.Context, chatID, code string) (*reminderlog.VisitLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[visitKey(chatID, code)]
	if !ok {
		return nil, idb.ErrVisitLogNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeVisitRepo) Update(ctx context.Context, v *reminderlog.VisitLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := visitKey(v.ChatID, v.Code)
	if _, ok := r.rows[key]; !ok {
		return idb.ErrVisitLogNotFound
	}
	copied := *v
	r.rows[key] = &copied
	return nil
}

func (r *fakeVisitRepo) ListBySubject(ctx context.Context, chatID string) ([]*reminderlog.VisitLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminderlog.VisitLog
	for _, v := range r.rows {
		if v.ChatID == chatID {
			copied := *v
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}

func (r *fakeVisitRepo) DeleteBySubject(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, v := range r.rows {
		if v.ChatID == chatID {
			delete(r.rows, key)
		}
	}
	return nil
}

type sentMessage struct {
	ChatID  string
	Text    string
	Options []string // nil for plain text
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sentMessage
	nextID   int
	failNext int // fail this many upcoming sends
}

func (c *fakeClient) SendText(chatID, text string) (string, error) {
	return c.send(chatID, text, nil)
}

func (c *fakeClient) SendPrompt(chatID, question string, options []string) (string, error) {
	return c.send(chatID, question, options)
}

func (c *fakeClient) send(chatID, text string, options []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return "", fmt.Errorf("transport unavailable")
	}
	c.nextID++
	c.sent = append(c.sent, sentMessage{ChatID: chatID, Text: text, Options: options})
	return fmt.Sprintf("%d", c.nextID), nil
}

func (c *fakeClient) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.Text)
	}
	return out
}

func (c *fakeClient) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1].Text
}

func (c *fakeClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}
