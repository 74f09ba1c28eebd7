// Package scheduler drives the periodic tick that evaluates every schedulable
// subject and fires whatever workflow sends are due.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// TickService is the application surface one tick drives.
type TickService interface {
	EligibleSubjects(ctx context.Context) ([]*subject.Subject, error)
	ProcessSubject(ctx context.Context, sub *subject.Subject, now time.Time) error
	PurgeOldLogs(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs the tick on a cron spec. Overlapping ticks are skipped
// rather than queued; subjects within a tick are processed with bounded
// concurrency.
type Scheduler struct {
	cron          *cron.Cron
	svc           TickService
	clock         *timeutil.Clock
	logger        *logrus.Entry
	tickSpec      string
	maxConcurrent int

	running        atomic.Bool
	lastCleanupDay string
}

func New(svc TickService, clock *timeutil.Clock, logger *logrus.Entry, tickSpec string, maxConcurrent int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(clock.Location())),
		svc:           svc,
		clock:         clock,
		logger:        logger,
		tickSpec:      tickSpec,
		maxConcurrent: maxConcurrent,
	}
}

// Start registers the tick job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.tickSpec, func() {
		s.runTick(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("spec", s.tickSpec).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for the in-flight tick to drain.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// runTick is a single evaluation pass. The atomic guard makes a slow tick
// skip the next firing instead of stacking up.
func (s *Scheduler) runTick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("Previous tick still running, skipping")
		return
	}
	defer s.running.Store(false)

	now := s.clock.Now()
	s.maybeCleanup(ctx, now)

	subjects, err := s.svc.EligibleSubjects(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Listing schedulable subjects failed")
		return
	}
	if len(subjects) == 0 {
		return
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for _, sub := range subjects {
		wg.Add(1)
		sem <- struct{}{}
		go func(sub *subject.Subject) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.WithFields(logrus.Fields{"chat_id": sub.ChatID, "panic": r}).
						Error("Recovered panic while processing subject")
				}
			}()
			if err := s.svc.ProcessSubject(ctx, sub, now); err != nil {
				s.logger.WithField("chat_id", sub.ChatID).WithError(err).Error("Processing subject failed")
			}
		}(sub)
	}
	wg.Wait()
}

// maybeCleanup runs log retention at most once per calendar day.
func (s *Scheduler) maybeCleanup(ctx context.Context, now time.Time) {
	day := timeutil.DayKey(now)
	if s.lastCleanupDay == day {
		return
	}
	s.lastCleanupDay = day
	removed, err := s.svc.PurgeOldLogs(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Log retention cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.WithField("rows", removed).Info("Old check-in logs purged")
	}
}
