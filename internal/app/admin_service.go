package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azrahudaya/remindcare/internal/domain/parse"
	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
	"github.com/azrahudaya/remindcare/internal/domain/subject"
	idb "github.com/azrahudaya/remindcare/internal/infra/database"
)

// AdminService implements the operator commands reachable from chat and from
// the web dashboard.
type AdminService struct {
	subjects subject.Repository
	checkins reminderlog.CheckinRepository
	logger   *logrus.Entry
}

func NewAdminService(subjects subject.Repository, checkins reminderlog.CheckinRepository, logger *logrus.Entry) *AdminService {
	return &AdminService{subjects: subjects, checkins: checkins, logger: logger}
}

// Run executes one parsed admin command and returns the chat reply.
func (s *AdminService) Run(ctx context.Context, cmd *parse.AdminCommand) (string, error) {
	switch cmd.Action {
	case "help":
		return msgAdminHelp, nil
	case "stats":
		return s.statsReply(ctx)
	case "allow", "block", "unblock":
		if len(cmd.Args) != 1 {
			return msgAdminTargetFormat, nil
		}
		return s.setAccess(ctx, cmd.Args[0], cmd.Action)
	case "purge":
		if len(cmd.Args) != 2 || cmd.Args[0] != "logs" {
			return msgAdminUnknown, nil
		}
		days, err := strconv.Atoi(cmd.Args[1])
		if err != nil || days <= 0 {
			return msgAdminUnknown, nil
		}
		removed, err := s.PurgeLogs(ctx, days, time.Now())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Oke, %d baris log lebih tua dari %d hari dihapus. 🧹", removed, days), nil
	default:
		return msgAdminUnknown, nil
	}
}

// Stats returns the aggregate subject counts.
func (s *AdminService) Stats(ctx context.Context) (subject.Stats, error) {
	return s.subjects.Stats(ctx)
}

func (s *AdminService) statsReply(ctx context.Context) (string, error) {
	stats, err := s.subjects.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"📊 Statistik:\nTotal: %d\nAktif: %d\nJeda: %d\nSelesai: %d\nDiizinkan: %d\nDiblokir: %d",
		stats.Total, stats.Active, stats.Paused, stats.Completed, stats.Allowed, stats.Blocked,
	), nil
}

// setAccess flips a subject's allow/block flags, creating a placeholder row
// when the chat ID has never messaged the bot (pre-approval).
func (s *AdminService) setAccess(ctx context.Context, chatID, action string) (string, error) {
	sub, err := s.subjects.GetByChatID(ctx, chatID)
	if errors.Is(err, idb.ErrSubjectNotFound) {
		now := time.Now()
		sub = &subject.Subject{
			ChatID:         chatID,
			Phase:          subject.PhaseOnboarding,
			OnboardingStep: 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.subjects.Create(ctx, sub); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	switch action {
	case "allow":
		sub.IsAllowed = true
		sub.IsBlocked = false
	case "block":
		sub.IsBlocked = true
	case "unblock":
		sub.IsBlocked = false
	}
	if err := s.subjects.Update(ctx, sub); err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{"chat_id": chatID, "action": action}).Info("Access flag changed")
	return fmt.Sprintf("Oke, %s untuk %s. ✅", action, chatID), nil
}

// PurgeLogs deletes check-in rows older than the given number of days.
func (s *AdminService) PurgeLogs(ctx context.Context, days int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -days).Format("2006-01-02")
	return s.checkins.PurgeOlderThan(ctx, cutoff)
}
