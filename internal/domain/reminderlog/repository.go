package reminderlog

import (
	"context"
)

// CheckinRepository persists daily check-in rows.
type CheckinRepository interface {
	// Ensure inserts the (chatID, day) row if absent; re-entrant ticks that
	// hit an existing row are a no-op.
	Ensure(ctx context.Context, chatID, day string) error
	Get(ctx context.Context, chatID, day string) (*CheckinLog, error)
	Update(ctx context.Context, log *CheckinLog) error

	// PurgeOlderThan deletes rows with a day key before cutoffDay and returns
	// the number of rows removed.
	PurgeOlderThan(ctx context.Context, cutoffDay string) (int64, error)

	ListBySubject(ctx context.Context, chatID string) ([]*CheckinLog, error)
	ListRecent(ctx context.Context, limit int) ([]*CheckinLog, error)
	CountByResponseOnDay(ctx context.Context, day, response string) (int, error)
	DeleteBySubject(ctx context.Context, chatID string) error
}

// VisitRepository persists postpartum visit rows.
type VisitRepository interface {
	// BulkEnsure inserts the given rows, skipping any (chatID, code) pair
	// that already exists.
	BulkEnsure(ctx context.Context, rows []*VisitLog) error
	Get(ctx context.Context, chatID, code string) (*VisitLog, error)
	Update(ctx context.Context, row *VisitLog) error

	// ListBySubject returns the subject's visit rows ordered by due instant.
	ListBySubject(ctx context.Context, chatID string) ([]*VisitLog, error)
	DeleteBySubject(ctx context.Context, chatID string) error
}
