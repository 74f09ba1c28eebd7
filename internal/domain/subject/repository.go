package subject

import (
	"context"
)

// Stats are the aggregate counts shown by admin commands and the dashboard.
type Stats struct {
	Total     int
	Active    int
	Paused    int
	Completed int
	Allowed   int
	Blocked   int
}

// Repository defines persistence for Subject rows. All mutations are
// single-row read-modify-write operations keyed by chat ID.
type Repository interface {
	Create(ctx context.Context, s *Subject) error
	GetByChatID(ctx context.Context, chatID string) (*Subject, error)
	Update(ctx context.Context, s *Subject) error
	Delete(ctx context.Context, chatID string) error

	// ListSchedulable returns the subjects the scheduler tick evaluates:
	// phase active and not blocked.
	ListSchedulable(ctx context.Context) ([]*Subject, error)
	ListAll(ctx context.Context) ([]*Subject, error)
	Stats(ctx context.Context) (Stats, error)
}
