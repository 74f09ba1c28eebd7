package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
)

const checkinColumns = `id, chat_id, day, response, done_count, not_yet_count, created_at`

// PostgresCheckinRepository implements reminderlog.CheckinRepository.
type PostgresCheckinRepository struct {
	db *sql.DB
}

func NewPostgresCheckinRepository(db *sql.DB) *PostgresCheckinRepository {
	return &PostgresCheckinRepository{db: db}
}

func scanCheckin(row interface{ Scan(dest ...any) error }) (*reminderlog.CheckinLog, error) {
	l := &reminderlog.CheckinLog{}
	err := row.Scan(&l.ID, &l.ChatID, &l.Day, &l.Response, &l.DoneCount, &l.NotYetCount, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Ensure is idempotent: the unique (chat_id, day) key absorbs re-entrant
// ticks via ON CONFLICT DO NOTHING.
func (r *PostgresCheckinRepository) Ensure(ctx context.Context, chatID, day string) error {
	query := `
		INSERT INTO checkin_logs (chat_id, day)
		VALUES ($1, $2)
		ON CONFLICT (chat_id, day) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, chatID, day); err != nil {
		return fmt.Errorf("ensure check-in log %s/%s: %w", chatID, day, err)
	}
	return nil
}

func (r *PostgresCheckinRepository) Get(ctx context.Context, chatID, day string) (*reminderlog.CheckinLog, error) {
	query := `SELECT ` + checkinColumns + ` FROM checkin_logs WHERE chat_id = $1 AND day = $2`
	l, err := scanCheckin(r.db.QueryRowContext(ctx, query, chatID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckinLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get check-in log %s/%s: %w", chatID, day, err)
	}
	return l, nil
}

func (r *PostgresCheckinRepository) Update(ctx context.Context, log *reminderlog.CheckinLog) error {
	query := `
		UPDATE checkin_logs
		SET response = $3, done_count = $4, not_yet_count = $5
		WHERE chat_id = $1 AND day = $2`
	result, err := r.db.ExecContext(ctx, query, log.ChatID, log.Day, log.Response, log.DoneCount, log.NotYetCount)
	if err != nil {
		return fmt.Errorf("update check-in log %s/%s: %w", log.ChatID, log.Day, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update check-in log %s/%s: %w", log.ChatID, log.Day, err)
	}
	if affected == 0 {
		return ErrCheckinLogNotFound
	}
	return nil
}

func (r *PostgresCheckinRepository) PurgeOlderThan(ctx context.Context, cutoffDay string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM checkin_logs WHERE day < $1`, cutoffDay)
	if err != nil {
		return 0, fmt.Errorf("purge check-in logs before %s: %w", cutoffDay, err)
	}
	return result.RowsAffected()
}

func (r *PostgresCheckinRepository) ListBySubject(ctx context.Context, chatID string) ([]*reminderlog.CheckinLog, error) {
	query := `SELECT ` + checkinColumns + ` FROM checkin_logs WHERE chat_id = $1 ORDER BY day DESC`
	return r.list(ctx, query, chatID)
}

func (r *PostgresCheckinRepository) ListRecent(ctx context.Context, limit int) ([]*reminderlog.CheckinLog, error) {
	query := `SELECT ` + checkinColumns + ` FROM checkin_logs ORDER BY day DESC, id DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PostgresCheckinRepository) list(ctx context.Context, query string, args ...any) ([]*reminderlog.CheckinLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list check-in logs: %w", err)
	}
	defer rows.Close()

	var out []*reminderlog.CheckinLog
	for rows.Next() {
		l, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check-in log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresCheckinRepository) CountByResponseOnDay(ctx context.Context, day, response string) (int, error) {
	query := `SELECT COUNT(*) FROM checkin_logs WHERE day = $1 AND response = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, day, response).Scan(&count); err != nil {
		return 0, fmt.Errorf("count check-in logs on %s: %w", day, err)
	}
	return count, nil
}

func (r *PostgresCheckinRepository) DeleteBySubject(ctx context.Context, chatID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkin_logs WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete check-in logs for %s: %w", chatID, err)
	}
	return nil
}
