package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/azrahudaya/remindcare/internal/domain/reminderlog"
)

const visitColumns = `id, chat_id, code, due_at, explainer_sent_at, prompt_sent_at,
	prompt_id, last_attempt_at, failures, response, done_count, not_yet_count, created_at`

// PostgresVisitRepository implements reminderlog.VisitRepository.
type PostgresVisitRepository struct {
	db *sql.DB
}

func NewPostgresVisitRepository(db *sql.DB) *PostgresVisitRepository {
	return &PostgresVisitRepository{db: db}
}

func scanVisit(row interface{ Scan(dest ...any) error }) (*reminderlog.VisitLog, error) {
	v := &reminderlog.VisitLog{}
	err := row.Scan(
		&v.ID, &v.ChatID, &v.Code, &v.DueAt, &v.ExplainerSentAt, &v.PromptSentAt,
		&v.PromptID, &v.LastAttemptAt, &v.Failures, &v.Response, &v.DoneCount, &v.NotYetCount, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// BulkEnsure inserts the rows inside one transaction, skipping pairs that
// already exist.
func (r *PostgresVisitRepository) BulkEnsure(ctx context.Context, logs []*reminderlog.VisitLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin visit insert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO visit_logs (chat_id, code, due_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, code) DO NOTHING`
	for _, v := range logs {
		if _, err := tx.ExecContext(ctx, query, v.ChatID, v.Code, v.DueAt, v.CreatedAt); err != nil {
			return fmt.Errorf("ensure visit log %s/%s: %w", v.ChatID, v.Code, err)
		}
	}
	return tx.Commit()
}

func (r *PostgresVisitRepository) Get(ctx context.Context, chatID, code string) (*reminderlog.VisitLog, error) {
	query := `SELECT ` + visitColumns + ` FROM visit_logs WHERE chat_id = $1 AND code = $2`
	v, err := scanVisit(r.db.QueryRowContext(ctx, query, chatID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit log %s/%s: %w", chatID, code, err)
	}
	return v, nil
}

func (r *PostgresVisitRepository) Update(ctx context.Context, v *reminderlog.VisitLog) error {
	query := `
		UPDATE visit_logs SET
			due_at = $3, explainer_sent_at = $4, prompt_sent_at = $5, prompt_id = $6,
			last_attempt_at = $7, failures = $8, response = $9,
			done_count = $10, not_yet_count = $11
		WHERE chat_id = $1 AND code = $2`
	result, err := r.db.ExecContext(ctx, query,
		v.ChatID, v.Code, v.DueAt, v.ExplainerSentAt, v.PromptSentAt, v.PromptID,
		v.LastAttemptAt, v.Failures, v.Response, v.DoneCount, v.NotYetCount,
	)
	if err != nil {
		return fmt.Errorf("update visit log %s/%s: %w", v.ChatID, v.Code, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit log %s/%s: %w", v.ChatID, v.Code, err)
	}
	if affected == 0 {
		return ErrVisitLogNotFound
	}
	return nil
}

func (r *PostgresVisitRepository) ListBySubject(ctx context.Context, chatID string) ([]*reminderlog.VisitLog, error) {
	query := `SELECT ` + visitColumns + ` FROM visit_logs WHERE chat_id = $1 ORDER BY due_at, code`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list visit logs for %s: %w", chatID, err)
	}
	defer rows.Close()

	var out []*reminderlog.VisitLog
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit log: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresVisitRepository) DeleteBySubject(ctx context.Context, chatID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM visit_logs WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete visit logs for %s: %w", chatID, err)
	}
	return nil
}
