package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
)

const subjectColumns = `id, chat_id, phase, onboarding_step,
	name, age, pregnancy_number, lmp_raw, lmp_day, routine_meds, tea,
	reminder_person, allow_reminders, reminder_time,
	checkin_text_sent_day, checkin_last_sent_day, checkin_last_prompt_id,
	labor_last_sent_day,
	delivery_intro_day, delivery_early_sent_day, delivery_estimate_sent_day,
	delivery_plus_three_sent_day, delivery_answered, delivery_answered_at,
	delivery_last_prompt_id,
	delivery_data_step, delivery_day, delivery_time, delivery_data_completed_at,
	postpartum_education_sent_at,
	checkin_retry_last_attempt_at, checkin_retry_failures,
	delivery_retry_last_attempt_at, delivery_retry_failures,
	is_admin, is_allowed, is_blocked, created_at, updated_at`

// PostgresSubjectRepository implements subject.Repository on Postgres.
type PostgresSubjectRepository struct {
	db *sql.DB
}

func NewPostgresSubjectRepository(db *sql.DB) *PostgresSubjectRepository {
	return &PostgresSubjectRepository{db: db}
}

func scanSubject(row interface{ Scan(dest ...any) error }) (*subject.Subject, error) {
	s := &subject.Subject{}
	err := row.Scan(
		&s.ID, &s.ChatID, &s.Phase, &s.OnboardingStep,
		&s.Profile.Name, &s.Profile.Age, &s.Profile.PregnancyNumber,
		&s.Profile.LMPRaw, &s.Profile.LMPDay, &s.Profile.RoutineMeds, &s.Profile.Tea,
		&s.Profile.ReminderPerson, &s.Profile.AllowReminders, &s.Profile.ReminderTime,
		&s.Checkin.TextSentDay, &s.Checkin.LastSentDay, &s.Checkin.LastPromptID,
		&s.Labor.LastSentDay,
		&s.Delivery.IntroDay, &s.Delivery.EarlySentDay, &s.Delivery.EstimateSentDay,
		&s.Delivery.PlusThreeSentDay, &s.Delivery.Answered, &s.Delivery.AnsweredAt,
		&s.Delivery.LastPromptID,
		&s.DeliveryData.Step, &s.DeliveryData.DeliveryDay, &s.DeliveryData.DeliveryTime,
		&s.DeliveryData.CompletedAt,
		&s.Postpartum.EducationSentAt,
		&s.CheckinRetry.LastAttemptAt, &s.CheckinRetry.Failures,
		&s.DeliveryRetry.LastAttemptAt, &s.DeliveryRetry.Failures,
		&s.IsAdmin, &s.IsAllowed, &s.IsBlocked, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresSubjectRepository) Create(ctx context.Context, s *subject.Subject) error {
	query := `
		INSERT INTO subjects (chat_id, phase, onboarding_step, is_admin, is_allowed, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		s.ChatID, s.Phase, s.OnboardingStep, s.IsAdmin, s.IsAllowed, s.IsBlocked, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create subject %s: %w", s.ChatID, err)
	}
	return nil
}

func (r *PostgresSubjectRepository) GetByChatID(ctx context.Context, chatID string) (*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE chat_id = $1`
	s, err := scanSubject(r.db.QueryRowContext(ctx, query, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subject %s: %w", chatID, err)
	}
	return s, nil
}

func (r *PostgresSubjectRepository) Update(ctx context.Context, s *subject.Subject) error {
	query := `
		UPDATE subjects SET
			phase = $2, onboarding_step = $3,
			name = $4, age = $5, pregnancy_number = $6, lmp_raw = $7, lmp_day = $8,
			routine_meds = $9, tea = $10, reminder_person = $11,
			allow_reminders = $12, reminder_time = $13,
			checkin_text_sent_day = $14, checkin_last_sent_day = $15, checkin_last_prompt_id = $16,
			labor_last_sent_day = $17,
			delivery_intro_day = $18, delivery_early_sent_day = $19,
			delivery_estimate_sent_day = $20, delivery_plus_three_sent_day = $21,
			delivery_answered = $22, delivery_answered_at = $23, delivery_last_prompt_id = $24,
			delivery_data_step = $25, delivery_day = $26, delivery_time = $27,
			delivery_data_completed_at = $28,
			postpartum_education_sent_at = $29,
			checkin_retry_last_attempt_at = $30, checkin_retry_failures = $31,
			delivery_retry_last_attempt_at = $32, delivery_retry_failures = $33,
			is_admin = $34, is_allowed = $35, is_blocked = $36,
			updated_at = NOW()
		WHERE chat_id = $1`
	result, err := r.db.ExecContext(ctx, query,
		s.ChatID, s.Phase, s.OnboardingStep,
		s.Profile.Name, s.Profile.Age, s.Profile.PregnancyNumber, s.Profile.LMPRaw, s.Profile.LMPDay,
		s.Profile.RoutineMeds, s.Profile.Tea, s.Profile.ReminderPerson,
		s.Profile.AllowReminders, s.Profile.ReminderTime,
		s.Checkin.TextSentDay, s.Checkin.LastSentDay, s.Checkin.LastPromptID,
		s.Labor.LastSentDay,
		s.Delivery.IntroDay, s.Delivery.EarlySentDay,
		s.Delivery.EstimateSentDay, s.Delivery.PlusThreeSentDay,
		s.Delivery.Answered, s.Delivery.AnsweredAt, s.Delivery.LastPromptID,
		s.DeliveryData.Step, s.DeliveryData.DeliveryDay, s.DeliveryData.DeliveryTime,
		s.DeliveryData.CompletedAt,
		s.Postpartum.EducationSentAt,
		s.CheckinRetry.LastAttemptAt, s.CheckinRetry.Failures,
		s.DeliveryRetry.LastAttemptAt, s.DeliveryRetry.Failures,
		s.IsAdmin, s.IsAllowed, s.IsBlocked,
	)
	if err != nil {
		return fmt.Errorf("update subject %s: %w", s.ChatID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject %s: %w", s.ChatID, err)
	}
	if affected == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func (r *PostgresSubjectRepository) Delete(ctx context.Context, chatID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete subject %s: %w", chatID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subject %s: %w", chatID, err)
	}
	if affected == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func (r *PostgresSubjectRepository) ListSchedulable(ctx context.Context) ([]*subject.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects
		WHERE phase = 'active' AND is_blocked = FALSE
		ORDER BY id`
	return r.list(ctx, query)
}

func (r *PostgresSubjectRepository) ListAll(ctx context.Context) ([]*subject.Subject, error) {
	return r.list(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY id`)
}

func (r *PostgresSubjectRepository) list(ctx context.Context, query string) ([]*subject.Subject, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []*subject.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresSubjectRepository) Stats(ctx context.Context) (subject.Stats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE phase = 'active'),
		COUNT(*) FILTER (WHERE phase = 'paused'),
		COUNT(*) FILTER (WHERE phase = 'completed'),
		COUNT(*) FILTER (WHERE is_allowed),
		COUNT(*) FILTER (WHERE is_blocked)
	FROM subjects`
	var stats subject.Stats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Active, &stats.Paused, &stats.Completed, &stats.Allowed, &stats.Blocked,
	)
	if err != nil {
		return subject.Stats{}, fmt.Errorf("subject stats: %w", err)
	}
	return stats, nil
}
