// Package database holds the Postgres persistence implementations behind the
// domain repository interfaces, plus schema bootstrap.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Sentinel errors returned by lookups; callers branch on these instead of
// inspecting sql.ErrNoRows.
var (
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrCheckinLogNotFound = errors.New("check-in log not found")
	ErrVisitLogNotFound   = errors.New("visit log not found")
)

// NewPostgresConnection opens and verifies a Postgres connection pool.
func NewPostgresConnection(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables when they do not exist yet. The schema is
// additive only; migrations beyond that are handled out of band.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subjects (
			id BIGSERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL UNIQUE,
			phase TEXT NOT NULL,
			onboarding_step INT NOT NULL DEFAULT 0,
			name TEXT,
			age TEXT,
			pregnancy_number TEXT,
			lmp_raw TEXT,
			lmp_day TEXT,
			routine_meds BOOLEAN,
			tea BOOLEAN,
			reminder_person TEXT,
			allow_reminders BOOLEAN,
			reminder_time TEXT,
			checkin_text_sent_day TEXT,
			checkin_last_sent_day TEXT,
			checkin_last_prompt_id TEXT,
			labor_last_sent_day TEXT,
			delivery_intro_day TEXT,
			delivery_early_sent_day TEXT,
			delivery_estimate_sent_day TEXT,
			delivery_plus_three_sent_day TEXT,
			delivery_answered BOOLEAN,
			delivery_answered_at TIMESTAMPTZ,
			delivery_last_prompt_id TEXT,
			delivery_data_step INT NOT NULL DEFAULT 0,
			delivery_day TEXT,
			delivery_time TEXT,
			delivery_data_completed_at TIMESTAMPTZ,
			postpartum_education_sent_at TIMESTAMPTZ,
			checkin_retry_last_attempt_at TIMESTAMPTZ,
			checkin_retry_failures INT NOT NULL DEFAULT 0,
			delivery_retry_last_attempt_at TIMESTAMPTZ,
			delivery_retry_failures INT NOT NULL DEFAULT 0,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_allowed BOOLEAN NOT NULL DEFAULT TRUE,
			is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS checkin_logs (
			id BIGSERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL,
			day TEXT NOT NULL,
			response TEXT,
			done_count INT NOT NULL DEFAULT 0,
			not_yet_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (chat_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS visit_logs (
			id BIGSERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL,
			code TEXT NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			explainer_sent_at TIMESTAMPTZ,
			prompt_sent_at TIMESTAMPTZ,
			prompt_id TEXT,
			last_attempt_at TIMESTAMPTZ,
			failures INT NOT NULL DEFAULT 0,
			response TEXT,
			done_count INT NOT NULL DEFAULT 0,
			not_yet_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (chat_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkin_logs_day ON checkin_logs (day)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_logs_due_at ON visit_logs (due_at)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
