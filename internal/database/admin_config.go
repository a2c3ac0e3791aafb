package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"visado/internal/models"
)

// GetAdminConfig returns the persisted classifier configuration, or
// the built-in defaults before the first save.
func (db *DB) GetAdminConfig(ctx context.Context) (*models.AdminConfig, error) {
	var cfg models.AdminConfig
	err := db.QueryRowContext(ctx,
		`SELECT ai_context, max_questions, updated_at FROM admin_config WHERE id = 1`).
		Scan(&cfg.AIContext, &cfg.MaxQuestions, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.AdminConfig{
			AIContext:    models.DefaultAIContext,
			MaxQuestions: models.DefaultMaxQuestions,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin config: %w", err)
	}
	return &cfg, nil
}

func (db *DB) SaveAdminConfig(ctx context.Context, cfg *models.AdminConfig) error {
	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO admin_config (id, ai_context, max_questions, updated_at)
         VALUES (1, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            ai_context = excluded.ai_context,
            max_questions = excluded.max_questions,
            updated_at = excluded.updated_at`,
		cfg.AIContext, cfg.MaxQuestions, now)
	if err != nil {
		return fmt.Errorf("failed to save admin config: %w", err)
	}
	cfg.UpdatedAt = now
	return nil
}

// GetCalendarCredentials loads the persisted Google Calendar
// connection; ErrCalendarNotConnected when none was ever saved.
func (db *DB) GetCalendarCredentials(ctx context.Context) (*models.CalendarCredentials, error) {
	var c models.CalendarCredentials
	err := db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, calendar_id, account_email, updated_at
         FROM calendar_credentials WHERE id = 1`).
		Scan(&c.AccessToken, &c.RefreshToken, &c.CalendarID, &c.AccountEmail, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCalendarNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar credentials: %w", err)
	}
	return &c, nil
}

func (db *DB) SaveCalendarCredentials(ctx context.Context, c *models.CalendarCredentials) error {
	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO calendar_credentials (id, access_token, refresh_token, calendar_id, account_email, updated_at)
         VALUES (1, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            access_token = excluded.access_token,
            refresh_token = excluded.refresh_token,
            calendar_id = excluded.calendar_id,
            account_email = excluded.account_email,
            updated_at = excluded.updated_at`,
		c.AccessToken, c.RefreshToken, c.CalendarID, c.AccountEmail, now)
	if err != nil {
		return fmt.Errorf("failed to save calendar credentials: %w", err)
	}
	c.UpdatedAt = now
	return nil
}

func (db *DB) DeleteCalendarCredentials(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM calendar_credentials WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete calendar credentials: %w", err)
	}
	return nil
}
