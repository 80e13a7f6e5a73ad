package repository

import (
	"context"
	"database/sql"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

// ReminderRepository handles reminder settings rows
type ReminderRepository struct {
	q database.Querier
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(q database.Querier) *ReminderRepository {
	return &ReminderRepository{q: q}
}

// ListReminderSettings returns every stored row
func (r *ReminderRepository) ListReminderSettings(ctx context.Context) ([]models.ReminderSettings, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT account_id, enabled, frequency, time, last_shown
		FROM reminder_settings
		ORDER BY account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder settings: %w", err)
	}
	defer rows.Close()

	var out []models.ReminderSettings
	for rows.Next() {
		var s models.ReminderSettings
		var lastShown sql.NullTime
		if err := rows.Scan(&s.AccountID, &s.Enabled, &s.Frequency, &s.Time, &lastShown); err != nil {
			return nil, fmt.Errorf("failed to scan reminder settings: %w", err)
		}
		s.LastShown = timePtr(lastShown)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceReminderSettings deletes and reinserts the account's row. Run it inside a tx.
func (r *ReminderRepository) ReplaceReminderSettings(ctx context.Context, s models.ReminderSettings) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM reminder_settings WHERE account_id = ?", s.AccountID); err != nil {
		return fmt.Errorf("failed to clear reminder settings: %w", err)
	}
	query := `
		INSERT INTO reminder_settings (account_id, enabled, frequency, time, last_shown)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query, s.AccountID, s.Enabled, s.Frequency, s.Time, nullTime(s.LastShown))
	if err != nil {
		return fmt.Errorf("failed to save reminder settings: %w", err)
	}
	return nil
}
