package repository

import (
	"context"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

const checkInColumns = `id, goal_id, account_id, date, success, notes, xp_earned, amount_burned, created_at`

// CheckInRepository handles database operations for check-ins
type CheckInRepository struct {
	q database.Querier
}

// NewCheckInRepository creates a new check-in repository
func NewCheckInRepository(q database.Querier) *CheckInRepository {
	return &CheckInRepository{q: q}
}

// CreateCheckIn inserts a check-in. A second check-in for the same goal and day
// violates the (goal_id, date) unique constraint.
func (r *CheckInRepository) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	query := `INSERT INTO check_ins (` + checkInColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.GoalID, c.AccountID, c.Date, c.Success, c.Notes, c.XPEarned, c.AmountBurned, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}
	return nil
}

// ListCheckInsByAccount returns an account's check-ins, oldest first
func (r *CheckInRepository) ListCheckInsByAccount(ctx context.Context, accountID string) ([]*models.CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE account_id = ? ORDER BY created_at, id`
	return r.list(ctx, query, accountID)
}

// ListAllCheckIns returns every check-in
func (r *CheckInRepository) ListAllCheckIns(ctx context.Context) ([]*models.CheckIn, error) {
	return r.list(ctx, `SELECT `+checkInColumns+` FROM check_ins ORDER BY created_at, id`)
}

func (r *CheckInRepository) list(ctx context.Context, query string, args ...any) ([]*models.CheckIn, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var out []*models.CheckIn
	for rows.Next() {
		var c models.CheckIn
		err := rows.Scan(&c.ID, &c.GoalID, &c.AccountID, &c.Date, &c.Success, &c.Notes,
			&c.XPEarned, &c.AmountBurned, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, &c)
	}
	return out, rows.Err()
}
