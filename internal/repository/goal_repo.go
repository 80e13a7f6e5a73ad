package repository

import (
	"context"
	"database/sql"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

const goalColumns = `id, account_id, title, description, category, frequency, custom_days, start_date, end_date,
	wager_amount, currency, privacy, squad_id, status, current_streak, total_check_ins, missed_check_ins,
	total_burned, xp_earned, last_check_in, created_at, updated_at`

// GoalRepository handles database operations for goals
type GoalRepository struct {
	q database.Querier
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(q database.Querier) *GoalRepository {
	return &GoalRepository{q: q}
}

// CreateGoal inserts a new goal
func (r *GoalRepository) CreateGoal(ctx context.Context, g *models.Goal) error {
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		g.ID, g.AccountID, g.Title, g.Description, g.Category, g.Frequency, joinDays(g.CustomDays),
		g.StartDate.UTC(), g.EndDate.UTC(), g.WagerAmount, g.Currency, g.Privacy, nullString(g.SquadID),
		g.Status, g.CurrentStreak, g.TotalCheckIns, g.MissedCheckIns, g.TotalBurned, g.XPEarned,
		nullTime(g.LastCheckIn), g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// UpdateGoal writes every mutable goal column
func (r *GoalRepository) UpdateGoal(ctx context.Context, g *models.Goal) error {
	query := `
		UPDATE goals
		SET title = ?, description = ?, category = ?, frequency = ?, custom_days = ?,
			start_date = ?, end_date = ?, wager_amount = ?, currency = ?, privacy = ?, squad_id = ?,
			status = ?, current_streak = ?, total_check_ins = ?, missed_check_ins = ?,
			total_burned = ?, xp_earned = ?, last_check_in = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`
	res, err := r.q.ExecContext(ctx, query,
		g.Title, g.Description, g.Category, g.Frequency, joinDays(g.CustomDays),
		g.StartDate.UTC(), g.EndDate.UTC(), g.WagerAmount, g.Currency, g.Privacy, nullString(g.SquadID),
		g.Status, g.CurrentStreak, g.TotalCheckIns, g.MissedCheckIns,
		g.TotalBurned, g.XPEarned, nullTime(g.LastCheckIn), g.UpdatedAt.UTC(),
		g.ID, g.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return expectOneRow(res, "goal", g.ID)
}

// DeleteGoal removes a goal. Its check-ins are removed by the foreign key.
func (r *GoalRepository) DeleteGoal(ctx context.Context, accountID, goalID string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM goals WHERE id = ? AND account_id = ?", goalID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return expectOneRow(res, "goal", goalID)
}

// ListGoalsByAccount returns an account's goals in creation order
func (r *GoalRepository) ListGoalsByAccount(ctx context.Context, accountID string) ([]*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE account_id = ? ORDER BY created_at, id`
	return r.listGoals(ctx, query, accountID)
}

// ListAllGoals returns every goal
func (r *GoalRepository) ListAllGoals(ctx context.Context) ([]*models.Goal, error) {
	return r.listGoals(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY created_at, id`)
}

func (r *GoalRepository) listGoals(ctx context.Context, query string, args ...any) ([]*models.Goal, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(row rowScanner) (*models.Goal, error) {
	var (
		g          models.Goal
		customDays string
		squadID    sql.NullString
		lastCheck  sql.NullTime
	)
	err := row.Scan(
		&g.ID, &g.AccountID, &g.Title, &g.Description, &g.Category, &g.Frequency, &customDays,
		&g.StartDate, &g.EndDate, &g.WagerAmount, &g.Currency, &g.Privacy, &squadID,
		&g.Status, &g.CurrentStreak, &g.TotalCheckIns, &g.MissedCheckIns,
		&g.TotalBurned, &g.XPEarned, &lastCheck, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.CustomDays = splitDays(customDays)
	g.SquadID = squadID.String
	g.LastCheckIn = timePtr(lastCheck)
	g.StartDate = g.StartDate.UTC()
	g.EndDate = g.EndDate.UTC()
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}
