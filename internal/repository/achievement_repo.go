package repository

import (
	"context"
	"database/sql"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

// AchievementRepository handles the achievement catalog and unlocks
type AchievementRepository struct {
	q database.Querier
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(q database.Querier) *AchievementRepository {
	return &AchievementRepository{q: q}
}

// SeedCatalog inserts catalog entries that are not present yet
func (r *AchievementRepository) SeedCatalog(ctx context.Context, catalog []models.Achievement) error {
	for _, a := range catalog {
		var count int
		err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM achievements WHERE id = ?", a.ID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check achievement %s: %w", a.ID, err)
		}
		if count > 0 {
			continue
		}
		query := `
			INSERT INTO achievements (id, name, description, icon, xp_reward, coin_reward,
				condition_type, condition_value, rarity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = r.q.ExecContext(ctx, query, a.ID, a.Name, a.Description, a.Icon, a.XPReward, a.CoinReward,
			a.ConditionType, a.ConditionValue, a.Rarity)
		if err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", a.ID, err)
		}
	}
	return nil
}

// ListCatalog returns every achievement definition
func (r *AchievementRepository) ListCatalog(ctx context.Context) ([]models.Achievement, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, description, icon, xp_reward, coin_reward, condition_type, condition_value, rarity
		FROM achievements
		ORDER BY condition_type, condition_value, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []models.Achievement
	for rows.Next() {
		var a models.Achievement
		err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.XPReward, &a.CoinReward,
			&a.ConditionType, &a.ConditionValue, &a.Rarity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateUserAchievement records an unlock
func (r *AchievementRepository) CreateUserAchievement(ctx context.Context, u *models.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (id, account_id, achievement_id, goal_id, unlocked_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query, u.ID, u.AccountID, u.AchievementID, nullString(u.GoalID), u.UnlockedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record achievement: %w", err)
	}
	return nil
}

// ListUserAchievements returns unlocks, oldest first. An empty accountID lists all accounts.
func (r *AchievementRepository) ListUserAchievements(ctx context.Context, accountID string) ([]models.UserAchievement, error) {
	query := `SELECT id, account_id, achievement_id, goal_id, unlocked_at FROM user_achievements`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY unlocked_at, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	var out []models.UserAchievement
	for rows.Next() {
		var (
			u      models.UserAchievement
			goalID sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.AccountID, &u.AchievementID, &goalID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		u.GoalID = goalID.String
		u.UnlockedAt = u.UnlockedAt.UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}
