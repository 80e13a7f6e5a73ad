package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commit/internal/database"
	"commit/internal/models"
)

const profileColumns = `id, username, email, avatar, timezone, xp, coins, level, total_staked, total_earned,
	current_streak, longest_streak, created_at, last_active`

// ProfileRepository handles database operations for account profiles
type ProfileRepository struct {
	q database.Querier
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(q database.Querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// CreateProfile inserts a new profile. The matching user row must already exist.
func (r *ProfileRepository) CreateProfile(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.Avatar, a.Timezone, a.XP, a.Coins, a.Level,
		a.TotalStaked, a.TotalEarned, a.CurrentStreak, a.LongestStreak,
		a.CreatedAt.UTC(), a.LastActive.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfile writes every mutable profile column
func (r *ProfileRepository) UpdateProfile(ctx context.Context, a *models.Account) error {
	query := `
		UPDATE profiles
		SET username = ?, avatar = ?, timezone = ?, xp = ?, coins = ?, level = ?,
			total_staked = ?, total_earned = ?, current_streak = ?, longest_streak = ?,
			last_active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.q.ExecContext(ctx, query,
		a.Username, a.Avatar, a.Timezone, a.XP, a.Coins, a.Level,
		a.TotalStaked, a.TotalEarned, a.CurrentStreak, a.LongestStreak,
		a.LastActive.UTC(), time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectOneRow(res, "profile", a.ID)
}

// GetProfile retrieves a profile by account ID, or nil if there is none
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	a, err := scanProfile(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return a, nil
}

// UsernameTaken reports whether another account already uses the username
func (r *ProfileRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// ListProfiles returns every profile, oldest first
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]models.Account, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Leaderboard returns the top accounts by XP
func (r *ProfileRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT id, username, avatar, xp, level, current_streak
		FROM profiles
		ORDER BY xp DESC, created_at
		LIMIT ?
	`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.Username, &e.Avatar, &e.XP, &e.Level, &e.Streak); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanProfile(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.Avatar, &a.Timezone,
		&a.XP, &a.Coins, &a.Level, &a.TotalStaked, &a.TotalEarned,
		&a.CurrentStreak, &a.LongestStreak, &a.CreatedAt, &a.LastActive,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.LastActive = a.LastActive.UTC()
	return a, nil
}

// ErrRowNotFound is returned when an update matched no row
var ErrRowNotFound = errors.New("row not found")

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrRowNotFound)
	}
	return nil
}
