package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

// UserRepository handles database operations for login credentials
type UserRepository struct {
	q database.Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(q database.Querier) *UserRepository {
	return &UserRepository{q: q}
}

// CreateUser inserts a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email address, or nil if there is none
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = ?
	`
	return r.getUser(ctx, query, email)
}

// GetUserByID retrieves a user by ID, or nil if there is none
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	return r.getUser(ctx, query, id)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user, oldest first
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and, through the foreign keys, everything it owns
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
