package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/security"
	"commit/internal/store"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserStore holds login credentials
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User, username string) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// AuthResult is returned by a successful signup or login
type AuthResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   models.Account `json:"account"`
}

// AuthService handles signup, login and token checks
type AuthService struct {
	users    UserStore
	registry *ledger.Registry
	tokens   *security.TokenIssuer
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, registry *ledger.Registry, tokens *security.TokenIssuer, log *zap.Logger) *AuthService {
	return &AuthService{users: users, registry: registry, tokens: tokens, log: log, now: time.Now}
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ledger.ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return &ledger.ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &ledger.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// Signup creates credentials and a fresh level 1 account, then logs the user in
func (s *AuthService) Signup(ctx context.Context, email, password, username string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := ledger.ValidateUsername(username); err != nil {
		return nil, err
	}

	existing, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &models.User{ID: ledger.NewID(), Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := s.users.CreateUser(ctx, user, username); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	l, err := s.registry.Bootstrap(ctx, models.NewAccount(user.ID, username, email, now))
	if err != nil {
		if delErr := s.users.DeleteUser(ctx, user.ID); delErr != nil {
			s.log.Error("failed to remove user after signup failure", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, err
	}
	s.log.Info("account created", zap.String("account_id", user.ID), zap.String("username", username))
	return s.issue(l.Account())
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	l, err := s.registry.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(l.Account())
}

// Authenticate validates a bearer token
func (s *AuthService) Authenticate(token string) (*models.AuthClaims, error) {
	return s.tokens.Parse(token)
}

func (s *AuthService) issue(account models.Account) (*AuthResult, error) {
	token, expires, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expires, Account: account}, nil
}
