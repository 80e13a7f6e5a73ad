// Package store implements ledger persistence over SQL databases and key/value stores.
package store

import (
	"context"
	"errors"
	"time"

	"commit/internal/ledger"
	"commit/internal/models"
)

// ErrConflict is returned when a write collides with a unique record (email, username,
// invite code)
var ErrConflict = errors.New("record already exists")

// Backend is everything the server needs from a persistence variant
type Backend interface {
	ledger.Store

	CreateUser(ctx context.Context, user *models.User, username string) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	UsernameTaken(ctx context.Context, username string) (bool, error)

	CreateSquad(ctx context.Context, squad *models.Squad, creator *models.SquadMember) error
	SquadByID(ctx context.Context, id string) (*models.SquadWithMembers, error)
	SquadByCode(ctx context.Context, code string) (*models.SquadWithMembers, error)
	JoinSquad(ctx context.Context, member *models.SquadMember) error
	LeaveSquad(ctx context.Context, squadID, accountID string, at time.Time) error
	SquadsForAccount(ctx context.Context, accountID string) ([]models.SquadWithMembers, error)

	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)

	ReminderSettings(ctx context.Context) ([]models.ReminderSettings, error)
	SaveReminderSettings(ctx context.Context, settings models.ReminderSettings) error

	Close() error
}
