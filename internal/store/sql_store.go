package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"commit/internal/database"
	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/repository"
)

// SQLStore persists ledgers in a relational database. Every Commit runs in one transaction.
type SQLStore struct {
	db  *database.DB
	log *zap.Logger
}

// NewSQLStore creates a store over an already migrated database
func NewSQLStore(db *database.DB, log *zap.Logger) *SQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{db: db, log: log}
}

// DB exposes the underlying database
func (s *SQLStore) DB() *database.DB {
	return s.db
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load reads one account's full ledger state
func (s *SQLStore) Load(ctx context.Context, accountID string) (*ledger.State, error) {
	account, err := repository.NewProfileRepository(s.db).GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledger.ErrAccountNotFound
	}

	goals, err := repository.NewGoalRepository(s.db).ListGoalsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	checkIns, err := repository.NewCheckInRepository(s.db).ListCheckInsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	wallet, err := repository.NewWalletRepository(s.db).GetWalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	unlocked, err := repository.NewAchievementRepository(s.db).ListUserAchievements(ctx, accountID)
	if err != nil {
		return nil, err
	}

	state := &ledger.State{Account: account, Goals: goals, CheckIns: checkIns, Wallet: wallet}
	for i := range unlocked {
		state.Achievements = append(state.Achievements, &unlocked[i])
	}
	s.log.Debug("loaded ledger state",
		zap.String("account_id", accountID),
		zap.Int("goals", len(goals)),
		zap.Int("check_ins", len(checkIns)))
	return state, nil
}

// Commit writes a change atomically
func (s *SQLStore) Commit(ctx context.Context, ch *ledger.Change) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		profiles := repository.NewProfileRepository(tx)
		goals := repository.NewGoalRepository(tx)
		checkIns := repository.NewCheckInRepository(tx)
		wallets := repository.NewWalletRepository(tx)
		achievements := repository.NewAchievementRepository(tx)

		if ch.Account != nil {
			if ch.NewAccount {
				if err := profiles.CreateProfile(ctx, ch.Account); err != nil {
					return s.conflict(err)
				}
			} else if err := profiles.UpdateProfile(ctx, ch.Account); err != nil {
				return s.conflict(err)
			}
		}

		for _, g := range ch.NewGoals {
			if err := goals.CreateGoal(ctx, g); err != nil {
				return err
			}
		}
		for _, g := range ch.UpdatedGoals {
			if err := goals.UpdateGoal(ctx, g); err != nil {
				return err
			}
		}
		for _, id := range ch.DeletedGoalIDs {
			if err := goals.DeleteGoal(ctx, ch.AccountID, id); err != nil {
				return err
			}
		}

		for _, c := range ch.NewCheckIns {
			if err := checkIns.CreateCheckIn(ctx, c); err != nil {
				if s.db.IsUniqueViolation(err) {
					return ledger.ErrAlreadyCheckedIn
				}
				return err
			}
		}

		if ch.Wallet != nil {
			if ch.NewWallet || ch.NewAccount {
				if err := wallets.CreateWallet(ctx, ch.Wallet); err != nil {
					return err
				}
			} else if err := wallets.UpdateWallet(ctx, ch.Wallet); err != nil {
				return err
			}
		}
		for _, t := range ch.NewTransactions {
			if err := wallets.CreateTransaction(ctx, t); err != nil {
				return err
			}
		}

		for _, a := range ch.NewAchievements {
			if err := achievements.CreateUserAchievement(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) conflict(err error) error {
	if err != nil && s.db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// CreateUser inserts login credentials. The profile is written by the ledger bootstrap.
func (s *SQLStore) CreateUser(ctx context.Context, user *models.User, username string) error {
	taken, err := s.UsernameTaken(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("username %q: %w", username, ErrConflict)
	}
	return s.conflict(repository.NewUserRepository(s.db).CreateUser(ctx, user))
}

// UserByEmail returns the user with the email, or nil
func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return repository.NewUserRepository(s.db).GetUserByEmail(ctx, strings.ToLower(email))
}

// DeleteUser removes a user and everything it owns
func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	return repository.NewUserRepository(s.db).DeleteUser(ctx, id)
}

// UsernameTaken reports whether a profile already uses the username
func (s *SQLStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return repository.NewProfileRepository(s.db).UsernameTaken(ctx, username)
}

// CreateSquad inserts a squad together with its creator's membership
func (s *SQLStore) CreateSquad(ctx context.Context, squad *models.Squad, creator *models.SquadMember) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		squads := repository.NewSquadRepository(tx)
		if err := squads.CreateSquad(ctx, squad); err != nil {
			return s.conflict(err)
		}
		return squads.AddMember(ctx, creator)
	})
}

// SquadByID returns a squad with its active members, or nil
func (s *SQLStore) SquadByID(ctx context.Context, id string) (*models.SquadWithMembers, error) {
	squad, err := repository.NewSquadRepository(s.db).GetSquadByID(ctx, id)
	if err != nil || squad == nil {
		return nil, err
	}
	return s.withMembers(ctx, squad)
}

// SquadByCode returns the squad with the invite code, or nil
func (s *SQLStore) SquadByCode(ctx context.Context, code string) (*models.SquadWithMembers, error) {
	squad, err := repository.NewSquadRepository(s.db).GetSquadByCode(ctx, code)
	if err != nil || squad == nil {
		return nil, err
	}
	return s.withMembers(ctx, squad)
}

func (s *SQLStore) withMembers(ctx context.Context, squad *models.Squad) (*models.SquadWithMembers, error) {
	members, err := repository.NewSquadRepository(s.db).ListMembers(ctx, squad.ID)
	if err != nil {
		return nil, err
	}
	return &models.SquadWithMembers{Squad: *squad, Members: members}, nil
}

// JoinSquad adds a member, reactivating a previous membership if there is one
func (s *SQLStore) JoinSquad(ctx context.Context, m *models.SquadMember) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		squads := repository.NewSquadRepository(tx)
		existing, err := squads.GetMember(ctx, m.SquadID, m.AccountID)
		if err != nil {
			return err
		}
		if existing != nil {
			return squads.SetMemberStatus(ctx, m.SquadID, m.AccountID, models.MemberActive, m.JoinedAt)
		}
		return squads.AddMember(ctx, m)
	})
}

// LeaveSquad marks a membership inactive
func (s *SQLStore) LeaveSquad(ctx context.Context, squadID, accountID string, at time.Time) error {
	return repository.NewSquadRepository(s.db).SetMemberStatus(ctx, squadID, accountID, models.MemberInactive, at)
}

// SquadsForAccount returns the squads the account is an active member of
func (s *SQLStore) SquadsForAccount(ctx context.Context, accountID string) ([]models.SquadWithMembers, error) {
	squads, err := repository.NewSquadRepository(s.db).ListSquadsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]models.SquadWithMembers, 0, len(squads))
	for i := range squads {
		sq, err := s.withMembers(ctx, &squads[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *sq)
	}
	return out, nil
}

// Leaderboard returns the top accounts by XP
func (s *SQLStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return repository.NewProfileRepository(s.db).Leaderboard(ctx, limit)
}

// ReminderSettings returns every stored reminder preference
func (s *SQLStore) ReminderSettings(ctx context.Context) ([]models.ReminderSettings, error) {
	return repository.NewReminderRepository(s.db).ListReminderSettings(ctx)
}

// SaveReminderSettings writes one account's reminder preference
func (s *SQLStore) SaveReminderSettings(ctx context.Context, settings models.ReminderSettings) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		return repository.NewReminderRepository(tx).ReplaceReminderSettings(ctx, settings)
	})
}
