package ledger

import (
	"context"
	"slices"

	"commit/internal/models"
)

// State is everything the ledger keeps in memory for one account
type State struct {
	Account      *models.Account           `json:"account"`
	Goals        []*models.Goal            `json:"goals"`
	CheckIns     []*models.CheckIn         `json:"check_ins"`
	Wallet       *models.Wallet            `json:"wallet,omitempty"`
	Achievements []*models.UserAchievement `json:"achievements"`
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	c := &State{
		Goals:        make([]*models.Goal, 0, len(s.Goals)),
		CheckIns:     slices.Clone(s.CheckIns),
		Achievements: slices.Clone(s.Achievements),
	}
	if s.Account != nil {
		acct := *s.Account
		c.Account = &acct
	}
	for _, g := range s.Goals {
		c.Goals = append(c.Goals, g.Clone())
	}
	if s.Wallet != nil {
		c.Wallet = s.Wallet.Clone()
	}
	return c
}

// Change is one atomic write. Check-ins, transactions and achievements are append-only.
type Change struct {
	Op        string
	AccountID string

	// NewAccount marks Account (and Wallet, if set) as inserts rather than updates.
	NewAccount bool
	Account    *models.Account

	NewGoals       []*models.Goal
	UpdatedGoals   []*models.Goal
	DeletedGoalIDs []string

	NewCheckIns []*models.CheckIn

	// NewWallet marks Wallet as an insert.
	NewWallet       bool
	Wallet          *models.Wallet
	NewTransactions []*models.Transaction

	NewAchievements []*models.UserAchievement
}

// Store persists ledger state. Commit must apply a Change entirely or not at all.
type Store interface {
	Load(ctx context.Context, accountID string) (*State, error)
	Commit(ctx context.Context, change *Change) error
}
