package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/security"
	"commit/internal/store"
)

var (
	ErrSquadNotFound = errors.New("squad not found")
	ErrSquadFull     = errors.New("squad is full")
	ErrAlreadyMember = errors.New("already a member of this squad")
	ErrNotMember     = errors.New("not a member of this squad")
)

const (
	squadCodeLength   = 6
	squadCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeAttempts      = 5
	maxSquadCapacity  = 100
)

// SquadStore persists squads and memberships
type SquadStore interface {
	CreateSquad(ctx context.Context, squad *models.Squad, creator *models.SquadMember) error
	SquadByID(ctx context.Context, id string) (*models.SquadWithMembers, error)
	SquadByCode(ctx context.Context, code string) (*models.SquadWithMembers, error)
	JoinSquad(ctx context.Context, member *models.SquadMember) error
	LeaveSquad(ctx context.Context, squadID, accountID string, at time.Time) error
	SquadsForAccount(ctx context.Context, accountID string) ([]models.SquadWithMembers, error)
}

// SquadService handles squad creation and membership
type SquadService struct {
	squads SquadStore
	log    *zap.Logger
	now    func() time.Time
	code   func() (string, error)

	// serialises capacity checks with the join that follows
	joinMu sync.Mutex
}

// NewSquadService creates a new squad service
func NewSquadService(squads SquadStore, log *zap.Logger) *SquadService {
	return &SquadService{squads: squads, log: log, now: time.Now, code: generateSquadCode}
}

// SquadInput is the data needed to create a squad
type SquadInput struct {
	Name        string
	Description string
	MaxMembers  int
	IsPublic    bool
}

// CreateSquad creates a squad with the creator as its first member
func (s *SquadService) CreateSquad(ctx context.Context, creatorID string, in SquadInput) (*models.SquadWithMembers, error) {
	name := security.SanitizeText(in.Name)
	if name == "" {
		return nil, &ledger.ValidationError{Field: "name", Message: "squad name is required"}
	}
	capacity := in.MaxMembers
	if capacity == 0 {
		capacity = models.DefaultSquadCapacity
	}
	if capacity < 2 || capacity > maxSquadCapacity {
		return nil, &ledger.ValidationError{Field: "max_members", Message: fmt.Sprintf("max members must be between 2 and %d", maxSquadCapacity)}
	}

	now := s.now().UTC()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.code()
		if err != nil {
			return nil, err
		}
		squad := &models.Squad{
			ID:          ledger.NewID(),
			Name:        name,
			Description: security.SanitizeText(in.Description),
			Code:        code,
			CreatorID:   creatorID,
			TotalPot:    decimal.Zero,
			WeeklyPot:   decimal.Zero,
			MaxMembers:  capacity,
			IsPublic:    in.IsPublic,
			CreatedAt:   now,
		}
		creator := &models.SquadMember{
			ID:        ledger.NewID(),
			SquadID:   squad.ID,
			AccountID: creatorID,
			Role:      models.SquadRoleCreator,
			JoinedAt:  now,
			Status:    models.MemberActive,
		}
		err = s.squads.CreateSquad(ctx, squad, creator)
		if errors.Is(err, store.ErrConflict) {
			s.log.Debug("squad code collision, retrying", zap.String("code", code))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create squad: %w", err)
		}
		return &models.SquadWithMembers{Squad: *squad, Members: []models.SquadMember{*creator}}, nil
	}
	return nil, fmt.Errorf("failed to create squad: no free invite code after %d attempts", codeAttempts)
}

// JoinByCode adds the account to the squad with the invite code
func (s *SquadService) JoinByCode(ctx context.Context, accountID, code string) (*models.SquadWithMembers, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &ledger.ValidationError{Field: "code", Message: "squad code is required"}
	}

	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	squad, err := s.squads.SquadByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to find squad: %w", err)
	}
	if squad == nil {
		return nil, ErrSquadNotFound
	}
	for _, m := range squad.Members {
		if m.AccountID == accountID {
			return nil, ErrAlreadyMember
		}
	}
	if squad.IsFull() {
		return nil, ErrSquadFull
	}

	member := &models.SquadMember{
		ID:        ledger.NewID(),
		SquadID:   squad.Squad.ID,
		AccountID: accountID,
		Role:      models.SquadRoleMember,
		JoinedAt:  s.now().UTC(),
		Status:    models.MemberActive,
	}
	if err := s.squads.JoinSquad(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to join squad: %w", err)
	}
	squad.Members = append(squad.Members, *member)
	return squad, nil
}

// Leave removes the account from a squad
func (s *SquadService) Leave(ctx context.Context, accountID, squadID string) error {
	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	squad, err := s.squads.SquadByID(ctx, squadID)
	if err != nil {
		return fmt.Errorf("failed to find squad: %w", err)
	}
	if squad == nil {
		return ErrSquadNotFound
	}
	member := false
	for _, m := range squad.Members {
		if m.AccountID == accountID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotMember
	}
	if err := s.squads.LeaveSquad(ctx, squadID, accountID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to leave squad: %w", err)
	}
	return nil
}

// ListForAccount returns the squads the account belongs to
func (s *SquadService) ListForAccount(ctx context.Context, accountID string) ([]models.SquadWithMembers, error) {
	return s.squads.SquadsForAccount(ctx, accountID)
}

// IsMember reports whether the account is an active member of the squad
func (s *SquadService) IsMember(ctx context.Context, accountID, squadID string) (bool, error) {
	squad, err := s.squads.SquadByID(ctx, squadID)
	if err != nil || squad == nil {
		return false, err
	}
	for _, m := range squad.Members {
		if m.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func generateSquadCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(squadCodeAlphabet)))
	for i := 0; i < squadCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate squad code: %w", err)
		}
		b.WriteByte(squadCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
