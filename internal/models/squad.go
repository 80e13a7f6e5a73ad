package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSquadCapacity is used when a squad is created without a member limit
const DefaultSquadCapacity = 10

// SquadRole is a member's role inside a squad
type SquadRole string

const (
	SquadRoleCreator SquadRole = "creator"
	SquadRoleMember  SquadRole = "member"
)

// MemberStatus tracks whether a squad member is still participating
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Squad is a named group sharing goals and a pooled stake
type Squad struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Code        string          `json:"code"`
	CreatorID   string          `json:"creator_id"`
	GoalID      string          `json:"goal_id,omitempty"`
	TotalPot    decimal.Decimal `json:"total_pot"`
	WeeklyPot   decimal.Decimal `json:"weekly_pot"`
	MaxMembers  int             `json:"max_members"`
	IsPublic    bool            `json:"is_public"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SquadMember links an account to a squad
type SquadMember struct {
	ID             string       `json:"id"`
	SquadID        string       `json:"squad_id"`
	AccountID      string       `json:"account_id"`
	Role           SquadRole    `json:"role"`
	JoinedAt       time.Time    `json:"joined_at"`
	WeeklyXP       int          `json:"weekly_xp"`
	WeeklyCheckIns int          `json:"weekly_check_ins"`
	Status         MemberStatus `json:"status"`
}

// SquadWithMembers combines a squad with its active members
type SquadWithMembers struct {
	Squad   Squad         `json:"squad"`
	Members []SquadMember `json:"members"`
}

// IsFull reports whether the squad has reached its member limit
func (s *SquadWithMembers) IsFull() bool {
	return len(s.Members) >= s.Squad.MaxMembers
}
