package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a goal expects a check-in
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// Privacy controls who can see a goal
type Privacy string

const (
	PrivacySolo   Privacy = "solo"
	PrivacyPublic Privacy = "public"
	PrivacySquad  Privacy = "squad"
)

// GoalStatus is the lifecycle state of a goal
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusFailed    GoalStatus = "failed"
	GoalStatusPaused    GoalStatus = "paused"

	// GoalStatusExpired is never stored. It is reported for active goals past their end date.
	GoalStatusExpired GoalStatus = "expired"
)

// WeekdayCodes are the accepted values for Goal.CustomDays
var WeekdayCodes = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

var goalTransitions = map[GoalStatus][]GoalStatus{
	GoalStatusActive: {GoalStatusCompleted, GoalStatusFailed, GoalStatusPaused},
	GoalStatusPaused: {GoalStatusActive, GoalStatusCompleted, GoalStatusFailed},
}

// CanTransition reports whether a goal may move from one status to another
func CanTransition(from, to GoalStatus) bool {
	return slices.Contains(goalTransitions[from], to)
}

// ValidFrequency reports whether f is a known frequency
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

// ValidPrivacy reports whether p is a known privacy mode
func ValidPrivacy(p Privacy) bool {
	switch p {
	case PrivacySolo, PrivacyPublic, PrivacySquad:
		return true
	}
	return false
}

// ValidGoalStatus reports whether s can be stored on a goal
func ValidGoalStatus(s GoalStatus) bool {
	switch s {
	case GoalStatusActive, GoalStatusCompleted, GoalStatusFailed, GoalStatusPaused:
		return true
	}
	return false
}

// Goal is a commitment with a time window and an optional wager
type Goal struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category"`
	Frequency      Frequency       `json:"frequency"`
	CustomDays     []string        `json:"custom_days,omitempty"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	WagerAmount    decimal.Decimal `json:"wager_amount"`
	Currency       string          `json:"currency"`
	Privacy        Privacy         `json:"privacy"`
	SquadID        string          `json:"squad_id,omitempty"`
	Status         GoalStatus      `json:"status"`
	CurrentStreak  int             `json:"current_streak"`
	TotalCheckIns  int             `json:"total_check_ins"`
	MissedCheckIns int             `json:"missed_check_ins"`
	TotalBurned    decimal.Decimal `json:"total_burned"`
	XPEarned       int             `json:"xp_earned"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastCheckIn    *time.Time      `json:"last_check_in,omitempty"`
}

// EffectiveStatus derives the status shown to users at the given instant
func (g *Goal) EffectiveStatus(now time.Time) GoalStatus {
	if g.Status == GoalStatusActive && now.After(g.EndDate) {
		return GoalStatusExpired
	}
	return g.Status
}

// CheckedInOn reports whether the last check-in falls on the same calendar day as t in loc
func (g *Goal) CheckedInOn(t time.Time, loc *time.Location) bool {
	if g.LastCheckIn == nil {
		return false
	}
	return DayKey(*g.LastCheckIn, loc) == DayKey(t, loc)
}

// Progress returns successful check-ins as a percentage of all check-ins
func (g *Goal) Progress() int {
	total := g.TotalCheckIns + g.MissedCheckIns
	if total == 0 {
		return 0
	}
	return int(float64(g.TotalCheckIns)/float64(total)*100 + 0.5)
}

// Clone returns a deep copy of the goal
func (g *Goal) Clone() *Goal {
	c := *g
	c.CustomDays = slices.Clone(g.CustomDays)
	if g.LastCheckIn != nil {
		t := *g.LastCheckIn
		c.LastCheckIn = &t
	}
	return &c
}
