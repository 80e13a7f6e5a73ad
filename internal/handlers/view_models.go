package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/notify"
	"commit/internal/timeutil"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Timezone *string `json:"timezone"`
}

type AmountRequest struct {
	Amount int `json:"amount"`
}

type MoneyRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type MeResponse struct {
	Account       models.Account `json:"account"`
	LevelProgress float64        `json:"level_progress"`
	Wallet        *models.Wallet `json:"wallet,omitempty"`
}

type RemindersResponse struct {
	Settings notify.Settings       `json:"settings"`
	Counts   ledger.ReminderCounts `json:"counts"`
	Reminder *notify.Message       `json:"reminder,omitempty"`
}

type GoalRequest struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Category     string           `json:"category"`
	Frequency    models.Frequency `json:"frequency"`
	CustomDays   []string         `json:"custom_days"`
	StartDate    *time.Time       `json:"start_date"`
	EndDate      *time.Time       `json:"end_date"`
	DurationDays int              `json:"duration_days"`
	Period       timeutil.Period  `json:"period"`
	WagerAmount  decimal.Decimal  `json:"wager_amount"`
	Currency     string           `json:"currency"`
	Privacy      models.Privacy   `json:"privacy"`
	SquadID      string           `json:"squad_id"`
}

// GoalView is a goal as the client sees it, with expiry resolved
type GoalView struct {
	models.Goal
	EffectiveStatus models.GoalStatus `json:"effective_status"`
}

// CommandRequest carries one typed goal edit. Type picks which fields are read.
type CommandRequest struct {
	Type        string            `json:"type"`
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	StartDate   *time.Time        `json:"start_date"`
	EndDate     *time.Time        `json:"end_date"`
	WagerAmount *decimal.Decimal  `json:"wager_amount"`
	Currency    string            `json:"currency"`
	Privacy     models.Privacy    `json:"privacy"`
	SquadID     string            `json:"squad_id"`
	Frequency   models.Frequency  `json:"frequency"`
	CustomDays  []string          `json:"custom_days"`
	Category    string            `json:"category"`
	Status      models.GoalStatus `json:"status"`
}

type CheckInRequest struct {
	Success bool   `json:"success"`
	Notes   string `json:"notes"`
}

type CheckInResponse struct {
	ledger.CheckInResult
	Unlocked []models.Achievement `json:"unlocked,omitempty"`
}

type CountdownResponse struct {
	Remaining timeutil.TimeRemaining `json:"remaining"`
	Text      string                 `json:"text"`
}

type AchievementsResponse struct {
	Catalog  []models.Achievement     `json:"catalog"`
	Unlocked []models.UserAchievement `json:"unlocked"`
}

type SquadRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxMembers  int    `json:"max_members"`
	IsPublic    bool   `json:"is_public"`
}

type JoinSquadRequest struct {
	Code string `json:"code"`
}

// command converts the request into the ledger command named by Type
func (c CommandRequest) command() (ledger.GoalCommand, error) {
	switch c.Type {
	case "rename":
		return ledger.RenameGoal{Title: c.Title, Description: c.Description}, nil
	case "reschedule":
		if c.EndDate == nil {
			return nil, &ledger.ValidationError{Field: "end_date", Message: "end date is required"}
		}
		cmd := ledger.RescheduleGoal{EndDate: *c.EndDate}
		if c.StartDate != nil {
			cmd.StartDate = *c.StartDate
		}
		return cmd, nil
	case "change_wager":
		if c.WagerAmount == nil {
			return nil, &ledger.ValidationError{Field: "wager_amount", Message: "wager amount is required"}
		}
		return ledger.ChangeWager{Amount: *c.WagerAmount, Currency: c.Currency}, nil
	case "change_privacy":
		return ledger.ChangePrivacy{Privacy: c.Privacy, SquadID: c.SquadID}, nil
	case "change_schedule":
		return ledger.ChangeSchedule{Frequency: c.Frequency, CustomDays: c.CustomDays}, nil
	case "recategorize":
		return ledger.Recategorize{Category: c.Category}, nil
	case "set_status":
		return ledger.SetGoalStatus{Status: c.Status}, nil
	case "complete":
		return ledger.SetGoalStatus{Status: models.GoalStatusCompleted}, nil
	}
	return nil, &ledger.ValidationError{Field: "type", Message: "unknown command type"}
}

func goalView(g models.Goal, now time.Time) GoalView {
	return GoalView{Goal: g, EffectiveStatus: g.EffectiveStatus(now)}
}
