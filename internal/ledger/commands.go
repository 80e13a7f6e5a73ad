package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"commit/internal/models"
)

// GoalCommand is one typed edit of a goal.
// Only the commands declared in this package satisfy it.
type GoalCommand interface {
	name() string
	apply(g *models.Goal) error
}

// RenameGoal changes the title and/or description. Nil fields are left alone.
type RenameGoal struct {
	Title       *string
	Description *string
}

func (RenameGoal) name() string { return "rename" }

func (c RenameGoal) apply(g *models.Goal) error {
	if c.Title == nil && c.Description == nil {
		return invalid("title", "nothing to change")
	}
	if c.Title != nil {
		title := strings.TrimSpace(*c.Title)
		if title == "" {
			return invalid("title", "title is required")
		}
		g.Title = title
	}
	if c.Description != nil {
		g.Description = strings.TrimSpace(*c.Description)
	}
	return nil
}

// RescheduleGoal moves the goal window
type RescheduleGoal struct {
	StartDate time.Time
	EndDate   time.Time
}

func (RescheduleGoal) name() string { return "reschedule" }

func (c RescheduleGoal) apply(g *models.Goal) error {
	start := c.StartDate
	if start.IsZero() {
		start = g.StartDate
	}
	if !c.EndDate.After(start) {
		return invalid("end_date", "end date must be after start date")
	}
	g.StartDate = start
	g.EndDate = c.EndDate
	return nil
}

// ChangeWager sets the amount burned on a missed check-in
type ChangeWager struct {
	Amount   decimal.Decimal
	Currency string
}

func (ChangeWager) name() string { return "change_wager" }

func (c ChangeWager) apply(g *models.Goal) error {
	if c.Amount.IsNegative() {
		return invalid("wager_amount", "wager must not be negative")
	}
	g.WagerAmount = c.Amount
	if cur := strings.TrimSpace(c.Currency); cur != "" {
		g.Currency = cur
	}
	return nil
}

// ChangePrivacy sets who can see the goal
type ChangePrivacy struct {
	Privacy models.Privacy
	SquadID string
}

func (ChangePrivacy) name() string { return "change_privacy" }

func (c ChangePrivacy) apply(g *models.Goal) error {
	if err := validatePrivacy(c.Privacy, c.SquadID); err != nil {
		return err
	}
	g.Privacy = c.Privacy
	g.SquadID = ""
	if c.Privacy == models.PrivacySquad {
		g.SquadID = c.SquadID
	}
	return nil
}

// ChangeSchedule sets the check-in frequency
type ChangeSchedule struct {
	Frequency  models.Frequency
	CustomDays []string
}

func (ChangeSchedule) name() string { return "change_schedule" }

func (c ChangeSchedule) apply(g *models.Goal) error {
	days, err := validateSchedule(c.Frequency, c.CustomDays)
	if err != nil {
		return err
	}
	g.Frequency = c.Frequency
	g.CustomDays = days
	return nil
}

// Recategorize moves the goal to another category
type Recategorize struct {
	Category string
}

func (Recategorize) name() string { return "recategorize" }

func (c Recategorize) apply(g *models.Goal) error {
	category := strings.TrimSpace(c.Category)
	if category == "" {
		return invalid("category", "category is required")
	}
	g.Category = category
	return nil
}

// SetGoalStatus moves the goal through its lifecycle
type SetGoalStatus struct {
	Status models.GoalStatus
}

func (SetGoalStatus) name() string { return "set_status" }

func (c SetGoalStatus) apply(g *models.Goal) error {
	if !models.ValidGoalStatus(c.Status) {
		return invalid("status", "unknown status")
	}
	if !models.CanTransition(g.Status, c.Status) {
		return ErrInvalidTransition
	}
	g.Status = c.Status
	return nil
}
