package ledger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/shopspring/decimal"

	"commit/internal/models"
	"commit/internal/timeutil"
)

// DefaultCurrency is used when a goal is created without one
const DefaultCurrency = "₹"

// GoalInput is the data needed to create a goal.
// The window is taken from EndDate, else DurationDays, else Period.
type GoalInput struct {
	Title        string
	Description  string
	Category     string
	Frequency    models.Frequency
	CustomDays   []string
	StartDate    *time.Time
	EndDate      *time.Time
	DurationDays int
	Period       timeutil.Period
	WagerAmount  decimal.Decimal
	Currency     string
	Privacy      models.Privacy
	SquadID      string
}

// CheckInResult is the outcome of a check-in
type CheckInResult struct {
	CheckIn models.CheckIn `json:"check_in"`
	Goal    models.Goal    `json:"goal"`
	Account models.Account `json:"account"`
	Wallet  *models.Wallet `json:"wallet,omitempty"`
}

// CreateGoal validates the input and persists a new active goal
func (l *Ledger) CreateGoal(ctx context.Context, in GoalInput) (models.Goal, error) {
	var created *models.Goal

	err := l.mutate(ctx, nil, func(now time.Time) (*Change, func(), error) {
		goal, err := l.buildGoal(in, now)
		if err != nil {
			return nil, nil, err
		}
		created = goal
		change := &Change{Op: "create_goal", NewGoals: []*models.Goal{goal}}
		return change, func() {
			l.state.Goals = append(l.state.Goals, goal)
		}, nil
	})
	if err != nil {
		return models.Goal{}, err
	}
	return *created.Clone(), nil
}

func (l *Ledger) buildGoal(in GoalInput, now time.Time) (*models.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, invalid("category", "category is required")
	}

	frequency := in.Frequency
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	days, err := validateSchedule(frequency, in.CustomDays)
	if err != nil {
		return nil, err
	}

	if in.WagerAmount.IsNegative() {
		return nil, invalid("wager_amount", "wager must not be negative")
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	privacy := in.Privacy
	if privacy == "" {
		privacy = models.PrivacySolo
	}
	if err := validatePrivacy(privacy, in.SquadID); err != nil {
		return nil, err
	}

	start, end, err := l.resolveWindow(in, now)
	if err != nil {
		return nil, err
	}

	return &models.Goal{
		ID:          l.newID(),
		AccountID:   l.state.Account.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Frequency:   frequency,
		CustomDays:  days,
		StartDate:   start,
		EndDate:     end,
		WagerAmount: in.WagerAmount,
		Currency:    currency,
		Privacy:     privacy,
		SquadID:     in.SquadID,
		Status:      models.GoalStatusActive,
		TotalBurned: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Ledger) resolveWindow(in GoalInput, now time.Time) (time.Time, time.Time, error) {
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}

	var end time.Time
	switch {
	case in.EndDate != nil:
		end = *in.EndDate
	case in.DurationDays != 0:
		if in.DurationDays < 0 {
			return time.Time{}, time.Time{}, invalid("duration_days", "duration must be positive")
		}
		end = start.AddDate(0, 0, in.DurationDays)
	case in.Period != "":
		r, err := timeutil.CalculatePeriod(in.Period, now.In(l.state.Account.Location()), nil)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("period", err.Error())
		}
		if in.StartDate == nil {
			start = r.Start
		}
		end = r.End
	default:
		return time.Time{}, time.Time{}, invalid("end_date", "an end date, duration or period is required")
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, invalid("end_date", "end date must be after start date")
	}
	return start, end, nil
}

func validateSchedule(frequency models.Frequency, customDays []string) ([]string, error) {
	if !models.ValidFrequency(frequency) {
		return nil, invalid("frequency", "unknown frequency")
	}
	if frequency != models.FrequencyCustom {
		return nil, nil
	}

	var days []string
	for _, d := range customDays {
		d = strings.ToLower(strings.TrimSpace(d))
		if !slices.Contains(models.WeekdayCodes, d) {
			return nil, invalid("custom_days", "unknown weekday "+d)
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, invalid("custom_days", "custom frequency needs at least one weekday")
	}
	return days, nil
}

func validatePrivacy(privacy models.Privacy, squadID string) error {
	if !models.ValidPrivacy(privacy) {
		return invalid("privacy", "unknown privacy mode")
	}
	if privacy == models.PrivacySquad && squadID == "" {
		return invalid("squad_id", "squad goals need a squad")
	}
	return nil
}

// PerformCheckIn records whether the goal was met today and updates streaks, XP and burn.
// A second check-in on the same calendar day (account time zone) is rejected.
func (l *Ledger) PerformCheckIn(ctx context.Context, goalID string, success bool, notes string) (CheckInResult, error) {
	var result CheckInResult

	err := l.mutate(ctx, []string{goalID, accountKey}, func(now time.Time) (*Change, func(), error) {
		current := l.findGoal(goalID)
		if current == nil {
			return nil, nil, ErrGoalNotFound
		}
		if current.EffectiveStatus(now) != models.GoalStatusActive {
			return nil, nil, ErrGoalNotActive
		}
		loc := l.state.Account.Location()
		if current.CheckedInOn(now, loc) {
			return nil, nil, ErrAlreadyCheckedIn
		}

		xp := 0
		burned := decimal.Zero
		if success {
			xp = models.CheckInReward
		} else {
			burned = current.WagerAmount
		}

		checkIn := &models.CheckIn{
			ID:           l.newID(),
			GoalID:       current.ID,
			AccountID:    l.state.Account.ID,
			Date:         models.DayKey(now, loc),
			Success:      success,
			Notes:        strings.TrimSpace(notes),
			XPEarned:     xp,
			AmountBurned: burned,
			CreatedAt:    now,
		}

		goal := current.Clone()
		if success {
			goal.TotalCheckIns++
			goal.CurrentStreak++
		} else {
			goal.MissedCheckIns++
			goal.CurrentStreak = 0
		}
		goal.TotalBurned = goal.TotalBurned.Add(burned)
		goal.XPEarned += xp
		goal.LastCheckIn = &now
		goal.UpdatedAt = now

		account := *l.state.Account
		if success {
			account.AddXP(xp)
			account.RecordStreak(goal.CurrentStreak)
		} else {
			account.CurrentStreak = 0
		}
		account.LastActive = now

		change := &Change{
			Op:           "check_in",
			Account:      &account,
			UpdatedGoals: []*models.Goal{goal},
			NewCheckIns:  []*models.CheckIn{checkIn},
		}

		var wallet *models.Wallet
		if l.state.Wallet != nil && burned.IsPositive() {
			wallet = l.state.Wallet.Clone()
			wallet.Balance = wallet.Balance.Sub(burned)
			wallet.TotalBurned = wallet.TotalBurned.Add(burned)
			wallet.UpdatedAt = now
			change.Wallet = wallet
			change.NewTransactions = []*models.Transaction{{
				ID:          l.newID(),
				AccountID:   account.ID,
				Type:        models.TransactionBurn,
				Amount:      burned,
				Currency:    goal.Currency,
				GoalID:      goal.ID,
				Description: "Missed check-in: " + goal.Title,
				Status:      models.TransactionCompleted,
				CreatedAt:   now,
			}}
		}

		return change, func() {
			l.replaceGoal(goal)
			l.state.CheckIns = append(l.state.CheckIns, checkIn)
			l.state.Account = &account
			if wallet != nil {
				l.state.Wallet = wallet
			}
			result = CheckInResult{CheckIn: *checkIn, Goal: *goal.Clone(), Account: account}
			if l.state.Wallet != nil {
				result.Wallet = l.state.Wallet.Clone()
			}
		}, nil
	})
	return result, err
}

// UpdateGoal applies one typed command to a goal
func (l *Ledger) UpdateGoal(ctx context.Context, goalID string, cmd GoalCommand) (models.Goal, error) {
	var updated *models.Goal

	err := l.mutate(ctx, []string{goalID}, func(now time.Time) (*Change, func(), error) {
		current := l.findGoal(goalID)
		if current == nil {
			return nil, nil, ErrGoalNotFound
		}
		goal := current.Clone()
		if err := cmd.apply(goal); err != nil {
			return nil, nil, err
		}
		goal.UpdatedAt = now
		updated = goal

		change := &Change{Op: "update_goal:" + cmd.name(), UpdatedGoals: []*models.Goal{goal}}
		return change, func() { l.replaceGoal(goal) }, nil
	})
	if err != nil {
		return models.Goal{}, err
	}
	return *updated.Clone(), nil
}

// CompleteGoal marks a goal completed
func (l *Ledger) CompleteGoal(ctx context.Context, goalID string) (models.Goal, error) {
	return l.UpdateGoal(ctx, goalID, SetGoalStatus{Status: models.GoalStatusCompleted})
}

// DeleteGoal removes a goal. Its check-ins stay in memory.
func (l *Ledger) DeleteGoal(ctx context.Context, goalID string) error {
	return l.mutate(ctx, []string{goalID}, func(now time.Time) (*Change, func(), error) {
		if l.findGoal(goalID) == nil {
			return nil, nil, ErrGoalNotFound
		}
		change := &Change{Op: "delete_goal", DeletedGoalIDs: []string{goalID}}
		return change, func() {
			l.state.Goals = slices.DeleteFunc(l.state.Goals, func(g *models.Goal) bool {
				return g.ID == goalID
			})
		}, nil
	})
}

type goalTitles []*models.Goal

func (g goalTitles) String(i int) string { return g[i].Title }
func (g goalTitles) Len() int            { return len(g) }

// SearchGoals fuzzy-matches goal titles, best match first
func (l *Ledger) SearchGoals(query string) []models.Goal {
	l.mu.Lock()
	defer l.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	titles := goalTitles(l.state.Goals)
	matches := fuzzy.FindFrom(query, titles)
	out := make([]models.Goal, 0, len(matches))
	for _, m := range matches {
		out = append(out, *titles[m.Index].Clone())
	}
	return out
}
