package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckInReward is the XP granted for a successful check-in
const CheckInReward = 25

// DayLayout is the calendar day format stored on check-ins
const DayLayout = "2006-01-02"

// CheckIn is one immutable record of a check-in event
type CheckIn struct {
	ID           string          `json:"id"`
	GoalID       string          `json:"goal_id"`
	AccountID    string          `json:"account_id"`
	Date         string          `json:"date"`
	Success      bool            `json:"success"`
	Notes        string          `json:"notes,omitempty"`
	XPEarned     int             `json:"xp_earned"`
	AmountBurned decimal.Decimal `json:"amount_burned"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DayKey formats t as a calendar day in loc
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}
