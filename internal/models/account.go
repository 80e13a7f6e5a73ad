package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// XPPerLevel is the amount of XP needed to advance one level
const XPPerLevel = 250

// Account is the profile of one user: XP, level, streaks and coins
type Account struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email,omitempty"`
	Avatar        string          `json:"avatar,omitempty"`
	Timezone      string          `json:"timezone"`
	XP            int             `json:"xp"`
	Coins         int             `json:"coins"`
	Level         int             `json:"level"`
	TotalStaked   decimal.Decimal `json:"total_staked"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	CurrentStreak int             `json:"current_streak"`
	LongestStreak int             `json:"longest_streak"`
	CreatedAt     time.Time       `json:"created_at"`
	LastActive    time.Time       `json:"last_active"`
}

// LevelForXP returns the level reached with the given cumulative XP
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

// LevelProgress returns how far into the current level the account is, in percent
func (a *Account) LevelProgress() float64 {
	if a.XP <= 0 {
		return 0
	}
	return float64(a.XP%XPPerLevel) / XPPerLevel * 100
}

// AddXP adds XP and recomputes the level from the new total
func (a *Account) AddXP(amount int) {
	a.XP += amount
	a.Level = LevelForXP(a.XP)
}

// RecordStreak raises the current and longest streaks to at least streak
func (a *Account) RecordStreak(streak int) {
	a.CurrentStreak = max(a.CurrentStreak, streak)
	a.LongestStreak = max(a.LongestStreak, streak)
}

// Location returns the account's time zone, falling back to UTC
func (a *Account) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewAccount creates a fresh level 1 account
func NewAccount(id, username, email string, now time.Time) *Account {
	return &Account{
		ID:          id,
		Username:    username,
		Email:       email,
		Avatar:      "🎯",
		Timezone:    "UTC",
		Level:       1,
		TotalStaked: decimal.Zero,
		TotalEarned: decimal.Zero,
		CreatedAt:   now,
		LastActive:  now,
	}
}

// LeaderboardEntry is one ranked row of the XP leaderboard
type LeaderboardEntry struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
	Streak    int    `json:"streak"`
	Rank      int    `json:"rank"`
}
