package models

import "time"

// ReminderSettings is the stored form of an account's reminder preferences
type ReminderSettings struct {
	AccountID string     `json:"account_id"`
	Enabled   bool       `json:"enabled"`
	Frequency string     `json:"frequency"`
	Time      string     `json:"time"`
	LastShown *time.Time `json:"last_shown,omitempty"`
}
