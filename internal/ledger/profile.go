package ledger

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"commit/internal/models"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
)

// ProfileUpdate carries the profile fields a user may edit. Nil fields are left alone.
type ProfileUpdate struct {
	Username *string
	Avatar   *string
	Timezone *string
}

// AddXP adds XP to the account and recomputes the level
func (l *Ledger) AddXP(ctx context.Context, amount int) (models.Account, error) {
	if amount < 0 {
		return models.Account{}, invalid("amount", "xp can only be added")
	}
	return l.updateAccount(ctx, "add_xp", func(a *models.Account) error {
		a.AddXP(amount)
		return nil
	})
}

// AddCoins adjusts the coin balance. The balance never goes below zero.
func (l *Ledger) AddCoins(ctx context.Context, amount int) (models.Account, error) {
	return l.updateAccount(ctx, "add_coins", func(a *models.Account) error {
		if a.Coins+amount < 0 {
			return ErrInsufficientCoins
		}
		a.Coins += amount
		return nil
	})
}

// UpdateProfile edits the display fields and stamps LastActive
func (l *Ledger) UpdateProfile(ctx context.Context, upd ProfileUpdate) (models.Account, error) {
	return l.updateAccount(ctx, "update_profile", func(a *models.Account) error {
		if upd.Username != nil {
			name := strings.TrimSpace(*upd.Username)
			if err := ValidateUsername(name); err != nil {
				return err
			}
			a.Username = name
		}
		if upd.Avatar != nil {
			a.Avatar = strings.TrimSpace(*upd.Avatar)
		}
		if upd.Timezone != nil {
			tz := strings.TrimSpace(*upd.Timezone)
			if _, err := time.LoadLocation(tz); err != nil || tz == "" {
				return invalid("timezone", "unknown time zone")
			}
			a.Timezone = tz
		}
		return nil
	})
}

// ValidateUsername checks a display name
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minUsernameLength {
		return invalid("username", "username must be at least 3 characters")
	}
	if n > maxUsernameLength {
		return invalid("username", "username must be at most 30 characters")
	}
	return nil
}

func (l *Ledger) updateAccount(ctx context.Context, op string, edit func(a *models.Account) error) (models.Account, error) {
	var updated models.Account

	err := l.mutate(ctx, []string{accountKey}, func(now time.Time) (*Change, func(), error) {
		account := *l.state.Account
		if err := edit(&account); err != nil {
			return nil, nil, err
		}
		account.LastActive = now
		updated = account

		return &Change{Op: op, Account: &account}, func() {
			l.state.Account = &account
		}, nil
	})
	return updated, err
}
