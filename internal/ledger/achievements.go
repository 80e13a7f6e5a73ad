package ledger

import (
	"context"
	"errors"
	"time"

	"commit/internal/models"
)

// UnlockAchievements unlocks every catalog entry whose condition the account now meets
// and awards its XP and coins. Nothing is written when nothing unlocks.
func (l *Ledger) UnlockAchievements(ctx context.Context, catalog []models.Achievement) ([]models.Achievement, error) {
	var unlocked []models.Achievement

	err := l.mutate(ctx, []string{accountKey}, func(now time.Time) (*Change, func(), error) {
		unlocked = unlocked[:0]
		have := make(map[string]bool, len(l.state.Achievements))
		for _, ua := range l.state.Achievements {
			have[ua.AchievementID] = true
		}

		m := l.metrics()
		account := *l.state.Account
		var records []*models.UserAchievement
		for _, a := range catalog {
			if have[a.ID] || !m.meets(a) {
				continue
			}
			unlocked = append(unlocked, a)
			records = append(records, &models.UserAchievement{
				ID:            l.newID(),
				AccountID:     account.ID,
				AchievementID: a.ID,
				UnlockedAt:    now,
			})
			account.AddXP(a.XPReward)
			account.Coins += a.CoinReward
		}
		if len(records) == 0 {
			return nil, nil, errNothingToDo
		}

		change := &Change{Op: "unlock_achievements", Account: &account, NewAchievements: records}
		return change, func() {
			l.state.Account = &account
			l.state.Achievements = append(l.state.Achievements, records...)
		}, nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

type progressMetrics struct {
	streak         int
	totalCheckIns  int
	totalXP        int
	goalsCompleted int
}

func (l *Ledger) metrics() progressMetrics {
	m := progressMetrics{
		streak:  l.state.Account.LongestStreak,
		totalXP: l.state.Account.XP,
	}
	for _, g := range l.state.Goals {
		m.totalCheckIns += g.TotalCheckIns
		if g.Status == models.GoalStatusCompleted {
			m.goalsCompleted++
		}
	}
	return m
}

func (m progressMetrics) meets(a models.Achievement) bool {
	switch a.ConditionType {
	case models.ConditionStreak:
		return m.streak >= a.ConditionValue
	case models.ConditionTotalCheckIns:
		return m.totalCheckIns >= a.ConditionValue
	case models.ConditionTotalXP:
		return m.totalXP >= a.ConditionValue
	case models.ConditionGoalsCompleted:
		return m.goalsCompleted >= a.ConditionValue
	}
	// squad wins are not tracked
	return false
}
