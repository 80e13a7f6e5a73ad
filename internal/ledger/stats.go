package ledger

import (
	"math"
	"time"

	"commit/internal/models"
)

const weeklyWindow = 7 * 24 * time.Hour

// Stats is the dashboard summary of an account
type Stats struct {
	TotalGoals     int `json:"total_goals"`
	ActiveGoals    int `json:"active_goals"`
	CompletedGoals int `json:"completed_goals"`
	CurrentStreak  int `json:"current_streak"`
	LongestStreak  int `json:"longest_streak"`
	WeeklyXP       int `json:"weekly_xp"`
	SuccessRate    int `json:"success_rate"`
}

// ReminderCounts are the two numbers a reminder is decided on
type ReminderCounts struct {
	ActiveGoals    int `json:"active_goals"`
	CheckedInToday int `json:"checked_in_today"`
}

// Stats derives the summary from the goals and check-ins held in memory.
// Expired goals are not counted as active.
func (l *Ledger) Stats(now time.Time) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalGoals:    len(l.state.Goals),
		CurrentStreak: l.state.Account.CurrentStreak,
		LongestStreak: l.state.Account.LongestStreak,
	}

	var ok, missed int
	for _, g := range l.state.Goals {
		switch g.EffectiveStatus(now) {
		case models.GoalStatusActive:
			s.ActiveGoals++
		case models.GoalStatusCompleted:
			s.CompletedGoals++
		}
		ok += g.TotalCheckIns
		missed += g.MissedCheckIns
	}
	if total := ok + missed; total > 0 {
		s.SuccessRate = int(math.Round(float64(ok) / float64(total) * 100))
	}

	since := now.Add(-weeklyWindow)
	for _, c := range l.state.CheckIns {
		if c.Success && !c.CreatedAt.Before(since) {
			s.WeeklyXP += c.XPEarned
		}
	}
	return s
}

// ReminderCounts returns the active goal count and how many of them were checked in today
func (l *Ledger) ReminderCounts(now time.Time) ReminderCounts {
	l.mu.Lock()
	defer l.mu.Unlock()

	loc := l.state.Account.Location()
	var rc ReminderCounts
	for _, g := range l.state.Goals {
		if g.EffectiveStatus(now) != models.GoalStatusActive {
			continue
		}
		rc.ActiveGoals++
		if g.CheckedInOn(now, loc) {
			rc.CheckedInToday++
		}
	}
	return rc
}
