package models

import "time"

// ConditionType is the metric an achievement is unlocked by
type ConditionType string

const (
	ConditionStreak         ConditionType = "streak"
	ConditionTotalCheckIns  ConditionType = "total_checkins"
	ConditionTotalXP        ConditionType = "total_xp"
	ConditionSquadWins      ConditionType = "squad_wins"
	ConditionGoalsCompleted ConditionType = "goals_completed"
)

// Rarity grades achievements
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Achievement is a catalog entry that can be unlocked once per account
type Achievement struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Icon           string        `json:"icon"`
	XPReward       int           `json:"xp_reward"`
	CoinReward     int           `json:"coin_reward"`
	ConditionType  ConditionType `json:"condition_type"`
	ConditionValue int           `json:"condition_value"`
	Rarity         Rarity        `json:"rarity"`
}

// UserAchievement records an unlocked achievement
type UserAchievement struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	AchievementID string    `json:"achievement_id"`
	GoalID        string    `json:"goal_id,omitempty"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// DefaultAchievements is the built-in achievement catalog
var DefaultAchievements = []Achievement{
	{ID: "first-step", Name: "First Step", Description: "Complete your first successful check-in", Icon: "👣", XPReward: 10, CoinReward: 5, ConditionType: ConditionTotalCheckIns, ConditionValue: 1, Rarity: RarityCommon},
	{ID: "week-warrior", Name: "Week Warrior", Description: "Reach a 7 day streak", Icon: "🔥", XPReward: 50, CoinReward: 20, ConditionType: ConditionStreak, ConditionValue: 7, Rarity: RarityRare},
	{ID: "month-master", Name: "Month Master", Description: "Reach a 30 day streak", Icon: "🏆", XPReward: 200, CoinReward: 100, ConditionType: ConditionStreak, ConditionValue: 30, Rarity: RarityEpic},
	{ID: "centurion", Name: "Centurion", Description: "Log 100 successful check-ins", Icon: "💯", XPReward: 150, CoinReward: 75, ConditionType: ConditionTotalCheckIns, ConditionValue: 100, Rarity: RarityEpic},
	{ID: "xp-hoarder", Name: "XP Hoarder", Description: "Earn 1000 XP", Icon: "⚡", XPReward: 0, CoinReward: 50, ConditionType: ConditionTotalXP, ConditionValue: 1000, Rarity: RarityRare},
	{ID: "finisher", Name: "Finisher", Description: "Complete a goal", Icon: "🎯", XPReward: 100, CoinReward: 25, ConditionType: ConditionGoalsCompleted, ConditionValue: 1, Rarity: RarityCommon},
	{ID: "legend", Name: "Legend", Description: "Complete 10 goals", Icon: "👑", XPReward: 500, CoinReward: 250, ConditionType: ConditionGoalsCompleted, ConditionValue: 10, Rarity: RarityLegendary},
}
