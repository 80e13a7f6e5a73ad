package service

import (
	"context"

	"commit/internal/models"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// LeaderboardSource ranks accounts by XP
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// LeaderboardService serves the XP leaderboard
type LeaderboardService struct {
	source LeaderboardSource
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(source LeaderboardSource) *LeaderboardService {
	return &LeaderboardService{source: source}
}

// Top returns up to limit entries; out of range limits fall back to the defaults
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultLeaderboardSize
	case limit > maxLeaderboardSize:
		limit = maxLeaderboardSize
	}
	entries, err := s.source.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}
