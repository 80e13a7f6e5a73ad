package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/notify"
	"commit/internal/security"
	"commit/internal/service"
)

// Dependencies are the services the API is built from
type Dependencies struct {
	Auth        *service.AuthService
	Squads      *service.SquadService
	Leaderboard *service.LeaderboardService
	Registry    *ledger.Registry
	Notifier    *notify.Notifier
	Limiter     *security.RateLimiter
	Log         *zap.Logger
}

// NewRouter registers every API route and wraps the mux with request logging
func NewRouter(d Dependencies) http.Handler {
	middleware := NewMiddleware(d.Auth, d.Limiter, d.Log)
	authHandler := NewAuthHandler(d.Auth, d.Log)
	accountHandler := NewAccountHandler(d.Registry, d.Notifier, d.Log)
	goalHandler := NewGoalHandler(d.Registry, d.Squads, d.Log)
	squadHandler := NewSquadHandler(d.Squads, d.Leaderboard, d.Log)

	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RateLimit(middleware.RequireAuth(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes
	mux.HandleFunc("POST /api/signup", middleware.RateLimit(authHandler.Signup))
	mux.HandleFunc("POST /api/login", middleware.RateLimit(authHandler.Login))

	// Account
	mux.HandleFunc("GET /api/me", auth(accountHandler.GetMe))
	mux.HandleFunc("PATCH /api/me", auth(accountHandler.UpdateMe))
	mux.HandleFunc("POST /api/me/coins/spend", auth(accountHandler.SpendCoins))
	mux.HandleFunc("GET /api/stats", auth(accountHandler.Stats))
	mux.HandleFunc("GET /api/reminders", auth(accountHandler.Reminders))
	mux.HandleFunc("PUT /api/reminders", auth(accountHandler.UpdateReminders))
	mux.HandleFunc("POST /api/wallet/deposit", auth(accountHandler.Deposit))
	mux.HandleFunc("POST /api/wallet/withdraw", auth(accountHandler.Withdraw))
	mux.HandleFunc("GET /api/achievements", auth(accountHandler.Achievements))

	// Goals
	mux.HandleFunc("GET /api/goals", auth(goalHandler.ListGoals))
	mux.HandleFunc("POST /api/goals", auth(goalHandler.CreateGoal))
	mux.HandleFunc("GET /api/goals/{id}", auth(goalHandler.GetGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", auth(goalHandler.DeleteGoal))
	mux.HandleFunc("POST /api/goals/{id}/commands", auth(goalHandler.ApplyCommand))
	mux.HandleFunc("POST /api/goals/{id}/check-ins", auth(goalHandler.CheckIn))
	mux.HandleFunc("GET /api/goals/{id}/check-ins", auth(goalHandler.ListCheckIns))
	mux.HandleFunc("GET /api/goals/{id}/countdown", auth(goalHandler.Countdown))
	mux.HandleFunc("GET /api/periods/{kind}", auth(goalHandler.Period))

	// Squads
	mux.HandleFunc("GET /api/leaderboard", auth(squadHandler.Leaderboard))
	mux.HandleFunc("GET /api/squads", auth(squadHandler.ListSquads))
	mux.HandleFunc("POST /api/squads", auth(squadHandler.CreateSquad))
	mux.HandleFunc("POST /api/squads/join", auth(squadHandler.JoinSquad))
	mux.HandleFunc("POST /api/squads/{id}/leave", auth(squadHandler.LeaveSquad))

	return middleware.Logging(mux)
}
