package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/notify"
	"commit/internal/security"
)

// AccountHandler serves the caller's profile, wallet, stats and reminders
type AccountHandler struct {
	registry *ledger.Registry
	notifier *notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(registry *ledger.Registry, notifier *notify.Notifier, log *zap.Logger) *AccountHandler {
	return &AccountHandler{registry: registry, notifier: notifier, log: log, now: time.Now}
}

// callerLedger resolves the authenticated caller's ledger, writing the error response if it can't
func callerLedger(w http.ResponseWriter, r *http.Request, registry *ledger.Registry, log *zap.Logger) (*ledger.Ledger, bool) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return nil, false
	}
	l, err := registry.Get(r.Context(), claims.AccountID)
	if err != nil {
		respondWithLedgerError(w, log, err)
		return nil, false
	}
	return l, true
}

func meResponse(account models.Account, wallet *models.Wallet) MeResponse {
	return MeResponse{Account: account, LevelProgress: account.LevelProgress(), Wallet: wallet}
}

// GetMe returns the caller's account and wallet
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, meResponse(l.Account(), l.Wallet()))
}

// UpdateMe edits the username, avatar or timezone
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	if req.Username != nil {
		name := security.SanitizeText(*req.Username)
		req.Username = &name
	}

	account, err := l.UpdateProfile(r.Context(), ledger.ProfileUpdate{
		Username: req.Username,
		Avatar:   req.Avatar,
		Timezone: req.Timezone,
	})
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, meResponse(account, l.Wallet()))
}

// SpendCoins deducts coins from the caller. XP and coins are only ever granted by
// check-ins and achievements.
func (h *AccountHandler) SpendCoins(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	if req.Amount <= 0 {
		respondWithLedgerError(w, h.log, &ledger.ValidationError{Field: "amount", Message: "amount must be positive"})
		return
	}
	account, err := l.AddCoins(r.Context(), -req.Amount)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, meResponse(account, l.Wallet()))
}

// Stats returns the dashboard summary
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, l.Stats(h.now()))
}

// Reminders returns the reminder settings and, when one is due, the reminder to show
func (h *AccountHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	counts := l.ReminderCounts(h.now())
	resp := RemindersResponse{Counts: counts}
	if counts.ActiveGoals > 0 {
		if msg, due := h.notifier.Take(r.Context(), l.AccountID(), counts); due {
			resp.Reminder = &msg
		}
	}
	resp.Settings = h.notifier.Settings(l.AccountID())
	respondJSON(w, http.StatusOK, resp)
}

// UpdateReminders replaces the caller's reminder settings
func (h *AccountHandler) UpdateReminders(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return
	}
	var req notify.Settings
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	settings, err := h.notifier.UpdateSettings(r.Context(), claims.AccountID, req)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// Deposit credits the caller's wallet
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req MoneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	wallet, err := l.Deposit(r.Context(), req.Amount, req.Currency)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

// Withdraw debits the caller's wallet
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req MoneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	wallet, err := l.Withdraw(r.Context(), req.Amount)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

// Achievements returns the catalog together with what the caller has unlocked
func (h *AccountHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	unlocked := l.Achievements()
	if unlocked == nil {
		unlocked = []models.UserAchievement{}
	}
	respondJSON(w, http.StatusOK, AchievementsResponse{Catalog: models.DefaultAchievements, Unlocked: unlocked})
}

// parseLimit reads an optional positive ?limit= query parameter
func parseLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
