package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/security"
	"commit/internal/service"
	"commit/internal/timeutil"
)

// GoalHandler handles goal lifecycle and check-in requests
type GoalHandler struct {
	registry     *ledger.Registry
	squadService *service.SquadService
	log          *zap.Logger
	now          func() time.Time
}

// NewGoalHandler creates a new goal handler
func NewGoalHandler(registry *ledger.Registry, squadService *service.SquadService, log *zap.Logger) *GoalHandler {
	return &GoalHandler{registry: registry, squadService: squadService, log: log, now: time.Now}
}

// ListGoals returns every goal, or the fuzzy matches for ?q=
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}

	var goals []models.Goal
	if q := r.URL.Query().Get("q"); q != "" {
		goals = l.SearchGoals(q)
	} else {
		goals = l.Goals()
	}

	now := h.now()
	views := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, goalView(g, now))
	}
	respondJSON(w, http.StatusOK, views)
}

// CreateGoal validates and stores a new goal
func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req GoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	if !h.canUseSquad(w, r, l.AccountID(), req.Privacy, req.SquadID) {
		return
	}

	goal, err := l.CreateGoal(r.Context(), ledger.GoalInput{
		Title:        security.SanitizeText(req.Title),
		Description:  security.SanitizeText(req.Description),
		Category:     security.SanitizeText(req.Category),
		Frequency:    req.Frequency,
		CustomDays:   req.CustomDays,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		DurationDays: req.DurationDays,
		Period:       req.Period,
		WagerAmount:  req.WagerAmount,
		Currency:     req.Currency,
		Privacy:      req.Privacy,
		SquadID:      req.SquadID,
	})
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, goalView(goal, h.now()))
}

// canUseSquad checks that squad goals are only attached to squads the caller belongs to
func (h *GoalHandler) canUseSquad(w http.ResponseWriter, r *http.Request, accountID string, privacy models.Privacy, squadID string) bool {
	if privacy != models.PrivacySquad || squadID == "" || h.squadService == nil {
		return true
	}
	member, err := h.squadService.IsMember(r.Context(), accountID, squadID)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return false
	}
	if !member {
		respondWithLedgerError(w, h.log, &ledger.ValidationError{Field: "squad_id", Message: "not a member of this squad"})
		return false
	}
	return true
}

// GetGoal returns one goal
func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	goal, err := l.Goal(r.PathValue("id"))
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, goalView(goal, h.now()))
}

// ApplyCommand runs one typed edit against a goal
func (h *GoalHandler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req CommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	if req.Title != nil {
		title := security.SanitizeText(*req.Title)
		req.Title = &title
	}
	if req.Description != nil {
		desc := security.SanitizeText(*req.Description)
		req.Description = &desc
	}
	if req.Type == "change_privacy" && !h.canUseSquad(w, r, l.AccountID(), req.Privacy, req.SquadID) {
		return
	}

	cmd, err := req.command()
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	goal, err := l.UpdateGoal(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, goalView(goal, h.now()))
}

// DeleteGoal removes a goal
func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	if err := l.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckIn records today's result for a goal and unlocks any achievements it earned
func (h *GoalHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	var req CheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	result, err := l.PerformCheckIn(r.Context(), r.PathValue("id"), req.Success, security.SanitizeText(req.Notes))
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	resp := CheckInResponse{CheckInResult: result}
	unlocked, err := l.UnlockAchievements(r.Context(), models.DefaultAchievements)
	if err != nil {
		// the check-in itself is stored; achievements are picked up on the next one
		h.log.Warn("failed to unlock achievements", zap.String("account_id", l.AccountID()), zap.Error(err))
	} else {
		resp.Unlocked = unlocked
		if len(unlocked) > 0 {
			resp.Account = l.Account()
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ListCheckIns returns a goal's check-in history
func (h *GoalHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if _, err := l.Goal(id); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	checkIns := l.CheckIns(id)
	if checkIns == nil {
		checkIns = []models.CheckIn{}
	}
	respondJSON(w, http.StatusOK, checkIns)
}

// Countdown returns the time left until a goal's end date
func (h *GoalHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	goal, err := l.Goal(r.PathValue("id"))
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	remaining := timeutil.GetTimeRemaining(goal.EndDate, h.now())
	respondJSON(w, http.StatusOK, CountdownResponse{Remaining: remaining, Text: timeutil.FormatTimeRemaining(remaining)})
}

// Period returns the window of a period kind in the caller's timezone. Custom periods need ?end=.
func (h *GoalHandler) Period(w http.ResponseWriter, r *http.Request) {
	l, ok := callerLedger(w, r, h.registry, h.log)
	if !ok {
		return
	}
	account := l.Account()
	now := h.now().In(account.Location())

	var end *time.Time
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondWithLedgerError(w, h.log, &ledger.ValidationError{Field: "end", Message: "end must be an RFC 3339 time"})
			return
		}
		end = &t
	}

	window, err := timeutil.CalculatePeriod(timeutil.Period(r.PathValue("kind")), now, end)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, window)
}
