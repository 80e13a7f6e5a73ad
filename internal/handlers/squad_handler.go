package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"commit/internal/models"
	"commit/internal/service"
)

// SquadHandler handles squads and the leaderboard
type SquadHandler struct {
	squadService       *service.SquadService
	leaderboardService *service.LeaderboardService
	log                *zap.Logger
}

// NewSquadHandler creates a new squad handler
func NewSquadHandler(squadService *service.SquadService, leaderboardService *service.LeaderboardService, log *zap.Logger) *SquadHandler {
	return &SquadHandler{
		squadService:       squadService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// CreateSquad creates a squad with the caller as creator
func (h *SquadHandler) CreateSquad(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return
	}
	var req SquadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	squad, err := h.squadService.CreateSquad(r.Context(), claims.AccountID, service.SquadInput{
		Name:        req.Name,
		Description: req.Description,
		MaxMembers:  req.MaxMembers,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, squad)
}

// JoinSquad adds the caller to the squad with the given invite code
func (h *SquadHandler) JoinSquad(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return
	}
	var req JoinSquadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	squad, err := h.squadService.JoinByCode(r.Context(), claims.AccountID, req.Code)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, squad)
}

// LeaveSquad removes the caller from a squad
func (h *SquadHandler) LeaveSquad(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return
	}
	if err := h.squadService.Leave(r.Context(), claims.AccountID, r.PathValue("id")); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSquads returns the caller's squads
func (h *SquadHandler) ListSquads(w http.ResponseWriter, r *http.Request) {
	claims := GetClaimsFromContext(r.Context())
	if claims == nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: ErrUnauthorized})
		return
	}
	squads, err := h.squadService.ListForAccount(r.Context(), claims.AccountID)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	if squads == nil {
		squads = []models.SquadWithMembers{}
	}
	respondJSON(w, http.StatusOK, squads)
}

// Leaderboard returns the top accounts by XP
func (h *SquadHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: ErrInvalidLimit, Field: "limit"})
		return
	}
	entries, err := h.leaderboardService.Top(r.Context(), limit)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
