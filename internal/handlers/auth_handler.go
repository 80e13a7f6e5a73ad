package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"commit/internal/service"
)

// AuthHandler handles signup and login
type AuthHandler struct {
	authService *service.AuthService
	log         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Signup creates an account and returns a token for it
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	res, err := h.authService.Signup(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Login exchanges credentials for a token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithLedgerError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
