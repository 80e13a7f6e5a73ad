package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/security"
	"commit/internal/service"
	"commit/internal/store"
	"commit/internal/timeutil"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondWithError(w http.ResponseWriter, log *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Error(logMsg, zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, errorBody{Error: userMsg})
}

// respondWithLedgerError maps domain errors to status codes. Sentinels are checked
// before PersistenceError because a persistence error may wrap one.
func respondWithLedgerError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Field: verr.Field})
		return
	}

	switch {
	case errors.Is(err, timeutil.ErrCustomPeriodEnd):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: "end"})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, security.ErrInvalidToken):
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, ledger.ErrGoalNotFound), errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, service.ErrSquadNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, ledger.ErrAlreadyCheckedIn), errors.Is(err, ledger.ErrGoalNotActive),
		errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrOperationInFlight),
		errors.Is(err, ledger.ErrInsufficientCoins), errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNoWallet), errors.Is(err, store.ErrConflict),
		errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrSquadFull), errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrNotMember):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		var perr *ledger.PersistenceError
		if errors.As(err, &perr) {
			respondWithError(w, log, http.StatusServiceUnavailable, "storage unavailable, try again", "ledger persistence failed", err)
			return
		}
		respondWithError(w, log, http.StatusInternalServerError, "internal server error", "", err)
	}
}

// decodeJSON reads a request body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ledger.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
