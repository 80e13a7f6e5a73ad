package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrGoalNotFound      = errors.New("goal not found")
	ErrGoalNotActive     = errors.New("goal is not active")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrInvalidTransition = errors.New("invalid goal status transition")
	ErrOperationInFlight = errors.New("another operation is still in progress")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrNoWallet          = errors.New("account has no wallet")

	errNothingToDo = errors.New("nothing to do")
)

// ValidationError reports malformed input to a ledger operation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a store failure. The in-memory state was not changed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
