package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a wallet movement
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
	TransactionBurn     TransactionType = "burn"
	TransactionEarn     TransactionType = "earn"
	TransactionPotWin   TransactionType = "pot_win"
)

// TransactionStatus is the settlement state of a transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Wallet holds an account's stakeable balance.
// Balance may go negative: a burn is never refused, the shortfall is owed.
type Wallet struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	TotalBurned    decimal.Decimal `json:"total_burned"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// InDebt reports whether burns have pushed the balance below zero
func (w *Wallet) InDebt() bool {
	return w.Balance.IsNegative()
}

// Clone returns a copy of the wallet
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}

// Transaction records one wallet movement
type Transaction struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	GoalID      string            `json:"goal_id,omitempty"`
	SquadID     string            `json:"squad_id,omitempty"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}
