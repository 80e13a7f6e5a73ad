package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"commit/internal/models"
)

// Deposit credits the wallet, creating it on first use
func (l *Ledger) Deposit(ctx context.Context, amount decimal.Decimal, currency string) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, invalid("amount", "amount must be positive")
	}
	var updated *models.Wallet

	err := l.mutate(ctx, []string{accountKey}, func(now time.Time) (*Change, func(), error) {
		change := &Change{Op: "deposit"}

		wallet := l.state.Wallet
		if wallet == nil {
			cur := strings.TrimSpace(currency)
			if cur == "" {
				cur = DefaultCurrency
			}
			wallet = &models.Wallet{
				ID:             l.newID(),
				AccountID:      l.state.Account.ID,
				Balance:        decimal.Zero,
				Currency:       cur,
				TotalDeposited: decimal.Zero,
				TotalWithdrawn: decimal.Zero,
				TotalBurned:    decimal.Zero,
				TotalEarned:    decimal.Zero,
			}
			change.NewWallet = true
		} else {
			wallet = wallet.Clone()
		}
		wallet.Balance = wallet.Balance.Add(amount)
		wallet.TotalDeposited = wallet.TotalDeposited.Add(amount)
		wallet.UpdatedAt = now

		change.Wallet = wallet
		change.NewTransactions = []*models.Transaction{
			l.walletTransaction(models.TransactionDeposit, amount, wallet.Currency, "Deposit", now),
		}
		updated = wallet
		return change, func() { l.state.Wallet = wallet }, nil
	})
	if err != nil {
		return models.Wallet{}, err
	}
	return *updated, nil
}

// Withdraw debits the wallet. Funds owed from burns cannot be withdrawn.
func (l *Ledger) Withdraw(ctx context.Context, amount decimal.Decimal) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, invalid("amount", "amount must be positive")
	}
	var updated *models.Wallet

	err := l.mutate(ctx, []string{accountKey}, func(now time.Time) (*Change, func(), error) {
		if l.state.Wallet == nil {
			return nil, nil, ErrNoWallet
		}
		if l.state.Wallet.Balance.LessThan(amount) {
			return nil, nil, ErrInsufficientFunds
		}
		wallet := l.state.Wallet.Clone()
		wallet.Balance = wallet.Balance.Sub(amount)
		wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
		wallet.UpdatedAt = now
		updated = wallet

		change := &Change{
			Op:     "withdraw",
			Wallet: wallet,
			NewTransactions: []*models.Transaction{
				l.walletTransaction(models.TransactionWithdraw, amount, wallet.Currency, "Withdrawal", now),
			},
		}
		return change, func() { l.state.Wallet = wallet }, nil
	})
	if err != nil {
		return models.Wallet{}, err
	}
	return *updated, nil
}

func (l *Ledger) walletTransaction(kind models.TransactionType, amount decimal.Decimal, currency, desc string, now time.Time) *models.Transaction {
	return &models.Transaction{
		ID:          l.newID(),
		AccountID:   l.state.Account.ID,
		Type:        kind,
		Amount:      amount,
		Currency:    currency,
		Description: desc,
		Status:      models.TransactionCompleted,
		CreatedAt:   now,
	}
}
