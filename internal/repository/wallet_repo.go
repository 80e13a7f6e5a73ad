package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commit/internal/database"
	"commit/internal/models"
)

const (
	walletColumns = `id, account_id, balance, currency, total_deposited, total_withdrawn, total_burned,
		total_earned, updated_at`
	transactionColumns = `id, account_id, type, amount, currency, goal_id, squad_id, description, status, created_at`
)

// WalletRepository handles database operations for wallets and their transactions
type WalletRepository struct {
	q database.Querier
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(q database.Querier) *WalletRepository {
	return &WalletRepository{q: q}
}

// CreateWallet inserts a wallet
func (r *WalletRepository) CreateWallet(ctx context.Context, w *models.Wallet) error {
	query := `
		INSERT INTO wallets (` + walletColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		w.ID, w.AccountID, w.Balance, w.Currency, w.TotalDeposited, w.TotalWithdrawn,
		w.TotalBurned, w.TotalEarned, w.UpdatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// UpdateWallet writes the balance and totals
func (r *WalletRepository) UpdateWallet(ctx context.Context, w *models.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = ?, total_deposited = ?, total_withdrawn = ?, total_burned = ?, total_earned = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`
	res, err := r.q.ExecContext(ctx, query,
		w.Balance, w.TotalDeposited, w.TotalWithdrawn, w.TotalBurned, w.TotalEarned, w.UpdatedAt.UTC(),
		w.ID, w.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return expectOneRow(res, "wallet", w.ID)
}

// GetWalletByAccount returns an account's wallet, or nil if it has none
func (r *WalletRepository) GetWalletByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE account_id = ?`
	w, err := scanWallet(r.q.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// ListWallets returns every wallet
func (r *WalletRepository) ListWallets(ctx context.Context) ([]*models.Wallet, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var out []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.AccountID, &w.Balance, &w.Currency, &w.TotalDeposited,
		&w.TotalWithdrawn, &w.TotalBurned, &w.TotalEarned, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.UpdatedAt = w.UpdatedAt.UTC()
	return &w, nil
}

// CreateTransaction records a wallet movement
func (r *WalletRepository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		t.ID, t.AccountID, t.Type, t.Amount, t.Currency, nullString(t.GoalID), nullString(t.SquadID),
		t.Description, t.Status, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns transactions, newest first. An empty accountID lists all accounts.
func (r *WalletRepository) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t       models.Transaction
			goalID  sql.NullString
			squadID sql.NullString
		)
		err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Currency, &goalID, &squadID,
			&t.Description, &t.Status, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.GoalID = goalID.String
		t.SquadID = squadID.String
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
