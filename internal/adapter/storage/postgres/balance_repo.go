package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// ListByWallet returns all balance rows for a wallet (non-locking read).
func (r *BalanceRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Balance, error) {
	query := `SELECT id, wallet_id, currency, amount, created_at, updated_at
		FROM wallet_balances WHERE wallet_id = $1 ORDER BY currency`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(&b.ID, &b.WalletID, &b.Currency, &b.Amount, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return balances, nil
}

// GetForUpdate fetches the (wallet, currency) balance row with pessimistic
// locking. Returns nil, nil when no row exists. MUST be called within a
// transaction.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error) {
	query := `SELECT id, wallet_id, currency, amount, created_at, updated_at
		FROM wallet_balances WHERE wallet_id = $1 AND currency = $2 FOR UPDATE`

	b := &domain.Balance{}
	err := tx.QueryRow(ctx, query, walletID, currency).Scan(
		&b.ID, &b.WalletID, &b.Currency, &b.Amount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	return b, nil
}

// GetOrCreateForUpdate fetches the (wallet, currency) balance row with
// pessimistic locking, inserting a zero-amount row first when absent. The
// insert tolerates a concurrent writer winning the race; the follow-up
// locking read then blocks until that writer commits. MUST be called within
// a transaction.
func (r *BalanceRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error) {
	insert := `INSERT INTO wallet_balances (id, wallet_id, currency, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (wallet_id, currency) DO NOTHING`

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, insert, uuid.New(), walletID, currency, decimal.Zero, now); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}

	b, err := r.GetForUpdate(ctx, tx, walletID, currency)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("balance row missing after insert: wallet %s currency %s", walletID, currency)
	}
	return b, nil
}

// UpdateAmount persists a new amount for a locked balance row.
func (r *BalanceRepo) UpdateAmount(ctx context.Context, tx pgx.Tx, balanceID uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE wallet_balances SET amount = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, amount, balanceID)
	if err != nil {
		return fmt.Errorf("update balance amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance not found: %s", balanceID)
	}
	return nil
}
