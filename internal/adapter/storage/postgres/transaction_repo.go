package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository. Ledger entries are
// append-only; there are no update or delete operations.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO wallet_transactions
		(id, wallet_id, kind, currency, to_currency, amount, exchange_rate, conversion_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Kind, t.Currency, t.ToCurrency,
		t.Amount, t.ExchangeRate, t.ConversionID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByKind returns a wallet's ledger entries of one kind, oldest first.
func (r *TransactionRepo) ListByKind(ctx context.Context, walletID uuid.UUID, kind domain.TransactionKind) ([]domain.Transaction, error) {
	query := `SELECT id, wallet_id, kind, currency, to_currency, amount, exchange_rate, conversion_id, created_at
		FROM wallet_transactions WHERE wallet_id = $1 AND kind = $2 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, walletID, kind)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Kind, &t.Currency, &t.ToCurrency,
			&t.Amount, &t.ExchangeRate, &t.ConversionID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// SumFunds sums plain FUND entries for a currency. Conversion-generated legs
// carry a conversion_id and are excluded.
func (r *TransactionRepo) SumFunds(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND kind = 'FUND' AND currency = $2 AND conversion_id IS NULL`

	return r.sum(ctx, query, walletID, currency)
}

// SumWithdrawals sums plain WITHDRAW entries for a currency, excluding
// conversion-generated legs.
func (r *TransactionRepo) SumWithdrawals(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND kind = 'WITHDRAW' AND currency = $2 AND conversion_id IS NULL`

	return r.sum(ctx, query, walletID, currency)
}

// SumConversionsIn sums the credited side of CONVERT entries whose destination
// is the given currency. Each product is rounded to the money scale so the
// aggregate matches the scale-3 amount the balance actually received.
func (r *TransactionRepo) SumConversionsIn(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(ROUND(amount * exchange_rate, 3)), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND kind = 'CONVERT' AND to_currency = $2`

	return r.sum(ctx, query, walletID, currency)
}

// SumConversionsOut sums the debited side of CONVERT entries whose source is
// the given currency.
func (r *TransactionRepo) SumConversionsOut(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1 AND kind = 'CONVERT' AND currency = $2`

	return r.sum(ctx, query, walletID, currency)
}

func (r *TransactionRepo) sum(ctx context.Context, query string, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, walletID, currency).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}
