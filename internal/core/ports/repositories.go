package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for wallet owners.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets. A wallet is
// created together with its owner and looked up by owner id afterwards.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}

// BalanceRepository defines persistence operations for per-currency balance
// rows. Methods accepting pgx.Tx acquire a row-level exclusive lock and MUST
// be called within a transaction.
type BalanceRepository interface {
	// ListByWallet returns all balance rows for a wallet (non-locking read).
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Balance, error)
	// GetForUpdate locks and returns the (wallet, currency) row.
	// Returns nil, nil when no row exists; it never creates one.
	GetForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error)
	// GetOrCreateForUpdate locks and returns the (wallet, currency) row,
	// inserting a zero-amount row first when absent.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error)
	// UpdateAmount persists a new amount for a locked balance row.
	UpdateAmount(ctx context.Context, tx pgx.Tx, balanceID uuid.UUID, amount decimal.Decimal) error
}

// TransactionRepository defines append-only persistence for ledger entries
// plus the aggregate queries reconciliation runs against committed state.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	// ListByKind returns a wallet's entries of one kind, oldest first.
	ListByKind(ctx context.Context, walletID uuid.UUID, kind domain.TransactionKind) ([]domain.Transaction, error)
	// SumFunds sums plain FUND entries for a currency, excluding
	// conversion-generated legs.
	SumFunds(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error)
	// SumWithdrawals sums plain WITHDRAW entries for a currency, excluding
	// conversion-generated legs.
	SumWithdrawals(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error)
	// SumConversionsIn sums amount * exchange_rate over CONVERT entries whose
	// destination is the given currency.
	SumConversionsIn(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error)
	// SumConversionsOut sums amounts over CONVERT entries whose source is the
	// given currency.
	SumConversionsOut(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error)
}

// DBTransactor provides database transaction management. Every mutation's
// balance writes and ledger appends commit through a single transaction.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
