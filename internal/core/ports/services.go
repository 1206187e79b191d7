package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService is the balance-mutation engine: it validates preconditions,
// applies balance deltas under row locks, and appends ledger entries as one
// atomic unit.
type WalletService interface {
	Fund(ctx context.Context, req FundRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error)
	Convert(ctx context.Context, req ConvertRequest) (*domain.Transaction, error)
}

// FundRequest holds validated input for funding a wallet.
type FundRequest struct {
	UserID   uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	UserID   uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

// ConvertRequest holds validated input for a currency conversion.
// CustomRate overrides the static default rate for this call only.
type ConvertRequest struct {
	UserID       uuid.UUID
	Amount       decimal.Decimal
	FromCurrency string
	ToCurrency   string
	CustomRate   *decimal.Decimal
}

// ReconciliationService recomputes each currency's expected balance from the
// ledger and compares it against the stored balance. Purely diagnostic.
type ReconciliationService interface {
	Check(ctx context.Context, userID uuid.UUID) (domain.ReconciliationReport, error)
}

// ReportingService builds the serialized read views consumed externally.
type ReportingService interface {
	// GetBalances returns the wallet's current balances as currency -> amount.
	GetBalances(ctx context.Context, userID uuid.UUID) (map[string]float64, error)
	// GetTransactions returns the wallet's full ledger history grouped by kind.
	GetTransactions(ctx context.Context, userID uuid.UUID) (*TransactionHistory, error)
}

// TransactionRecord is one serialized fund or withdraw ledger entry.
type TransactionRecord struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"` // YYYY-MM-DD HH:MM:SS
}

// ConversionRecord is one serialized convert ledger entry.
type ConversionRecord struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ToCurrency   string  `json:"to_currency"`
	ExchangeRate float64 `json:"exchange_rate"`
	CreatedAt    string  `json:"created_at"`
}

// TransactionHistory groups a wallet's ledger entries by kind, oldest first.
type TransactionHistory struct {
	Funds       []TransactionRecord `json:"fund_transactions"`
	Withdrawals []TransactionRecord `json:"withdraw_transactions"`
	Conversions []ConversionRecord  `json:"convert_transactions"`
}

// UserService handles owner lifecycle. Creating a user creates its wallet in
// the same transaction; a wallet is never created on its own.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error)
}

// CreateUserRequest holds validated input for user registration.
type CreateUserRequest struct {
	Name  string
	Email string
}

// CreateUserResponse holds the created owner and wallet identifiers.
type CreateUserResponse struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
}

// BalanceCache caches the serialized balances view. Mutations invalidate it
// after commit; reads fall back to storage on a miss.
type BalanceCache interface {
	// Get returns the cached view or nil, nil on a miss.
	Get(ctx context.Context, walletID uuid.UUID) (map[string]float64, error)
	Set(ctx context.Context, walletID uuid.UUID, balances map[string]float64, ttl time.Duration) error
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}
