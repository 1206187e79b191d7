package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is the amount a wallet holds in one currency. Rows are created
// lazily the first time a mutation touches the (wallet, currency) pair and
// are only ever modified under a row-level exclusive lock.
//
// Invariant: Amount >= 0 at all times.
type Balance struct {
	ID        uuid.UUID       `json:"id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	Currency  Currency        `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
