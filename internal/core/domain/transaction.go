package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind is the kind of ledger entry.
type TransactionKind string

const (
	TransactionKindFund     TransactionKind = "FUND"
	TransactionKindWithdraw TransactionKind = "WITHDRAW"
	TransactionKindConvert  TransactionKind = "CONVERT"
)

// Transaction is an immutable ledger entry. Rows are append-only: they are
// never updated or deleted after the mutation that created them commits, and
// they are the source of truth for reconciliation.
//
// A conversion appends three entries: a FUND entry for the destination leg, a
// WITHDRAW entry for the source leg, and a CONVERT entry recording the pair
// and the resolved rate. The two leg entries carry ConversionID pointing at
// the CONVERT entry so reconciliation can tell them apart from plain funds
// and withdrawals.
type Transaction struct {
	ID           uuid.UUID        `json:"id"`
	WalletID     uuid.UUID        `json:"wallet_id"`
	Kind         TransactionKind  `json:"kind"`
	Currency     Currency         `json:"currency"`
	ToCurrency   *Currency        `json:"to_currency,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	ConversionID *uuid.UUID       `json:"conversion_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsConversionLeg reports whether this FUND or WITHDRAW entry was generated
// as one leg of a conversion rather than by a plain fund/withdraw operation.
func (t *Transaction) IsConversionLeg() bool {
	return t.ConversionID != nil
}

// ReconciliationStatus is the per-currency outcome of a reconciliation check.
type ReconciliationStatus string

const (
	ReconciliationOK       ReconciliationStatus = "OK"
	ReconciliationMismatch ReconciliationStatus = "Mismatch"
)

// ReconciliationReport maps each currency with a stored balance to its status.
type ReconciliationReport map[Currency]ReconciliationStatus
