package dto

import "github.com/shopspring/decimal"

// CreateUserRequest is the request body for user registration.
type CreateUserRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Email string `json:"email" binding:"required,email,max=255"`
}

// CreateUserResponse is the response body for successful registration.
type CreateUserResponse struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
}

// FundRequest is the request body for funding a wallet.
// Amount is deliberately unvalidated here: the service distinguishes zero
// from negative amounts with its own error messages.
type FundRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
}

// WithdrawRequest is the request body for a withdrawal.
type WithdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
}

// ConvertRequest is the request body for a currency conversion. Rate, when
// present, overrides the default exchange rate for this call.
type ConvertRequest struct {
	Amount       decimal.Decimal  `json:"amount"`
	FromCurrency string           `json:"from_currency" binding:"required"`
	ToCurrency   string           `json:"to_currency" binding:"required"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
}

// TransactionResponse is the response body for a committed mutation.
type TransactionResponse struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Currency     string   `json:"currency"`
	ToCurrency   *string  `json:"to_currency,omitempty"`
	Amount       float64  `json:"amount"`
	ExchangeRate *float64 `json:"exchange_rate,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// BalancesResponse is the response body for the balances view.
type BalancesResponse struct {
	Balances map[string]float64 `json:"balances"`
}

// ReconciliationResponse is the response body for a reconciliation run:
// currency -> "OK" | "Mismatch".
type ReconciliationResponse struct {
	Report map[string]string `json:"report"`
}
