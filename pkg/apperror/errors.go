package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet Business Logic (WLT) ----

// ErrWalletNotFound is returned when the owner has no wallet. Callers map it
// to a 404-style response, distinct from every validation failure.
func ErrWalletNotFound() *AppError {
	return New("WLT_001", "Wallet not found", http.StatusNotFound)
}

// ErrZeroAmount rejects an exactly-zero amount.
func ErrZeroAmount() *AppError {
	return New("WLT_002", "Amount must be greater than 0", http.StatusUnprocessableEntity)
}

// ErrNegativeAmount rejects a negative amount.
func ErrNegativeAmount() *AppError {
	return New("WLT_002", "Amount must be non-negative", http.StatusUnprocessableEntity)
}

// ErrInvalidCurrency rejects a currency outside the supported set.
func ErrInvalidCurrency() *AppError {
	return New("WLT_003", "Invalid currency", http.StatusUnprocessableEntity)
}

// ErrUnsupportedConversion rejects a conversion where either leg uses an
// unsupported currency.
func ErrUnsupportedConversion() *AppError {
	return New("WLT_004", "Currency conversion not supported", http.StatusUnprocessableEntity)
}

// ErrNoBalanceForCurrency rejects a withdrawal or conversion source on a
// currency the wallet holds no balance row for.
func ErrNoBalanceForCurrency() *AppError {
	return New("WLT_005", "No balance for currency", http.StatusUnprocessableEntity)
}

// ErrInsufficientFunds rejects an amount exceeding the available balance.
func ErrInsufficientFunds() *AppError {
	return New("WLT_006", "Insufficient funds", http.StatusUnprocessableEntity)
}

// ErrInvalidExchangeRate rejects a resolved exchange rate <= 0.
func ErrInvalidExchangeRate() *AppError {
	return New("WLT_007", "Invalid exchange rate", http.StatusUnprocessableEntity)
}

// ---- Users (USR) ----

func ErrEmailTaken() *AppError {
	return New("USR_001", "Email already registered", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps a storage or infrastructure fault. These are the only
// errors that are not client-class; no operation partially applies.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request-shape validation error.
func Validation(message string) *AppError {
	return New("WLT_000", message, http.StatusBadRequest)
}
