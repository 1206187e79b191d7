package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the per-user container of currency balances and ledger history.
// It carries no amounts itself; money lives in Balance rows.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
