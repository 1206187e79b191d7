package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a wallet owner. Email is unique and stored lowercased.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
