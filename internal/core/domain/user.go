package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can authenticate against the API. Wallet ownership
// is keyed by the external UserID string, not by this record.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
