package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionPin holds the hashed transaction PIN and the brute-force
// lockout state for one user.
type TransactionPin struct {
	UserID         uuid.UUID
	PinHash        string
	FailedAttempts int
	LockUntil      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the lockout window is still active at 'now'.
func (p TransactionPin) Locked(now time.Time) bool {
	return p.LockUntil != nil && p.LockUntil.After(now)
}
