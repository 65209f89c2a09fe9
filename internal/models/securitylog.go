package models

import (
	"time"

	"github.com/google/uuid"
)

// Security-log event names. Every balance-moving or PIN-touching operation
// appends one of these; the log is the audit source of truth for disputes.
const (
	SecurityEventWithdrawalRequested  = "withdrawal_requested"
	SecurityEventWithdrawalTransition = "withdrawal_transition"
	SecurityEventPinSetup             = "pin_setup"
	SecurityEventPinChanged           = "pin_changed"
	SecurityEventPinLockout           = "pin_lockout"
)

// SecurityLogEntry is append-only. Entries are never updated or deleted.
type SecurityLogEntry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Event     string
	IPAddress string
	UserAgent string
	Details   map[string]any
	CreatedAt time.Time
}

// RequestMeta carries the caller context every state-changing operation
// records into the security log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
