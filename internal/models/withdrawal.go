package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/apperrors"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusPaid       = "paid"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusRejected   = "rejected"
)

// Rank of each status on the success path. Failure statuses are not ranked:
// their reachability is handled explicitly in TransitionPath.
var successRank = map[string]int{
	WithdrawalStatusPending:    0,
	WithdrawalStatusApproved:   1,
	WithdrawalStatusProcessing: 2,
	WithdrawalStatusPaid:       3,
}

// Withdrawal is a single withdrawal transaction. Rows are never deleted,
// only moved forward by the state machine.
type Withdrawal struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Amount               decimal.Decimal
	Currency             string
	Status               string
	PayoutMethodID       uuid.UUID
	ProviderTransferCode *string
	ProviderReference    string
	RequestedAt          time.Time
	ApprovedAt           *time.Time
	CompletedAt          *time.Time
	FailureReason        *string
	ProviderResponse     map[string]any
}

// IsTerminalStatus reports whether a status ends the withdrawal lifecycle.
// The one exception is the explicit failed->rejected terminalization, which
// TransitionPath still permits.
func IsTerminalStatus(status string) bool {
	switch status {
	case WithdrawalStatusPaid, WithdrawalStatusFailed, WithdrawalStatusRejected:
		return true
	}
	return false
}

// TransitionPath returns the ordered list of statuses a withdrawal passes
// through to get from 'from' to 'to', including 'to' itself.
//
// A same-state request returns an empty path and no error (idempotent apply).
// A single authoritative event may skip ahead on the success path
// (e.g. pending->paid); the returned path then contains every intermediate
// status so the audit history stays complete. Anything that would move a
// withdrawal backward, or out of a terminal status, is rejected with
// apperrors.ErrInvalidStateTransition.
func TransitionPath(from, to string) ([]string, error) {
	if from == to {
		return nil, nil
	}

	switch to {
	case WithdrawalStatusFailed:
		switch from {
		case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing:
			return []string{WithdrawalStatusFailed}, nil
		}
		return nil, apperrors.ErrInvalidStateTransition

	case WithdrawalStatusRejected:
		switch from {
		case WithdrawalStatusPending, WithdrawalStatusFailed:
			return []string{WithdrawalStatusRejected}, nil
		}
		return nil, apperrors.ErrInvalidStateTransition
	}

	fromRank, fromOK := successRank[from]
	toRank, toOK := successRank[to]
	if !fromOK || !toOK || toRank < fromRank {
		return nil, apperrors.ErrInvalidStateTransition
	}

	path := make([]string, 0, toRank-fromRank)
	for _, status := range []string{
		WithdrawalStatusApproved,
		WithdrawalStatusProcessing,
		WithdrawalStatusPaid,
	} {
		if successRank[status] > fromRank && successRank[status] <= toRank {
			path = append(path, status)
		}
	}

	return path, nil
}
