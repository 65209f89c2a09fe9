package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated = errors.New("caller is not authenticated")

	ErrInsufficientBalance    = errors.New("insufficient available balance")
	ErrUnverifiedPayoutMethod = errors.New("payout method is not verified")
	ErrPayoutMethodNotFound   = errors.New("payout method not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal transaction not found")

	ErrInvalidStateTransition = errors.New("invalid withdrawal state transition")

	ErrSignatureMismatch = errors.New("webhook signature mismatch")

	ErrPinNotSet     = errors.New("transaction pin is not set")
	ErrPinAlreadySet = errors.New("transaction pin already set")
	ErrPinMismatch   = errors.New("transaction pin does not match")
	ErrWeakPin       = errors.New("transaction pin does not meet policy")

	ErrProviderTimeout = errors.New("external provider timed out")
)

// LockedOutError is returned when PIN verification is refused because the
// lockout window is still active. Callers surface the remaining duration.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("pin verification locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockedOutError) Remaining(now time.Time) time.Duration {
	if now.After(e.Until) {
		return 0
	}
	return e.Until.Sub(now)
}
