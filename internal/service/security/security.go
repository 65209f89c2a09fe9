package security

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/metrics"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
)

const (
	pinLength        = 6
	lockoutThreshold = 5
	lockoutWindow    = 15 * time.Minute
)

// Service gates balance-moving actions behind the transaction PIN.
type Service struct {
	hasher  PinHasher
	storage repository.Storage
	logger  logger.Logger

	threshold int
	window    time.Duration
}

func NewService(hasher PinHasher, storage repository.Storage, l logger.Logger) *Service {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &Service{
		hasher:    hasher,
		storage:   storage,
		logger:    l,
		threshold: lockoutThreshold,
		window:    lockoutWindow,
	}
}

// SetupPin stores the first PIN for a user. An existing PIN is never
// overwritten here, that goes through ChangePin.
func (s *Service) SetupPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error {
	if err := checkPinPolicy(pin); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return err
	}

	return s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Pins().Create(ctx, userID, hash); err != nil {
			return err
		}

		_, err := st.SecurityLog().Append(ctx, models.SecurityLogEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Event:     models.SecurityEventPinSetup,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Details:   map[string]any{},
			CreatedAt: time.Now(),
		})
		return err
	})
}

// VerifyPin checks the PIN under the brute-force guard.
//
// While the lockout window is active the stored hash is never compared, so
// the response time cannot distinguish a locked-out match from a locked-out
// mismatch. A wrong PIN counts through one atomic increment-and-check
// statement; the attempt that reaches the threshold also sets the lockout.
func (s *Service) VerifyPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error {
	record, err := s.storage.Pins().Get(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	if record.Locked(now) {
		return &apperrors.LockedOutError{Until: *record.LockUntil}
	}

	if err := s.hasher.Compare(record.PinHash, pin); err != nil {
		return s.registerFailure(ctx, userID, meta)
	}

	if err := s.storage.Pins().ResetAttempts(ctx, userID); err != nil {
		return err
	}

	return nil
}

// ChangePin verifies the current PIN (with full lockout semantics) and
// replaces the stored hash.
func (s *Service) ChangePin(ctx context.Context, userID uuid.UUID, currentPin string, newPin string, meta models.RequestMeta) error {
	if err := checkPinPolicy(newPin); err != nil {
		return err
	}

	if err := s.VerifyPin(ctx, userID, currentPin, meta); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPin)
	if err != nil {
		return err
	}

	return s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Pins().UpdateHash(ctx, userID, hash); err != nil {
			return err
		}

		_, err := st.SecurityLog().Append(ctx, models.SecurityLogEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Event:     models.SecurityEventPinChanged,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Details:   map[string]any{},
			CreatedAt: time.Now(),
		})
		return err
	})
}

func (s *Service) registerFailure(ctx context.Context, userID uuid.UUID, meta models.RequestMeta) error {
	metrics.PinFailures.Inc()

	record, err := s.storage.Pins().RegisterFailedAttempt(ctx, userID, s.threshold, time.Now().Add(s.window))
	if err != nil {
		return err
	}

	if record.Locked(time.Now()) {
		// This exact attempt activated a lockout window. An attempt after
		// an expired window restarted the count instead, so it lands in the
		// plain mismatch branch below.
		metrics.PinLockouts.Inc()
		s.logger.Warn("PIN lockout activated", "user_id", userID, "lock_until", record.LockUntil)

		_, err = s.storage.SecurityLog().Append(ctx, models.SecurityLogEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Event:     models.SecurityEventPinLockout,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Details: map[string]any{
				"failed_attempts": record.FailedAttempts,
				"lock_until":      record.LockUntil.Format(time.RFC3339),
			},
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		return &apperrors.LockedOutError{Until: *record.LockUntil}
	}

	return apperrors.ErrPinMismatch
}

// checkPinPolicy enforces the minimum PIN policy: fixed length digits,
// not all the same, not an ascending or descending run.
func checkPinPolicy(pin string) error {
	if len(pin) != pinLength {
		return apperrors.ErrWeakPin
	}

	allSame, ascending, descending := true, true, true
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return apperrors.ErrWeakPin
		}
		if i == 0 {
			continue
		}
		if pin[i] != pin[i-1] {
			allSame = false
		}
		if pin[i] != pin[i-1]+1 {
			ascending = false
		}
		if pin[i] != pin[i-1]-1 {
			descending = false
		}
	}

	if allSame || ascending || descending {
		return apperrors.ErrWeakPin
	}

	return nil
}
