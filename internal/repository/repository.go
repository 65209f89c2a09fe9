package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/models"
)

// Earning repository interface
type EarningRepo interface {
	// Create earning record (royalty-ingestion collaborator entry point)
	CreateEarning(ctx context.Context, earning models.Earning) (models.Earning, error)

	// List earnings of the user, newest first
	ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.Earning, error)
}

// Withdrawal repository interface
type WithdrawalRepo interface {
	// Create withdrawal transaction as is
	Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)

	// Get withdrawal by id
	// If not found must return apperrors.ErrWithdrawalNotFound
	Get(ctx context.Context, id uuid.UUID) (models.Withdrawal, error)

	// Get withdrawal by id and take the row lock until the surrounding
	// transaction ends. Serializes concurrent transitions on one row.
	GetForUpdate(ctx context.Context, id uuid.UUID) (models.Withdrawal, error)

	// Get withdrawal by the provider's transfer reference
	GetByProviderReference(ctx context.Context, reference string) (models.Withdrawal, error)

	// Update mutable fields of the withdrawal, returns the stored row
	Update(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)

	// List withdrawals of the user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)

	// List withdrawals in the given statuses requested before 'olderThan'.
	// Used by the reconcile poller to find stuck transfers.
	ListStale(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]models.Withdrawal, error)
}

// PayoutMethod repository interface
type PayoutMethodRepo interface {
	Create(ctx context.Context, method models.PayoutMethod) (models.PayoutMethod, error)

	// If not found must return apperrors.ErrPayoutMethodNotFound
	Get(ctx context.Context, id uuid.UUID) (models.PayoutMethod, error)
}

// Pin repository interface
type PinRepo interface {
	// Create pin record for the user
	// If record exists must return apperrors.ErrPinAlreadySet
	Create(ctx context.Context, userID uuid.UUID, pinHash string) (models.TransactionPin, error)

	// If not found must return apperrors.ErrPinNotSet
	Get(ctx context.Context, userID uuid.UUID) (models.TransactionPin, error)

	// Replace the stored hash and clear the lockout state
	UpdateHash(ctx context.Context, userID uuid.UUID, pinHash string) (models.TransactionPin, error)

	// Reset failed attempts and lockout after a successful verification
	ResetAttempts(ctx context.Context, userID uuid.UUID) error

	// Register one failed attempt in a single atomic statement. When the new
	// attempt count reaches 'threshold' the lockout is set to 'lockUntil' in
	// the same statement. Returns the post-increment state so the caller can
	// tell whether this call crossed the threshold.
	RegisterFailedAttempt(ctx context.Context, userID uuid.UUID, threshold int, lockUntil time.Time) (models.TransactionPin, error)
}

// SecurityLog repository interface, append-only
type SecurityLogRepo interface {
	Append(ctx context.Context, entry models.SecurityLogEntry) (models.SecurityLogEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.SecurityLogEntry, error)
}

// WebhookEvent repository interface: dedupe keys of applied provider events
type WebhookEventRepo interface {
	// MarkApplied inserts the (eventType, reference) dedupe key.
	// Returns false without error if the key was already present.
	MarkApplied(ctx context.Context, eventType string, reference string) (bool, error)
}

// Ledger repository interface: derived balance view
type LedgerRepo interface {
	// ComputeBalance aggregates earnings and withdrawals in one statement,
	// so the read is snapshot consistent by construction.
	ComputeBalance(ctx context.Context, userID uuid.UUID) (models.WalletBalance, error)
}

type Storage interface {
	Earnings() EarningRepo
	Withdrawals() WithdrawalRepo
	PayoutMethods() PayoutMethodRepo
	Pins() PinRepo
	SecurityLog() SecurityLogRepo
	WebhookEvents() WebhookEventRepo
	Ledger() LedgerRepo

	// InTx runs fn with a Storage bound to one database transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Storage) error) error
}
