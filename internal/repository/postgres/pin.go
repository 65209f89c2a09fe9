package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/models"
)

type PinRepo struct {
	DB DBTX
}

const createPin = `-- name: CreatePin
INSERT INTO transaction_pins (user_id, pin_hash, failed_attempts, lock_until, created_at, updated_at)
VALUES ($1, $2, 0, NULL, now(), now())
RETURNING user_id, pin_hash, failed_attempts, lock_until, created_at, updated_at
`

func (r *PinRepo) Create(ctx context.Context, userID uuid.UUID, pinHash string) (models.TransactionPin, error) {
	rows, _ := r.DB.Query(ctx, createPin, userID, pinHash)
	pin, err := pgx.CollectOneRow(rows, rowToPin)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return pin, apperrors.ErrPinAlreadySet
		}
		return pin, fmt.Errorf("db error: %w", err)
	}

	return pin, nil
}

const getPin = `-- name: GetPin
SELECT user_id, pin_hash, failed_attempts, lock_until, created_at, updated_at
FROM transaction_pins
WHERE user_id = $1
`

func (r *PinRepo) Get(ctx context.Context, userID uuid.UUID) (models.TransactionPin, error) {
	rows, _ := r.DB.Query(ctx, getPin, userID)
	pin, err := pgx.CollectOneRow(rows, rowToPin)

	switch {
	case err == nil:
		return pin, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pin, apperrors.ErrPinNotSet
	default:
		return pin, fmt.Errorf("db error: %w", err)
	}
}

const updatePinHash = `-- name: UpdatePinHash
UPDATE transaction_pins
SET pin_hash = $2, failed_attempts = 0, lock_until = NULL, updated_at = now()
WHERE user_id = $1
RETURNING user_id, pin_hash, failed_attempts, lock_until, created_at, updated_at
`

func (r *PinRepo) UpdateHash(ctx context.Context, userID uuid.UUID, pinHash string) (models.TransactionPin, error) {
	rows, _ := r.DB.Query(ctx, updatePinHash, userID, pinHash)
	pin, err := pgx.CollectOneRow(rows, rowToPin)

	switch {
	case err == nil:
		return pin, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pin, apperrors.ErrPinNotSet
	default:
		return pin, fmt.Errorf("db error: %w", err)
	}
}

const resetPinAttempts = `-- name: ResetPinAttempts
UPDATE transaction_pins
SET failed_attempts = 0, lock_until = NULL, updated_at = now()
WHERE user_id = $1
`

func (r *PinRepo) ResetAttempts(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, resetPinAttempts, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPinNotSet
	}

	return nil
}

// The increment and the threshold check happen in one statement. Two
// concurrent wrong attempts both observing failed_attempts = 4 would
// otherwise race past the lockout. An expired lockout window restarts the
// count at 1 instead of incrementing, so the user gets a fresh attempt
// budget once the window has passed. Both CASE expressions read the row
// state before the update.
const registerFailedAttempt = `-- name: RegisterFailedAttempt
UPDATE transaction_pins
SET failed_attempts = CASE WHEN lock_until IS NOT NULL AND lock_until <= now() THEN 1
						   ELSE failed_attempts + 1 END,
	lock_until = CASE WHEN lock_until IS NOT NULL AND lock_until <= now() THEN NULL
					  WHEN failed_attempts + 1 >= $2 THEN $3::timestamptz
					  ELSE lock_until END,
	updated_at = now()
WHERE user_id = $1
RETURNING user_id, pin_hash, failed_attempts, lock_until, created_at, updated_at
`

func (r *PinRepo) RegisterFailedAttempt(ctx context.Context, userID uuid.UUID, threshold int, lockUntil time.Time) (models.TransactionPin, error) {
	rows, _ := r.DB.Query(ctx, registerFailedAttempt, userID, threshold, lockUntil)
	pin, err := pgx.CollectOneRow(rows, rowToPin)

	switch {
	case err == nil:
		return pin, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pin, apperrors.ErrPinNotSet
	default:
		return pin, fmt.Errorf("db error: %w", err)
	}
}

func rowToPin(row pgx.CollectableRow) (models.TransactionPin, error) {
	var p models.TransactionPin
	err := row.Scan(&p.UserID, &p.PinHash, &p.FailedAttempts, &p.LockUntil, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
