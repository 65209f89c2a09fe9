package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/models"
)

type WithdrawalRepo struct {
	DB DBTX
}

const withdrawalColumns = `
id, user_id, amount, currency, status, payout_method_id,
provider_transfer_code, provider_reference, requested_at, approved_at,
completed_at, failure_reason, provider_response
`

const createWithdrawal = `-- name: CreateWithdrawal
INSERT INTO withdrawal_transactions (
	id, user_id, amount, currency, status, payout_method_id,
	provider_transfer_code, provider_reference, requested_at, approved_at,
	completed_at, failure_reason, provider_response
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING` + withdrawalColumns

func (r *WithdrawalRepo) Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, createWithdrawal,
		w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.PayoutMethodID,
		w.ProviderTransferCode, w.ProviderReference, w.RequestedAt, w.ApprovedAt,
		w.CompletedAt, w.FailureReason, w.ProviderResponse,
	)
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

const getWithdrawal = `-- name: GetWithdrawal
SELECT` + withdrawalColumns + `
FROM withdrawal_transactions
WHERE id = $1
`

func (r *WithdrawalRepo) Get(ctx context.Context, id uuid.UUID) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, getWithdrawal, id)
	return collectWithdrawal(rows)
}

const getWithdrawalForUpdate = `-- name: GetWithdrawalForUpdate
SELECT` + withdrawalColumns + `
FROM withdrawal_transactions
WHERE id = $1
FOR UPDATE
`

// GetForUpdate holds the row lock until the surrounding transaction ends.
// Callers must run it inside InTx, otherwise the lock is released right away.
func (r *WithdrawalRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, getWithdrawalForUpdate, id)
	return collectWithdrawal(rows)
}

const getWithdrawalByReference = `-- name: GetWithdrawalByReference
SELECT` + withdrawalColumns + `
FROM withdrawal_transactions
WHERE provider_reference = $1
`

func (r *WithdrawalRepo) GetByProviderReference(ctx context.Context, reference string) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, getWithdrawalByReference, reference)
	return collectWithdrawal(rows)
}

const updateWithdrawal = `-- name: UpdateWithdrawal
UPDATE withdrawal_transactions
SET status = $2,
	provider_transfer_code = $3,
	approved_at = $4,
	completed_at = $5,
	failure_reason = $6,
	provider_response = $7
WHERE id = $1
RETURNING` + withdrawalColumns

func (r *WithdrawalRepo) Update(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, updateWithdrawal,
		w.ID, w.Status, w.ProviderTransferCode, w.ApprovedAt, w.CompletedAt,
		w.FailureReason, w.ProviderResponse,
	)
	return collectWithdrawal(rows)
}

const listWithdrawalsByUser = `-- name: ListWithdrawalsByUser
SELECT` + withdrawalColumns + `
FROM withdrawal_transactions
WHERE user_id = $1
ORDER BY requested_at DESC
`

func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, listWithdrawalsByUser, userID)
	withdrawals, err := pgx.CollectRows(rows, rowToWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return withdrawals, nil
}

const listStaleWithdrawals = `-- name: ListStaleWithdrawals
SELECT` + withdrawalColumns + `
FROM withdrawal_transactions
WHERE status = ANY($1) AND requested_at < $2
ORDER BY requested_at
LIMIT $3
`

func (r *WithdrawalRepo) ListStale(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, listStaleWithdrawals, statuses, olderThan, limit)
	withdrawals, err := pgx.CollectRows(rows, rowToWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return withdrawals, nil
}

func collectWithdrawal(rows pgx.Rows) (models.Withdrawal, error) {
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWithdrawalNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

func rowToWithdrawal(row pgx.CollectableRow) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.PayoutMethodID,
		&w.ProviderTransferCode, &w.ProviderReference, &w.RequestedAt, &w.ApprovedAt,
		&w.CompletedAt, &w.FailureReason, &w.ProviderResponse,
	)
	return w, err
}
