package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/models"
)

type PayoutMethodRepo struct {
	DB DBTX
}

const createPayoutMethod = `-- name: CreatePayoutMethod
INSERT INTO payout_methods (id, user_id, type, account_details, is_primary, is_verified, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, type, account_details, is_primary, is_verified, created_at
`

func (r *PayoutMethodRepo) Create(ctx context.Context, m models.PayoutMethod) (models.PayoutMethod, error) {
	rows, _ := r.DB.Query(ctx, createPayoutMethod,
		m.ID, m.UserID, m.Type, m.AccountDetails, m.IsPrimary, m.IsVerified, m.CreatedAt,
	)
	m, err := pgx.CollectOneRow(rows, rowToPayoutMethod)
	if err != nil {
		return m, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

const getPayoutMethod = `-- name: GetPayoutMethod
SELECT id, user_id, type, account_details, is_primary, is_verified, created_at
FROM payout_methods
WHERE id = $1
`

func (r *PayoutMethodRepo) Get(ctx context.Context, id uuid.UUID) (models.PayoutMethod, error) {
	rows, _ := r.DB.Query(ctx, getPayoutMethod, id)
	m, err := pgx.CollectOneRow(rows, rowToPayoutMethod)

	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, pgx.ErrNoRows):
		return m, apperrors.ErrPayoutMethodNotFound
	default:
		return m, fmt.Errorf("db error: %w", err)
	}
}

func rowToPayoutMethod(row pgx.CollectableRow) (models.PayoutMethod, error) {
	var m models.PayoutMethod
	err := row.Scan(&m.ID, &m.UserID, &m.Type, &m.AccountDetails, &m.IsPrimary, &m.IsVerified, &m.CreatedAt)
	return m, err
}
