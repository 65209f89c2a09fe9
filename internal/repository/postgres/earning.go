package postgres

import (
	"fmt"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundrise/wallet/internal/models"
)

type EarningRepo struct {
	DB DBTX
}

const createEarning = `-- name: CreateEarning
INSERT INTO earnings (id, user_id, source_id, platform, amount, currency, status, period_start, period_end, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, user_id, source_id, platform, amount, currency, status, period_start, period_end, created_at
`

func (r *EarningRepo) CreateEarning(ctx context.Context, e models.Earning) (models.Earning, error) {
	rows, _ := r.DB.Query(ctx, createEarning,
		e.ID, e.UserID, e.SourceID, e.Platform, e.Amount, e.Currency, e.Status, e.PeriodStart, e.PeriodEnd, e.CreatedAt,
	)
	e, err := pgx.CollectOneRow(rows, rowToEarning)
	if err != nil {
		return e, fmt.Errorf("db error: %w", err)
	}

	return e, nil
}

const listEarnings = `-- name: ListEarnings
SELECT id, user_id, source_id, platform, amount, currency, status, period_start, period_end, created_at
FROM earnings
WHERE user_id = $1
ORDER BY created_at DESC
`

func (r *EarningRepo) ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.Earning, error) {
	rows, _ := r.DB.Query(ctx, listEarnings, userID)
	earnings, err := pgx.CollectRows(rows, rowToEarning)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return earnings, nil
}

func rowToEarning(row pgx.CollectableRow) (models.Earning, error) {
	var e models.Earning
	err := row.Scan(
		&e.ID, &e.UserID, &e.SourceID, &e.Platform, &e.Amount, &e.Currency,
		&e.Status, &e.PeriodStart, &e.PeriodEnd, &e.CreatedAt,
	)
	return e, err
}
