package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

// One statement, one snapshot: the aggregates can never observe a
// half-applied transition.
const computeBalance = `-- name: ComputeBalance
SELECT
	COALESCE((SELECT SUM(amount) FROM earnings WHERE user_id = $1 AND status = 'paid'), 0)    AS earned_paid,
	COALESCE((SELECT SUM(amount) FROM earnings WHERE user_id = $1 AND status = 'pending'), 0) AS earned_pending,
	COALESCE((SELECT SUM(amount) FROM withdrawal_transactions
		WHERE user_id = $1 AND status IN ('processing', 'paid')), 0)                          AS withdrawn,
	COALESCE((SELECT SUM(amount) FROM withdrawal_transactions
		WHERE user_id = $1 AND status = 'pending'), 0)                                        AS withdrawal_pending
`

func (r *LedgerRepo) ComputeBalance(ctx context.Context, userID uuid.UUID) (models.WalletBalance, error) {
	var earnedPaid, earnedPending, withdrawn, withdrawalPending decimal.Decimal

	err := r.DB.QueryRow(ctx, computeBalance, userID).
		Scan(&earnedPaid, &earnedPending, &withdrawn, &withdrawalPending)
	if err != nil {
		return models.WalletBalance{}, fmt.Errorf("db error: %w", err)
	}

	return models.WalletBalance{
		TotalEarnings:    earnedPaid,
		AvailableBalance: earnedPaid.Sub(withdrawn),
		PendingBalance:   earnedPending.Add(withdrawalPending),
		Currency:         "USD",
	}, nil
}
