package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
)

// Fixture helpers shared by the repo tests.

func seedEarning(t *testing.T, storage repository.Storage, userID uuid.UUID, amount int64, status string) models.Earning {
	t.Helper()

	now := time.Now()
	e, err := storage.Earnings().CreateEarning(t.Context(), models.Earning{
		ID:          uuid.New(),
		UserID:      userID,
		SourceID:    "rel-123",
		Platform:    "spotify",
		Amount:      decimal.NewFromInt(amount),
		Currency:    "USD",
		Status:      status,
		PeriodStart: now.AddDate(0, -1, 0),
		PeriodEnd:   now,
		CreatedAt:   now,
	})
	require.NoError(t, err)

	return e
}

func seedPayoutMethod(t *testing.T, storage repository.Storage, userID uuid.UUID, verified bool) models.PayoutMethod {
	t.Helper()

	m, err := storage.PayoutMethods().Create(t.Context(), models.PayoutMethod{
		ID:     uuid.New(),
		UserID: userID,
		Type:   models.PayoutMethodBank,
		AccountDetails: map[string]any{
			"bank_name":      "Test Bank",
			"recipient_code": "RCP_test",
		},
		IsPrimary:  true,
		IsVerified: verified,
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)

	return m
}

func seedWithdrawal(t *testing.T, storage repository.Storage, userID uuid.UUID, amount int64, status string) models.Withdrawal {
	t.Helper()

	method := seedPayoutMethod(t, storage, userID, true)

	w, err := storage.Withdrawals().Create(t.Context(), models.Withdrawal{
		ID:                uuid.New(),
		UserID:            userID,
		Amount:            decimal.NewFromInt(amount),
		Currency:          "USD",
		Status:            status,
		PayoutMethodID:    method.ID,
		ProviderReference: "wd-" + uuid.NewString(),
		RequestedAt:       time.Now(),
	})
	require.NoError(t, err)

	return w
}
