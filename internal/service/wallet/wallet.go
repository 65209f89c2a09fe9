package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
)

// Service is the ledger entry point: balance reads and withdrawal creation.
type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  l,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (models.WalletBalance, error) {
	return s.storage.Ledger().ComputeBalance(ctx, userID)
}

// CreateWithdrawal reserves a withdrawal request against the available
// balance. The balance check and the insert run in one transaction, so
// concurrent requests cannot both pass the check against the same funds.
func (s *Service) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, payoutMethodID uuid.UUID, meta models.RequestMeta) (models.Withdrawal, error) {
	var created models.Withdrawal

	if !amount.IsPositive() {
		return created, fmt.Errorf("%w: amount must be positive", apperrors.ErrInsufficientBalance)
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		method, err := st.PayoutMethods().Get(ctx, payoutMethodID)
		if err != nil {
			return err
		}
		if method.UserID != userID {
			return apperrors.ErrPayoutMethodNotFound
		}
		if !method.IsVerified {
			return apperrors.ErrUnverifiedPayoutMethod
		}

		balance, err := st.Ledger().ComputeBalance(ctx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance.AvailableBalance) {
			return apperrors.ErrInsufficientBalance
		}

		now := time.Now()
		created, err = st.Withdrawals().Create(ctx, models.Withdrawal{
			ID:                uuid.New(),
			UserID:            userID,
			Amount:            amount,
			Currency:          balance.Currency,
			Status:            models.WithdrawalStatusPending,
			PayoutMethodID:    payoutMethodID,
			ProviderReference: newProviderReference(),
			RequestedAt:       now,
		})
		if err != nil {
			return err
		}

		_, err = st.SecurityLog().Append(ctx, models.SecurityLogEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Event:     models.SecurityEventWithdrawalRequested,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Details: map[string]any{
				"transaction_id":   created.ID.String(),
				"amount":           amount.String(),
				"payout_method_id": payoutMethodID.String(),
			},
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return created, err
	}

	s.logger.Info("Withdrawal requested",
		"transaction_id", created.ID, "user_id", userID, "amount", amount)
	return created, nil
}

func (s *Service) GetWithdrawal(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Withdrawal, error) {
	w, err := s.storage.Withdrawals().Get(ctx, id)
	if err != nil {
		return w, err
	}
	if w.UserID != userID {
		return models.Withdrawal{}, apperrors.ErrWithdrawalNotFound
	}

	return w, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	return s.storage.Withdrawals().ListByUser(ctx, userID)
}

func (s *Service) ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.Earning, error) {
	return s.storage.Earnings().ListEarnings(ctx, userID)
}

// newProviderReference generates the reference the provider echoes back in
// webhooks and status polls.
func newProviderReference() string {
	return "wd-" + uuid.NewString()
}
