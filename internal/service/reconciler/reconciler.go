package reconciler

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/metrics"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
	"github.com/soundrise/wallet/internal/service/provider"
	"github.com/soundrise/wallet/internal/service/withdrawal"
)

type providerClient interface {
	GetTransfer(ctx context.Context, transferCode string) (provider.Transfer, error)
}

type withdrawalService interface {
	Transition(ctx context.Context, id uuid.UUID, target string, meta withdrawal.TransitionMeta) (models.Withdrawal, error)
}

// Service pulls the authoritative transfer status from the provider and
// converges local state, used when no webhook arrived in the expected
// window or a user explicitly checks status.
type Service struct {
	storage     repository.Storage
	provider    providerClient
	withdrawals withdrawalService
	logger      logger.Logger
}

func NewService(storage repository.Storage, providerClient providerClient, withdrawals withdrawalService, l logger.Logger) *Service {
	return &Service{
		storage:     storage,
		provider:    providerClient,
		withdrawals: withdrawals,
		logger:      l,
	}
}

// Reconcile converges one withdrawal to the provider's view. Repeated calls
// with no status change are no-ops, and the provider's answer is discarded
// whenever it would move the withdrawal backward (stale reads happen).
func (s *Service) Reconcile(ctx context.Context, transactionID uuid.UUID) (models.Withdrawal, error) {
	w, err := s.storage.Withdrawals().Get(ctx, transactionID)
	if err != nil {
		return w, err
	}

	if w.ProviderTransferCode == nil || models.IsTerminalStatus(w.Status) {
		// Nothing to reconcile: never dispatched, or already settled.
		metrics.Reconciliations.WithLabelValues("noop").Inc()
		return w, nil
	}

	transfer, err := s.provider.GetTransfer(ctx, *w.ProviderTransferCode)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("error").Inc()

		var provErr *provider.Error
		if errors.As(err, &provErr) && provErr.Code == provider.CodeTimeout {
			return w, apperrors.ErrProviderTimeout
		}
		return w, err
	}

	target, ok := provider.MapStatus(transfer.Status)
	if !ok {
		s.logger.Warn("Provider reported unmapped transfer status",
			"transaction_id", w.ID, "provider_status", transfer.Status)
		metrics.Reconciliations.WithLabelValues("noop").Inc()
		return w, nil
	}

	if target == w.Status {
		metrics.Reconciliations.WithLabelValues("noop").Inc()
		return w, nil
	}

	meta := withdrawal.TransitionMeta{}
	if transfer.FailureReason != "" && target == models.WithdrawalStatusFailed {
		meta.FailureReason = &transfer.FailureReason
	}

	converged, err := s.withdrawals.Transition(ctx, transactionID, target, meta)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidStateTransition) {
			// The provider answered with an older status than we hold
			// (out-of-order response). Keep local state.
			s.logger.Warn("Discarding stale provider status",
				"transaction_id", w.ID, "local_status", w.Status, "provider_status", target)
			metrics.Reconciliations.WithLabelValues("noop").Inc()
			return w, nil
		}
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return w, err
	}

	metrics.Reconciliations.WithLabelValues("converged").Inc()
	return converged, nil
}
