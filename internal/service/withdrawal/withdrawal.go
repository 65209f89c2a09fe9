package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/metrics"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
	"github.com/soundrise/wallet/internal/service/notify"
	"github.com/soundrise/wallet/internal/service/provider"
)

type providerClient interface {
	InitiateTransfer(ctx context.Context, req provider.TransferRequest) (provider.Transfer, error)
}

// TransitionMeta carries the optional side data a transition records.
type TransitionMeta struct {
	TransferCode     *string
	FailureReason    *string
	ProviderResponse map[string]any
	Request          models.RequestMeta
}

// Service owns the withdrawal lifecycle. Every status change goes through
// Transition, under the per-row lock, so concurrent writers serialize.
type Service struct {
	storage  repository.Storage
	provider providerClient
	notifier notify.Notifier
	logger   logger.Logger
}

func NewService(storage repository.Storage, providerClient providerClient, notifier notify.Notifier, l logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.NoOpNotifier{}
	}

	return &Service{
		storage:  storage,
		provider: providerClient,
		notifier: notifier,
		logger:   l,
	}
}

// Transition moves the withdrawal to 'target' in its own transaction.
// A same-state request is a no-op success. An impossible move returns
// apperrors.ErrInvalidStateTransition and leaves the row untouched.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target string, meta TransitionMeta) (models.Withdrawal, error) {
	var result models.Withdrawal
	var oldStatus string

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		result, oldStatus, err = s.transition(ctx, st, id, target, meta)
		return err
	})
	if err != nil {
		return result, err
	}

	s.announce(oldStatus, result)
	return result, nil
}

// TransitionIn is Transition running inside the caller's transaction. The
// caller must invoke AnnounceIfChanged after its transaction commits, never
// before: a notification for a rolled-back transition would be a lie.
func (s *Service) TransitionIn(ctx context.Context, st repository.Storage, id uuid.UUID, target string, meta TransitionMeta) (w models.Withdrawal, oldStatus string, err error) {
	return s.transition(ctx, st, id, target, meta)
}

// AnnounceIfChanged publishes the status change to the notifier and metrics.
func (s *Service) AnnounceIfChanged(oldStatus string, w models.Withdrawal) {
	s.announce(oldStatus, w)
}

func (s *Service) transition(ctx context.Context, st repository.Storage, id uuid.UUID, target string, meta TransitionMeta) (models.Withdrawal, string, error) {
	w, err := st.Withdrawals().GetForUpdate(ctx, id)
	if err != nil {
		return w, "", err
	}
	oldStatus := w.Status

	path, err := models.TransitionPath(w.Status, target)
	if err != nil {
		// A backward or impossible move is a defect or a lost race, not an
		// expected external condition. Log loudly, reject, leave the row as is.
		s.logger.Error("Invalid withdrawal state transition requested",
			"transaction_id", w.ID, "from", w.Status, "to", target)
		return w, oldStatus, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidStateTransition, w.Status, target)
	}

	dirty := false
	if meta.TransferCode != nil {
		w.ProviderTransferCode = meta.TransferCode
		dirty = true
	}
	if meta.ProviderResponse != nil {
		w.ProviderResponse = meta.ProviderResponse
		dirty = true
	}

	if len(path) == 0 {
		// Idempotent apply: the status is already there. Side data like the
		// transfer code is still persisted when present.
		if !dirty {
			return w, oldStatus, nil
		}
		w, err = st.Withdrawals().Update(ctx, w)
		return w, oldStatus, err
	}

	// A single authoritative event may skip ahead; every intermediate status
	// is still recorded, all under one timestamp, so the audit history reads
	// as a complete lifecycle.
	now := time.Now()
	for _, status := range path {
		from := w.Status
		w.Status = status

		switch status {
		case models.WithdrawalStatusApproved:
			w.ApprovedAt = &now
		case models.WithdrawalStatusPaid:
			w.CompletedAt = &now
		case models.WithdrawalStatusFailed:
			w.FailureReason = meta.FailureReason
			if w.FailureReason == nil {
				reason := "unspecified failure"
				w.FailureReason = &reason
			}
		case models.WithdrawalStatusRejected:
			if meta.FailureReason != nil {
				w.FailureReason = meta.FailureReason
			}
		}

		_, err = st.SecurityLog().Append(ctx, models.SecurityLogEntry{
			ID:        uuid.New(),
			UserID:    w.UserID,
			Event:     models.SecurityEventWithdrawalTransition,
			IPAddress: meta.Request.IPAddress,
			UserAgent: meta.Request.UserAgent,
			Details: map[string]any{
				"transaction_id": w.ID.String(),
				"from":           from,
				"to":             status,
			},
			CreatedAt: now,
		})
		if err != nil {
			return w, oldStatus, err
		}

		metrics.Transitions.WithLabelValues(status).Inc()
	}

	w, err = st.Withdrawals().Update(ctx, w)
	if err != nil {
		return w, oldStatus, err
	}

	s.logger.Info("Withdrawal transitioned",
		"transaction_id", w.ID, "from", oldStatus, "to", w.Status)
	return w, oldStatus, nil
}

func (s *Service) announce(oldStatus string, w models.Withdrawal) {
	if oldStatus == w.Status || !models.IsTerminalStatus(w.Status) {
		return
	}

	s.notifier.NotifyStatusChanged(notify.WithdrawalStatusChanged{
		TransactionID: w.ID,
		UserID:        w.UserID,
		OldStatus:     oldStatus,
		NewStatus:     w.Status,
		At:            time.Now(),
	})
}

// Approve clears the withdrawal for dispatch and initiates the transfer.
// The provider's transfer code is recorded on success; a provider rejection
// terminalizes the withdrawal as failed; a timeout leaves it approved for
// the reconciler (the outcome is unknown, failing it could double-send).
//
// The whole step runs in one transaction, so the row lock taken by the
// approved transition is held across the dispatch. A concurrent Approve
// blocks on that lock and then observes the recorded transfer code instead
// of initiating a second transfer.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, meta models.RequestMeta) (models.Withdrawal, error) {
	var result models.Withdrawal
	var oldStatus string
	var dispatchErr error

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		w, err := st.Withdrawals().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if w.ProviderTransferCode != nil {
			// Already dispatched, approve was retried. The row may have
			// advanced past approved by now, leave it where it is.
			result, oldStatus = w, w.Status
			return nil
		}

		w, old, err := s.transition(ctx, st, id, models.WithdrawalStatusApproved, TransitionMeta{Request: meta})
		if err != nil {
			return err
		}
		result, oldStatus = w, old

		method, err := st.PayoutMethods().Get(ctx, w.PayoutMethodID)
		if err != nil {
			return err
		}

		recipient, _ := method.AccountDetails["recipient_code"].(string)
		transfer, err := s.provider.InitiateTransfer(ctx, provider.TransferRequest{
			Amount:    w.Amount,
			Currency:  w.Currency,
			Reference: w.ProviderReference,
			Recipient: recipient,
			Reason:    "artist withdrawal",
		})

		var provErr *provider.Error
		switch {
		case err == nil:
			target := models.WithdrawalStatusApproved
			if mapped, ok := provider.MapStatus(transfer.Status); ok && mapped != models.WithdrawalStatusFailed {
				target = mapped
			}
			result, _, err = s.transition(ctx, st, id, target, TransitionMeta{
				TransferCode: &transfer.TransferCode,
				Request:      meta,
			})
			return err

		case errors.As(err, &provErr) && provErr.Code == provider.CodeTimeout:
			// Commit the approved transition and surface the timeout to
			// the caller. The reconciler or a retried approve resolves it.
			s.logger.Warn("Transfer dispatch timed out, leaving withdrawal approved",
				"transaction_id", w.ID, "reference", w.ProviderReference)
			dispatchErr = apperrors.ErrProviderTimeout
			return nil

		default:
			reason := err.Error()
			result, _, err = s.transition(ctx, st, id, models.WithdrawalStatusFailed, TransitionMeta{
				FailureReason: &reason,
				Request:       meta,
			})
			return err
		}
	})
	if err != nil {
		return result, err
	}

	s.announce(oldStatus, result)
	return result, dispatchErr
}

// Reject cancels a withdrawal before dispatch (internal-only policy action),
// or terminalizes a failed one.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, meta models.RequestMeta) (models.Withdrawal, error) {
	return s.Transition(ctx, id, models.WithdrawalStatusRejected, TransitionMeta{
		FailureReason: &reason,
		Request:       meta,
	})
}
