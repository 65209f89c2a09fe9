package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/metrics"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
	"github.com/soundrise/wallet/internal/service/provider"
	"github.com/soundrise/wallet/internal/service/withdrawal"
)

type ApplyResult string

const (
	ResultApplied        ApplyResult = "applied"
	ResultAlreadyApplied ApplyResult = "already_applied"
	ResultIgnored        ApplyResult = "ignored"
)

type withdrawalService interface {
	TransitionIn(ctx context.Context, st repository.Storage, id uuid.UUID, target string, meta withdrawal.TransitionMeta) (models.Withdrawal, string, error)
	AnnounceIfChanged(oldStatus string, w models.Withdrawal)
}

// Service authenticates provider callbacks and applies each at most once.
type Service struct {
	secret      string
	storage     repository.Storage
	withdrawals withdrawalService
	logger      logger.Logger
}

func NewService(secret string, storage repository.Storage, withdrawals withdrawalService, l logger.Logger) *Service {
	return &Service{
		secret:      secret,
		storage:     storage,
		withdrawals: withdrawals,
		logger:      l,
	}
}

// VerifySignature recomputes HMAC-SHA512 over the raw body and compares it
// constant-time against the hex signature header.
func (s *Service) VerifySignature(rawBody []byte, signatureHeader string) bool {
	sig, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signatureHeader)))
	if err != nil || len(sig) == 0 {
		return false
	}

	mac := hmac.New(sha512.New, []byte(s.secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), sig)
}

// Ingest applies one authenticated event. The dedupe-key insert and the
// state transition share a transaction: either the event is applied exactly
// once or not at all. Delivery is at-least-once from the provider's side,
// so this is the sole correctness mechanism against duplicates.
func (s *Service) Ingest(ctx context.Context, event Event) (ApplyResult, error) {
	if _, ok := event.(UnknownEvent); ok {
		s.logger.Info("Acknowledging unrecognized webhook event", "event_type", event.EventType())
		metrics.WebhookEvents.WithLabelValues(string(ResultIgnored)).Inc()
		return ResultIgnored, nil
	}

	if event.Reference() == "" {
		s.logger.Warn("Webhook event without reference, acknowledging without apply", "event_type", event.EventType())
		metrics.WebhookEvents.WithLabelValues(string(ResultIgnored)).Inc()
		return ResultIgnored, nil
	}

	var result ApplyResult
	var transitioned models.Withdrawal
	var oldStatus string

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		claimed, err := st.WebhookEvents().MarkApplied(ctx, event.EventType(), event.Reference())
		if err != nil {
			return err
		}
		if !claimed {
			result = ResultAlreadyApplied
			return nil
		}

		switch e := event.(type) {
		case TransferEvent:
			result, transitioned, oldStatus, err = s.applyTransferEvent(ctx, st, e)
			return err

		case ChargeSuccessEvent:
			// Campaign payment confirmation is the collaborator's business;
			// the engine records the event key and nothing else.
			s.logger.Info("Charge event recorded", "reference", e.ChargeRef, "payment_type", e.PaymentType)
			result = ResultApplied
			return nil

		default:
			result = ResultIgnored
			return nil
		}
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return result, err
	}

	if result == ResultApplied && transitioned.ID != uuid.Nil {
		s.withdrawals.AnnounceIfChanged(oldStatus, transitioned)
	}

	metrics.WebhookEvents.WithLabelValues(string(result)).Inc()
	return result, nil
}

func (s *Service) applyTransferEvent(ctx context.Context, st repository.Storage, e TransferEvent) (ApplyResult, models.Withdrawal, string, error) {
	var w models.Withdrawal

	target, ok := provider.MapStatus(e.ProviderStatus)
	if !ok {
		s.logger.Warn("Transfer event with unmapped status, acknowledging",
			"reference", e.TransferRef, "provider_status", e.ProviderStatus)
		return ResultIgnored, w, "", nil
	}

	w, err := st.Withdrawals().GetByProviderReference(ctx, e.TransferRef)
	if err != nil {
		if errors.Is(err, apperrors.ErrWithdrawalNotFound) {
			s.logger.Warn("Transfer event for unknown reference, acknowledging", "reference", e.TransferRef)
			return ResultIgnored, w, "", nil
		}
		return ResultIgnored, w, "", err
	}

	meta := withdrawal.TransitionMeta{ProviderResponse: e.Payload}
	if e.TransferCode != "" {
		meta.TransferCode = &e.TransferCode
	}
	if e.FailureReason != "" && target == models.WithdrawalStatusFailed {
		meta.FailureReason = &e.FailureReason
	}

	w, oldStatus, err := s.withdrawals.TransitionIn(ctx, st, w.ID, target, meta)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidStateTransition) {
			// Stale or out-of-order delivery, e.g. a 'processing' report
			// arriving after 'paid'. Discard, never move backward.
			s.logger.Warn("Discarding stale transfer event",
				"reference", e.TransferRef, "local_status", w.Status, "event_status", target)
			return ResultIgnored, w, "", nil
		}
		return ResultIgnored, w, "", err
	}

	return ResultApplied, w, oldStatus, nil
}
