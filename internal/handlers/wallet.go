package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/handlers/render"
	"github.com/soundrise/wallet/internal/handlers/userctx"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/models"
)

type withdrawalResponse struct {
	ID                string     `json:"id"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	PayoutMethodID    string     `json:"payout_method_id"`
	ProviderReference string     `json:"provider_reference"`
	RequestedAt       time.Time  `json:"requested_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
}

func toWithdrawalResponse(w models.Withdrawal) withdrawalResponse {
	amount, _ := w.Amount.Float64()
	return withdrawalResponse{
		ID:                w.ID.String(),
		Amount:            amount,
		Currency:          w.Currency,
		Status:            w.Status,
		PayoutMethodID:    w.PayoutMethodID.String(),
		ProviderReference: w.ProviderReference,
		RequestedAt:       w.RequestedAt,
		ApprovedAt:        w.ApprovedAt,
		CompletedAt:       w.CompletedAt,
		FailureReason:     w.FailureReason,
	}
}

func handleGetBalance(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		TotalEarnings    float64 `json:"total_earnings"`
		AvailableBalance float64 `json:"available_balance"`
		PendingBalance   float64 `json:"pending_balance"`
		Currency         string  `json:"currency"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := walletService.GetBalance(r.Context(), userID)
		if err != nil {
			l.Error("Failed to compute balance", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		total, _ := balance.TotalEarnings.Float64()
		available, _ := balance.AvailableBalance.Float64()
		pending, _ := balance.PendingBalance.Float64()
		render.JSON(w, response{total, available, pending, balance.Currency})
	})
}

func handleRequestWithdrawal(walletService walletService, securityService securityService, l logger.Logger) http.Handler {
	type request struct {
		Amount         decimal.Decimal `json:"amount" validate:"required"`
		PayoutMethodID uuid.UUID       `json:"payout_method_id" validate:"required"`
		Pin            string          `json:"pin" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		meta := requestMeta(r)
		if err := securityService.VerifyPin(r.Context(), userID, req.Pin, meta); err != nil {
			writePinError(w, err, l)
			return
		}

		withdrawal, err := walletService.CreateWithdrawal(r.Context(), userID, req.Amount, req.PayoutMethodID, meta)

		switch {
		case err == nil:
			render.JSONWithStatus(w, toWithdrawalResponse(withdrawal), http.StatusCreated)
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrUnverifiedPayoutMethod):
			render.ServiceError(w, "Payout method is not verified", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrPayoutMethodNotFound):
			render.ServiceError(w, "Payout method not found", http.StatusNotFound)
		default:
			l.Error("Failed to create withdrawal", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListWithdrawals(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		withdrawals, err := walletService.ListWithdrawals(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list withdrawals", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]withdrawalResponse, 0, len(withdrawals))
		for _, withdrawal := range withdrawals {
			response = append(response, toWithdrawalResponse(withdrawal))
		}
		render.JSON(w, response)
	})
}

func handleGetWithdrawal(walletService walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid withdrawal id", http.StatusBadRequest)
			return
		}

		withdrawal, err := walletService.GetWithdrawal(r.Context(), userID, id)

		switch {
		case err == nil:
			render.JSON(w, toWithdrawalResponse(withdrawal))
		case errors.Is(err, apperrors.ErrWithdrawalNotFound):
			render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
		default:
			l.Error("Failed to get withdrawal", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleReconcileWithdrawal(walletService walletService, reconcilerService reconcilerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid withdrawal id", http.StatusBadRequest)
			return
		}

		// Ownership check before touching the provider.
		if _, err := walletService.GetWithdrawal(r.Context(), userID, id); err != nil {
			if errors.Is(err, apperrors.ErrWithdrawalNotFound) {
				render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
				return
			}
			l.Error("Failed to load withdrawal", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		withdrawal, err := reconcilerService.Reconcile(r.Context(), id)

		switch {
		case err == nil:
			render.JSON(w, toWithdrawalResponse(withdrawal))
		case errors.Is(err, apperrors.ErrProviderTimeout):
			render.ServiceError(w, "Provider timed out, try again later", http.StatusGatewayTimeout)
		case errors.Is(err, apperrors.ErrInvalidStateTransition):
			// A race with a webhook or another reconcile moved the row first.
			render.ServiceError(w, "Withdrawal state changed, retry", http.StatusConflict)
		default:
			l.Error("Failed to reconcile withdrawal", "error", err, "transaction_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListEarnings(walletService walletService, l logger.Logger) http.Handler {
	type earning struct {
		ID          string    `json:"id"`
		SourceID    string    `json:"source_id"`
		Platform    string    `json:"platform"`
		Amount      float64   `json:"amount"`
		Currency    string    `json:"currency"`
		Status      string    `json:"status"`
		PeriodStart time.Time `json:"period_start"`
		PeriodEnd   time.Time `json:"period_end"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		earnings, err := walletService.ListEarnings(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list earnings", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]earning, 0, len(earnings))
		for _, e := range earnings {
			amount, _ := e.Amount.Float64()
			response = append(response, earning{
				ID:          e.ID.String(),
				SourceID:    e.SourceID,
				Platform:    e.Platform,
				Amount:      amount,
				Currency:    e.Currency,
				Status:      e.Status,
				PeriodStart: e.PeriodStart,
				PeriodEnd:   e.PeriodEnd,
			})
		}
		render.JSON(w, response)
	})
}
