package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/soundrise/wallet/internal/handlers/middleware"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/service/webhook"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	walletService walletService,
	securityService securityService,
	reconcilerService reconcilerService,
	webhookService webhookService,
	authSecret string,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authSecret)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiwallet := http.NewServeMux()

	apiwallet.Handle("GET /balance", withAuth(handleGetBalance(walletService, logger)))
	apiwallet.Handle("GET /earnings", withAuth(handleListEarnings(walletService, logger)))
	apiwallet.Handle("POST /withdrawals", withAuth(handleRequestWithdrawal(walletService, securityService, logger)))
	apiwallet.Handle("GET /withdrawals", withAuth(handleListWithdrawals(walletService, logger)))
	apiwallet.Handle("GET /withdrawals/{id}", withAuth(handleGetWithdrawal(walletService, logger)))
	apiwallet.Handle("POST /withdrawals/{id}/reconcile", withAuth(handleReconcileWithdrawal(walletService, reconcilerService, logger)))
	apiwallet.Handle("POST /pin", withAuth(handleSetupPin(securityService, logger)))
	apiwallet.Handle("POST /pin/verify", withAuth(handleVerifyPin(securityService, logger)))
	apiwallet.Handle("PUT /pin", withAuth(handleChangePin(securityService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/wallet/", http.StripPrefix("/api/wallet", apiwallet))
	root.Handle("POST /webhooks/provider", handleProviderWebhook(webhookService, logger))
	root.Handle("GET /metrics", promhttp.Handler())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type walletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.WalletBalance, error)
	CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, payoutMethodID uuid.UUID, meta models.RequestMeta) (models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)
	ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.Earning, error)
}

type securityService interface {
	SetupPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error
	VerifyPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error
	ChangePin(ctx context.Context, userID uuid.UUID, currentPin string, newPin string, meta models.RequestMeta) error
}

type reconcilerService interface {
	Reconcile(ctx context.Context, transactionID uuid.UUID) (models.Withdrawal, error)
}

type webhookService interface {
	VerifySignature(rawBody []byte, signatureHeader string) bool
	Ingest(ctx context.Context, event webhook.Event) (webhook.ApplyResult, error)
}

// requestMeta extracts the caller context recorded in the security log.
func requestMeta(r *http.Request) models.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return models.RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
