package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/service/webhook"
)

const (
	testAuthSecret    = "jwt-secret"
	testWebhookSecret = "whsec_test"
)

// stubWallet scripts the wallet service responses per test.
type stubWallet struct {
	balance          models.WalletBalance
	withdrawal       models.Withdrawal
	createErr        error
	getErr           error
	gotAmount        decimal.Decimal
	gotPayoutMethodID uuid.UUID
}

func (s *stubWallet) GetBalance(ctx context.Context, userID uuid.UUID) (models.WalletBalance, error) {
	return s.balance, nil
}

func (s *stubWallet) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, payoutMethodID uuid.UUID, meta models.RequestMeta) (models.Withdrawal, error) {
	s.gotAmount = amount
	s.gotPayoutMethodID = payoutMethodID
	return s.withdrawal, s.createErr
}

func (s *stubWallet) GetWithdrawal(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Withdrawal, error) {
	return s.withdrawal, s.getErr
}

func (s *stubWallet) ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	return []models.Withdrawal{s.withdrawal}, nil
}

func (s *stubWallet) ListEarnings(ctx context.Context, userID uuid.UUID) ([]models.Earning, error) {
	return nil, nil
}

type stubSecurity struct {
	setupErr  error
	verifyErr error
	changeErr error
}

func (s *stubSecurity) SetupPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error {
	return s.setupErr
}

func (s *stubSecurity) VerifyPin(ctx context.Context, userID uuid.UUID, pin string, meta models.RequestMeta) error {
	return s.verifyErr
}

func (s *stubSecurity) ChangePin(ctx context.Context, userID uuid.UUID, currentPin string, newPin string, meta models.RequestMeta) error {
	return s.changeErr
}

type stubReconciler struct {
	withdrawal models.Withdrawal
	err        error
}

func (s *stubReconciler) Reconcile(ctx context.Context, transactionID uuid.UUID) (models.Withdrawal, error) {
	return s.withdrawal, s.err
}

type stubWebhook struct {
	secret string
	result webhook.ApplyResult
	err    error
}

func (s *stubWebhook) VerifySignature(rawBody []byte, signatureHeader string) bool {
	mac := hmac.New(sha512.New, []byte(s.secret))
	mac.Write(rawBody)
	want := hex.EncodeToString(mac.Sum(nil))
	return signatureHeader == want
}

func (s *stubWebhook) Ingest(ctx context.Context, event webhook.Event) (webhook.ApplyResult, error) {
	return s.result, s.err
}

type routerStubs struct {
	wallet     *stubWallet
	security   *stubSecurity
	reconciler *stubReconciler
	webhook    *stubWebhook
}

func newTestRouter(stubs routerStubs) http.Handler {
	if stubs.wallet == nil {
		stubs.wallet = &stubWallet{}
	}
	if stubs.security == nil {
		stubs.security = &stubSecurity{}
	}
	if stubs.reconciler == nil {
		stubs.reconciler = &stubReconciler{}
	}
	if stubs.webhook == nil {
		stubs.webhook = &stubWebhook{secret: testWebhookSecret, result: webhook.ResultApplied}
	}

	return NewRouter(stubs.wallet, stubs.security, stubs.reconciler, stubs.webhook, testAuthSecret, logger.NewNoOp())
}

func accessToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	claims := accessTokenClaimsForTest{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAuthSecret))
	require.NoError(t, err)

	return token
}

type accessTokenClaimsForTest struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

func authedRequest(t *testing.T, method string, target string, body string) *http.Request {
	t.Helper()

	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+accessToken(t, uuid.New()))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}

	return r
}

func TestAuth(t *testing.T) {
	router := newTestRouter(routerStubs{})

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil))

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaimsForTest{UserID: uuid.New()}).
			SignedString([]byte("wrong"))
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/api/wallet/balance", ""))

		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHandleGetBalance(t *testing.T) {
	wallet := &stubWallet{balance: models.WalletBalance{
		TotalEarnings:    decimal.NewFromInt(1000),
		AvailableBalance: decimal.NewFromInt(700),
		PendingBalance:   decimal.NewFromInt(50),
		Currency:         "USD",
	}}
	router := newTestRouter(routerStubs{wallet: wallet})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, http.MethodGet, "/api/wallet/balance", ""))

	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		TotalEarnings    float64 `json:"total_earnings"`
		AvailableBalance float64 `json:"available_balance"`
		PendingBalance   float64 `json:"pending_balance"`
		Currency         string  `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, 1000.0, got.TotalEarnings)
	require.Equal(t, 700.0, got.AvailableBalance)
	require.Equal(t, 50.0, got.PendingBalance)
	require.Equal(t, "USD", got.Currency)
}

func TestHandleRequestWithdrawal(t *testing.T) {
	methodID := uuid.New()
	body := `{"amount": 100, "payout_method_id": "` + methodID.String() + `", "pin": "274913"}`

	t.Run("created", func(t *testing.T) {
		wallet := &stubWallet{withdrawal: models.Withdrawal{
			ID:             uuid.New(),
			Amount:         decimal.NewFromInt(100),
			Currency:       "USD",
			Status:         models.WithdrawalStatusPending,
			PayoutMethodID: methodID,
			RequestedAt:    time.Now(),
		}}
		router := newTestRouter(routerStubs{wallet: wallet})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", body))

		require.Equal(t, http.StatusCreated, w.Code)
		require.True(t, wallet.gotAmount.Equal(decimal.NewFromInt(100)))
		require.Equal(t, methodID, wallet.gotPayoutMethodID)
	})

	t.Run("wrong pin blocks before the ledger is touched", func(t *testing.T) {
		wallet := &stubWallet{}
		router := newTestRouter(routerStubs{
			wallet:   wallet,
			security: &stubSecurity{verifyErr: apperrors.ErrPinMismatch},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", body))

		require.Equal(t, http.StatusForbidden, w.Code)
		require.True(t, wallet.gotAmount.IsZero(), "the wallet service must not be called")
	})

	t.Run("locked out pin returns retry hint", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			security: &stubSecurity{verifyErr: &apperrors.LockedOutError{Until: time.Now().Add(10 * time.Minute)}},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", body))

		require.Equal(t, http.StatusLocked, w.Code)
		require.Contains(t, w.Body.String(), "retry_after_seconds")
	})

	t.Run("insufficient balance", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet: &stubWallet{createErr: apperrors.ErrInsufficientBalance},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", body))

		require.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("unverified payout method", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet: &stubWallet{createErr: apperrors.ErrUnverifiedPayoutMethod},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", body))

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		router := newTestRouter(routerStubs{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals", `{"amount": 100}`))

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleReconcileWithdrawal(t *testing.T) {
	id := uuid.New()

	t.Run("converged view is returned", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet:     &stubWallet{withdrawal: models.Withdrawal{ID: id, Status: models.WithdrawalStatusProcessing}},
			reconciler: &stubReconciler{withdrawal: models.Withdrawal{ID: id, Status: models.WithdrawalStatusPaid}},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals/"+id.String()+"/reconcile", ""))

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), models.WithdrawalStatusPaid)
	})

	t.Run("provider timeout maps to gateway timeout", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet:     &stubWallet{withdrawal: models.Withdrawal{ID: id}},
			reconciler: &stubReconciler{err: apperrors.ErrProviderTimeout},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals/"+id.String()+"/reconcile", ""))

		require.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("lost transition race maps to conflict", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet:     &stubWallet{withdrawal: models.Withdrawal{ID: id}},
			reconciler: &stubReconciler{err: apperrors.ErrInvalidStateTransition},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals/"+id.String()+"/reconcile", ""))

		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("someone else's withdrawal is not found", func(t *testing.T) {
		router := newTestRouter(routerStubs{
			wallet: &stubWallet{getErr: apperrors.ErrWithdrawalNotFound},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/withdrawals/"+id.String()+"/reconcile", ""))

		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleSetupPin(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setupErr error
		want     int
	}{
		{name: "created", body: `{"pin": "274913"}`, want: http.StatusCreated},
		{name: "weak pin", body: `{"pin": "123456"}`, setupErr: apperrors.ErrWeakPin, want: http.StatusUnprocessableEntity},
		{name: "already set", body: `{"pin": "274913"}`, setupErr: apperrors.ErrPinAlreadySet, want: http.StatusConflict},
		{name: "non numeric rejected by validation", body: `{"pin": "abcdef"}`, want: http.StatusBadRequest},
		{name: "missing pin", body: `{}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(routerStubs{security: &stubSecurity{setupErr: tt.setupErr}})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest(t, http.MethodPost, "/api/wallet/pin", tt.body))

			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleProviderWebhook(t *testing.T) {
	body := `{"event":"transfer.success","data":{"reference":"wd-1","status":"success"}}`

	sign := func(payload string) string {
		mac := hmac.New(sha512.New, []byte(testWebhookSecret))
		mac.Write([]byte(payload))
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("authenticated event is ingested", func(t *testing.T) {
		router := newTestRouter(routerStubs{})

		r := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body))
		r.Header.Set(signatureHeader, sign(body))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), string(webhook.ResultApplied))
	})

	t.Run("bad signature is unauthorized", func(t *testing.T) {
		router := newTestRouter(routerStubs{})

		r := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body))
		r.Header.Set(signatureHeader, sign("other payload"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing signature is unauthorized", func(t *testing.T) {
		router := newTestRouter(routerStubs{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body)))

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("authenticated but malformed body", func(t *testing.T) {
		router := newTestRouter(routerStubs{})
		malformed := `{"event":`

		r := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(malformed))
		r.Header.Set(signatureHeader, sign(malformed))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
