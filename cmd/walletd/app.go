package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/soundrise/wallet/internal/db"
	"github.com/soundrise/wallet/internal/handlers"
	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/repository/postgres"
	"github.com/soundrise/wallet/internal/service/notify"
	"github.com/soundrise/wallet/internal/service/provider"
	"github.com/soundrise/wallet/internal/service/reconciler"
	"github.com/soundrise/wallet/internal/service/security"
	"github.com/soundrise/wallet/internal/service/wallet"
	"github.com/soundrise/wallet/internal/service/webhook"
	"github.com/soundrise/wallet/internal/service/withdrawal"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	poller   *reconciler.Poller
	notifier *notify.ChannelNotifier
	logger   logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	notifier := notify.NewChannelNotifier(256, logger)
	providerClient := provider.NewClient(c.ProviderBaseURL, c.ProviderSecret, logger)
	withdrawalService := withdrawal.NewService(storage, providerClient, notifier, logger)
	walletService := wallet.NewService(storage, logger)
	securityService := security.NewService(security.DefaultHasher, storage, logger)
	webhookService := webhook.NewService(c.ProviderSecret, storage, withdrawalService, logger)
	reconcilerService := reconciler.NewService(storage, providerClient, withdrawalService, logger)
	poller := reconciler.NewPoller(storage, reconcilerService, withdrawalService, c.ReconcileInterval, logger)

	mux := handlers.NewRouter(
		walletService,
		securityService,
		reconcilerService,
		webhookService,
		c.JWTSecret,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		poller:     poller,
		notifier:   notifier,
		logger:     logger,
	}, nil
}

// Run starts the http server and the background workers, closing gracefully
// on context cancellation.
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Background dispatch and reconcile sweep
	pollerStopped := s.poller.Run(srvCtx)

	// Stand-in consumer for the notification collaborator: hand events to
	// the sender once it exists, log them until then.
	go func() {
		for event := range s.notifier.Events() {
			s.logger.Info("Withdrawal status changed",
				"transaction_id", event.TransactionID,
				"user_id", event.UserID,
				"old_status", event.OldStatus,
				"new_status", event.NewStatus,
			)
		}
	}()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-pollerStopped

	return err
}
