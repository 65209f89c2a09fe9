package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soundrise/wallet/internal/repository"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx both, so every repo works
// inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Earnings() repository.EarningRepo {
	return &EarningRepo{DB: s.db}
}

func (s *Storage) Withdrawals() repository.WithdrawalRepo {
	return &WithdrawalRepo{DB: s.db}
}

func (s *Storage) PayoutMethods() repository.PayoutMethodRepo {
	return &PayoutMethodRepo{DB: s.db}
}

func (s *Storage) Pins() repository.PinRepo {
	return &PinRepo{DB: s.db}
}

func (s *Storage) SecurityLog() repository.SecurityLogRepo {
	return &SecurityLogRepo{DB: s.db}
}

func (s *Storage) WebhookEvents() repository.WebhookEventRepo {
	return &WebhookEventRepo{DB: s.db}
}

func (s *Storage) Ledger() repository.LedgerRepo {
	return &LedgerRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
