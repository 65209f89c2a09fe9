package postgres

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/soundrise/wallet/internal/apperrors"
	"github.com/soundrise/wallet/internal/repository"
	"github.com/soundrise/wallet/internal/testutil"
)

func TestPinRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	t.Run("Create", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			userID := uuid.New()

			pin, err := storage.Pins().Create(t.Context(), userID, "hash-1")

			require.NoError(t, err)
			require.Equal(t, userID, pin.UserID)
			require.Equal(t, "hash-1", pin.PinHash)
			require.Zero(t, pin.FailedAttempts)
			require.Nil(t, pin.LockUntil)
		})
	})

	t.Run("Create duplicate", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			userID := uuid.New()

			_, err := storage.Pins().Create(t.Context(), userID, "hash-1")
			require.NoError(t, err)

			_, err = storage.Pins().Create(t.Context(), userID, "hash-2")
			require.ErrorIs(t, err, apperrors.ErrPinAlreadySet, "existing pin must never be overwritten")
		})
	})

	t.Run("Get missing", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			_, err := storage.Pins().Get(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrPinNotSet)
		})
	})

	t.Run("RegisterFailedAttempt sets lockout at threshold", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			userID := uuid.New()
			_, err := storage.Pins().Create(t.Context(), userID, "hash")
			require.NoError(t, err)

			lockUntil := time.Now().Add(15 * time.Minute)

			for i := 1; i <= 4; i++ {
				pin, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, lockUntil)
				require.NoError(t, err)
				require.Equal(t, i, pin.FailedAttempts)
				require.Nil(t, pin.LockUntil, "lockout must not trigger before the threshold")
			}

			pin, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, lockUntil)
			require.NoError(t, err)
			require.Equal(t, 5, pin.FailedAttempts)
			require.NotNil(t, pin.LockUntil, "fifth failure must activate the lockout")
			require.WithinDuration(t, lockUntil, *pin.LockUntil, time.Second)
		})
	})

	t.Run("expired lockout restarts the count", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			userID := uuid.New()
			_, err := storage.Pins().Create(t.Context(), userID, "hash")
			require.NoError(t, err)

			// Arm a lockout whose window is already in the past.
			expired := time.Now().Add(-time.Second)
			for i := 0; i < 5; i++ {
				_, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, expired)
				require.NoError(t, err)
			}

			pin, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, time.Now().Add(15*time.Minute))
			require.NoError(t, err)
			require.Equal(t, 1, pin.FailedAttempts, "the first failure after an expired window starts a fresh count")
			require.Nil(t, pin.LockUntil, "an expired window must not re-arm on a single failure")
		})
	})

	t.Run("ResetAttempts clears lockout", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			userID := uuid.New()
			_, err := storage.Pins().Create(t.Context(), userID, "hash")
			require.NoError(t, err)

			lockUntil := time.Now().Add(15 * time.Minute)
			for i := 0; i < 5; i++ {
				_, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, lockUntil)
				require.NoError(t, err)
			}

			err = storage.Pins().ResetAttempts(t.Context(), userID)
			require.NoError(t, err)

			pin, err := storage.Pins().Get(t.Context(), userID)
			require.NoError(t, err)
			require.Zero(t, pin.FailedAttempts)
			require.Nil(t, pin.LockUntil)
		})
	})

	// Two wrong attempts both reading attempts=4 before writing would each
	// see 5 but only thanks to the atomic statement: run the increments
	// concurrently and check nothing is lost.
	t.Run("RegisterFailedAttempt concurrent increments", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		userID := uuid.New()

		_, err := storage.Pins().Create(t.Context(), userID, "hash")
		require.NoError(t, err)

		const attempts = 5
		lockUntil := time.Now().Add(15 * time.Minute)

		var wg sync.WaitGroup
		thresholdCrossings := make(chan int, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pin, err := storage.Pins().RegisterFailedAttempt(t.Context(), userID, 5, lockUntil)
				require.NoError(t, err)
				if pin.FailedAttempts == 5 {
					thresholdCrossings <- pin.FailedAttempts
				}
			}()
		}
		wg.Wait()
		close(thresholdCrossings)

		pin, err := storage.Pins().Get(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, attempts, pin.FailedAttempts, "no increment may be lost")
		require.NotNil(t, pin.LockUntil, "lockout must be active after the threshold")
		require.Len(t, drain(thresholdCrossings), 1, "exactly one attempt crosses the threshold")
	})
}

func drain(ch <-chan int) []int {
	var out []int
	for v := range ch {
		out = append(out, v)
	}
	return out
}
