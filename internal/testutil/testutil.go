// Package testutil starts the throwaway postgres the integration tests run
// against and provides transaction scoping helpers.
package testutil

import (
	"context"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/soundrise/wallet/internal/db"
)

type PostgresContainer struct {
	Pool      *pgxpool.Pool
	Terminate func()
}

// StartPostgresContainer runs postgres in docker, applies the wallet schema
// and hands back a ready pool. The container maps its own host port, so
// parallel packages never collide. Fails the test right away when docker is
// not available, so the failure mode is obvious.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker not available or not running. Err:%s", out)
	}

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("wallet-test"),
		postgres.WithUsername("wallet"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Error happened when starting postgres container")

	dsn, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when reading the container connection string")
	t.Logf("Container with pg started, DSN=%v", dsn)

	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting and migrating the wallet schema")

	return PostgresContainer{
		Pool: dbpool,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type txStarter interface {
	Begin(context.Context) (pgx.Tx, error)
}

// InTx runs testFunc inside a transaction that is rolled back when the test
// ends, so the database is unchanged between tests.
func InTx(pool txStarter, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := pool.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	testFunc(tx)
}
