package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundrise/wallet/internal/models"
)

type SecurityLogRepo struct {
	DB DBTX
}

const appendSecurityLog = `-- name: AppendSecurityLog
INSERT INTO security_log (id, user_id, event, ip_address, user_agent, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, event, ip_address, user_agent, details, created_at
`

func (r *SecurityLogRepo) Append(ctx context.Context, entry models.SecurityLogEntry) (models.SecurityLogEntry, error) {
	rows, _ := r.DB.Query(ctx, appendSecurityLog,
		entry.ID, entry.UserID, entry.Event, entry.IPAddress, entry.UserAgent, entry.Details, entry.CreatedAt,
	)
	entry, err := pgx.CollectOneRow(rows, rowToSecurityLogEntry)
	if err != nil {
		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const listSecurityLog = `-- name: ListSecurityLog
SELECT id, user_id, event, ip_address, user_agent, details, created_at
FROM security_log
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (r *SecurityLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.SecurityLogEntry, error) {
	rows, _ := r.DB.Query(ctx, listSecurityLog, userID, limit)
	entries, err := pgx.CollectRows(rows, rowToSecurityLogEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

func rowToSecurityLogEntry(row pgx.CollectableRow) (models.SecurityLogEntry, error) {
	var e models.SecurityLogEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Event, &e.IPAddress, &e.UserAgent, &e.Details, &e.CreatedAt)
	return e, err
}
