package postgres

import (
	"context"
	"fmt"
)

type WebhookEventRepo struct {
	DB DBTX
}

// The (event_type, reference) primary key is the idempotency mechanism:
// the insert either claims the key or hits the conflict and changes nothing.
const markWebhookApplied = `-- name: MarkWebhookApplied
INSERT INTO webhook_events (event_type, reference, received_at)
VALUES ($1, $2, now())
ON CONFLICT DO NOTHING
`

func (r *WebhookEventRepo) MarkApplied(ctx context.Context, eventType string, reference string) (bool, error) {
	tag, err := r.DB.Exec(ctx, markWebhookApplied, eventType, reference)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
