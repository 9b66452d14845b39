package repo

import (
	"context"
	"database/sql"

	"checkout-api/internal/usecase"
)

// MySQLWebhookEventRepo deduplicates provider webhook deliveries through a
// unique event_id key; provider platforms redeliver on timeout.
type MySQLWebhookEventRepo struct{ db *sql.DB }

func NewMySQLWebhookEventRepo(db *sql.DB) *MySQLWebhookEventRepo {
	return &MySQLWebhookEventRepo{db: db}
}

func (r *MySQLWebhookEventRepo) MarkProcessed(ctx context.Context, eventID, eventType, providerOrderID string) (bool, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO webhook_events (event_id,event_type,provider_order_id,received_at)
VALUES (?,?,?,NOW())
`, eventID, eventType, providerOrderID)
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MySQLWebhookEventRepo) Clear(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE event_id=?`, eventID)
	return err
}

var _ usecase.WebhookEventRepo = (*MySQLWebhookEventRepo)(nil)
