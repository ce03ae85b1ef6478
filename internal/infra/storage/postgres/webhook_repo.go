package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/arnotify/notifier/internal/core/domain"
)

// WebhookRepo implements storage.WebhookRepository using PostgreSQL.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a new PostgreSQL webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

type webhookRow struct {
	ID              string         `db:"id"`
	SubscriberID    string         `db:"subscriber_id"`
	URL             string         `db:"url"`
	Secret          sql.NullString `db:"secret"`
	Type            string         `db:"type"`
	EventTypes      pq.StringArray `db:"event_types"`
	Active          bool           `db:"active"`
	LastStatus      sql.NullString `db:"last_status"`
	LastError       sql.NullString `db:"last_error"`
	LastTriggeredAt sql.NullTime   `db:"last_triggered_at"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (w *webhookRow) toDomain() *domain.Webhook {
	wh := &domain.Webhook{
		ID:           w.ID,
		SubscriberID: w.SubscriberID,
		URL:          w.URL,
		Secret:       w.Secret.String,
		Type:         domain.WebhookType(w.Type),
		EventTypes:   []string(w.EventTypes),
		Active:       w.Active,
		LastStatus:   domain.WebhookStatus(w.LastStatus.String),
		LastError:    w.LastError.String,
		CreatedAt:    w.CreatedAt,
	}
	if w.LastTriggeredAt.Valid {
		t := w.LastTriggeredAt.Time
		wh.LastTriggeredAt = &t
	}
	return wh
}

const webhookColumns = `id, subscriber_id, url, secret, type, event_types, active, last_status, last_error, last_triggered_at, created_at`

// GetActiveForAction returns active webhooks subscribed to an action.
func (r *WebhookRepo) GetActiveForAction(ctx context.Context, action string) ([]*domain.Webhook, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE active = TRUE AND $1 = ANY(event_types)
	`

	var rows []webhookRow
	if err := r.db.SelectContext(ctx, &rows, query, action); err != nil {
		return nil, fmt.Errorf("failed to get active webhooks: %w", err)
	}

	hooks := make([]*domain.Webhook, 0, len(rows))
	for i := range rows {
		hooks = append(hooks, rows[i].toDomain())
	}
	return hooks, nil
}

// GetByIDs retrieves webhooks by id.
func (r *WebhookRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Webhook, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE id = ANY($1)
	`

	var rows []webhookRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get webhooks: %w", err)
	}

	hooks := make([]*domain.Webhook, 0, len(rows))
	for i := range rows {
		hooks = append(hooks, rows[i].toDomain())
	}
	return hooks, nil
}

// RecordDelivery stores the outcome of a delivery attempt on the row.
func (r *WebhookRepo) RecordDelivery(
	ctx context.Context,
	webhookID string,
	status domain.WebhookStatus,
	errMsg string,
	at time.Time,
) error {
	query := `
		UPDATE webhooks
		SET last_status = $1, last_error = $2, last_triggered_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, string(status), errMsg, at, webhookID)
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return nil
}

// Create inserts a webhook.
func (r *WebhookRepo) Create(ctx context.Context, wh *domain.Webhook) error {
	query := `
		INSERT INTO webhooks (id, subscriber_id, url, secret, type, event_types, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		wh.ID, wh.SubscriberID, wh.URL, wh.Secret,
		string(wh.Type), pq.Array(wh.EventTypes), wh.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}
