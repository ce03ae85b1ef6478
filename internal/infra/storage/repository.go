package storage

import (
	"context"
	"errors"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist.
	ErrNotFound = errors.New("not found")
)

// EventRepository handles normalized event storage.
//
// Upsert is keyed by (process_id, nonce) so re-delivery of an already
// committed page is idempotent.
type EventRepository interface {
	// Upsert inserts or updates an event keyed by (processID, nonce).
	Upsert(ctx context.Context, event *domain.Event) error

	// LatestNonce returns the highest stored nonce for a process.
	// ok is false when no events exist for the process yet.
	LatestNonce(ctx context.Context, processID string) (nonce uint64, ok bool, err error)

	// LatestBlockHeight returns the highest stored block height for a
	// process, 0 when no events exist.
	LatestBlockHeight(ctx context.Context, processID string) (uint64, error)

	// MarkProcessed sets processed_at for an event after the at-least-once
	// channel completed.
	MarkProcessed(ctx context.Context, processID string, nonce uint64) error

	// DeleteAboveHeight removes events above a block height so the derived
	// watermark falls back (admin repair).
	DeleteAboveHeight(ctx context.Context, processID string, height uint64) (int64, error)
}

// SubscriberRepository handles subscriber persistence. CRUD beyond what
// the pipeline needs lives in the external configuration surface.
type SubscriberRepository interface {
	// GetVerified returns all verified subscribers.
	GetVerified(ctx context.Context) ([]*domain.Subscriber, error)

	// GetByID retrieves a subscriber by id.
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)

	// Create inserts a subscriber.
	Create(ctx context.Context, sub *domain.Subscriber) error
}

// WebhookRepository handles webhook persistence and delivery bookkeeping.
type WebhookRepository interface {
	// GetActiveForAction returns active webhooks subscribed to an action.
	GetActiveForAction(ctx context.Context, action string) ([]*domain.Webhook, error)

	// GetByIDs retrieves webhooks by id, skipping missing ones.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Webhook, error)

	// RecordDelivery stores the outcome of a delivery attempt on the row.
	RecordDelivery(ctx context.Context, webhookID string, status domain.WebhookStatus, errMsg string, at time.Time) error

	// Create inserts a webhook.
	Create(ctx context.Context, wh *domain.Webhook) error
}

// MonitorRepository handles gateway monitor persistence.
type MonitorRepository interface {
	// GetDue returns enabled monitors whose check interval has elapsed.
	GetDue(ctx context.Context, now time.Time) ([]*domain.GatewayMonitor, error)

	// GetAll returns all monitors (status CLI).
	GetAll(ctx context.Context) ([]*domain.GatewayMonitor, error)

	// RecordCheck persists the post-check state of a monitor.
	RecordCheck(ctx context.Context, id string, status domain.MonitorStatus, consecutiveFailures int, checkedAt time.Time) error

	// SetAlertSent marks a down alert as emitted and clears the recovery
	// guard so the next recovery can alert again.
	SetAlertSent(ctx context.Context, id string, at time.Time) error

	// SetRecoverySent marks a recovery alert as emitted and clears the
	// alert guard so the next outage can alert again.
	SetRecoverySent(ctx context.Context, id string, at time.Time) error

	// Links returns the webhook links configured for a monitor.
	Links(ctx context.Context, monitorID string) ([]*domain.MonitorWebhookLink, error)

	// Create inserts a monitor.
	Create(ctx context.Context, m *domain.GatewayMonitor) error
}

// HealthcheckRepository handles append-only check history.
type HealthcheckRepository interface {
	// Append stores one check result.
	Append(ctx context.Context, rec *domain.HealthcheckRecord) error

	// DeleteOlderThan prunes records checked before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
